package repository

import (
	"context"
	"errors"
	"fmt"

	"outreach-engine/internal/database"

	"github.com/jackc/pgx/v5"
)

// PostgresCounterRepository keeps the daily dispatch count when Redis is
// not configured.
type PostgresCounterRepository struct {
	db database.Querier
}

func NewPostgresCounterRepository(db database.Querier) *PostgresCounterRepository {
	return &PostgresCounterRepository{db: db}
}

func (r *PostgresCounterRepository) LoadDailyCount(ctx context.Context, day string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT sent FROM daily_counters WHERE day = $1::date`, day).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("load daily counter %s: %w", day, err)
	}
	return n, nil
}

func (r *PostgresCounterRepository) SaveDailyCount(ctx context.Context, day string, count int) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO daily_counters (day, sent, updated_at) VALUES ($1::date, $2, now())
ON CONFLICT (day) DO UPDATE SET sent = EXCLUDED.sent, updated_at = now()`, day, count)
	if err != nil {
		return fmt.Errorf("save daily counter %s: %w", day, err)
	}
	return nil
}
