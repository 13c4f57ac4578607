package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"outreach-engine/internal/config"
	"outreach-engine/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connectAttempts = 5
	initialBackoff  = 500 * time.Millisecond
)

// Pool is the engine's Postgres handle. It implements database.Querier.
type Pool struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

type Stats struct {
	Total    int32 `json:"total"`
	Idle     int32 `json:"idle"`
	Acquired int32 `json:"acquired"`
}

// Open builds the pool and waits for the server to answer, retrying with a
// doubling backoff so the engine can start alongside its database.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *log.Logger) (*Pool, error) {
	if logger == nil {
		logger = log.Default()
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pcfg.MaxConnIdleTime = 5 * time.Minute
	pcfg.HealthCheckPeriod = time.Minute
	pcfg.ConnConfig.RuntimeParams["application_name"] = "outreach-engine"
	pcfg.ConnConfig.RuntimeParams["timezone"] = "UTC"

	p, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err := p.Ping(ctx)
		if err == nil {
			break
		}
		if attempt == connectAttempts || ctx.Err() != nil {
			p.Close()
			return nil, fmt.Errorf("connect postgres after %d attempts: %w", attempt, err)
		}
		logger.Printf("component=postgres action=connect attempt=%d status=retry backoff=%s err=%v", attempt, backoff, err)
		select {
		case <-ctx.Done():
			p.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	logger.Printf("component=postgres action=connect status=ok host=%s db=%s max_conns=%d", cfg.DBHost, cfg.DBName, pcfg.MaxConns)
	return &Pool{pool: p, logger: logger}, nil
}

// Raw exposes the pgx pool for work that needs a dedicated connection, such
// as migrations.
func (p *Pool) Raw() *pgxpool.Pool {
	return p.pool
}

func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := p.pool.Exec(ctx, sql, args...)
	return tag.RowsAffected(), err
}

func (p *Pool) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.pool == nil {
		return errors.New("postgres pool not open")
	}
	return p.pool.Ping(ctx)
}

func (p *Pool) Stats() Stats {
	s := p.pool.Stat()
	return Stats{Total: s.TotalConns(), Idle: s.IdleConns(), Acquired: s.AcquiredConns()}
}

// HealthCheck pings the server; a failure carries the pool counters so an
// exhausted pool is told apart from an unreachable server.
func (p *Pool) HealthCheck(ctx context.Context) error {
	if err := p.Ping(ctx); err != nil {
		s := p.Stats()
		return fmt.Errorf("postgres ping (conns total=%d acquired=%d): %w", s.Total, s.Acquired, err)
	}
	return nil
}

func (p *Pool) Close() error {
	if p == nil || p.pool == nil {
		return nil
	}
	p.pool.Close()
	p.logger.Printf("component=postgres action=close status=ok")
	return nil
}

var _ database.Querier = (*Pool)(nil)
