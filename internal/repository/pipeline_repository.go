package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"outreach-engine/internal/database"
	"outreach-engine/internal/domain/pipeline"
)

// PostgresPipelineRepository stores each pipeline as a JSONB snapshot next
// to the columns operators filter on.
type PostgresPipelineRepository struct {
	db database.Querier
}

func NewPostgresPipelineRepository(db database.Querier) *PostgresPipelineRepository {
	return &PostgresPipelineRepository{db: db}
}

func (r *PostgresPipelineRepository) Save(ctx context.Context, p *pipeline.Pipeline) error {
	if p == nil {
		return fmt.Errorf("save pipeline: nil pipeline")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode pipeline %s: %w", p.ID, err)
	}
	var tracking any
	if p.Tracking.TrackingID != "" {
		tracking = p.Tracking.TrackingID
	}
	_, err = r.db.Exec(ctx, `
INSERT INTO pipelines (id, opportunity_id, profile_id, status, tracking_id, snapshot, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	tracking_id = EXCLUDED.tracking_id,
	snapshot = EXCLUDED.snapshot,
	updated_at = EXCLUDED.updated_at`,
		p.ID, p.OpportunityID, p.ProfileID, string(p.Status), tracking, b, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save pipeline %s: %w", p.ID, err)
	}
	return nil
}

func (r *PostgresPipelineRepository) LoadAll(ctx context.Context) ([]*pipeline.Pipeline, error) {
	rows, err := r.db.Query(ctx, `SELECT snapshot FROM pipelines ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("load pipelines: %w", err)
	}
	defer rows.Close()

	out := make([]*pipeline.Pipeline, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		p := &pipeline.Pipeline{}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode pipeline: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresPipelineRepository) HealthCheck(ctx context.Context) error {
	if hc, ok := r.db.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return r.db.Ping(ctx)
}
