package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Insert(ctx context.Context, e *model.OutboxEvent) error {
	query := `
        INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at)
        VALUES (:id, :aggregate_id, :event_type, :payload, :created_at)
    `
	if _, err := sqlx.NamedExecContext(ctx, postgres.Executor(ctx, r.DB), query, e); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *PGRepository) FetchUnprocessed(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	query := `
        SELECT * FROM outbox_events
        WHERE processed_at IS NULL
        ORDER BY created_at
        LIMIT $1
        FOR UPDATE SKIP LOCKED
    `
	var events []model.OutboxEvent
	if err := sqlx.SelectContext(ctx, postgres.Executor(ctx, r.DB), &events, query, limit); err != nil {
		return nil, fmt.Errorf("fetch outbox events: %w", err)
	}
	return events, nil
}

func (r *PGRepository) MarkProcessed(ctx context.Context, id string) error {
	_, err := postgres.Executor(ctx, r.DB).ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = $1 WHERE id = $2`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return nil
}
