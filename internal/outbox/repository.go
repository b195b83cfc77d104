package outbox

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/model"
)

type Repository interface {
	Insert(ctx context.Context, event *model.OutboxEvent) error

	// FetchUnprocessed returns the oldest unpublished events. Inside a
	// transaction the rows stay locked and are skipped by other pollers.
	FetchUnprocessed(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id string) error
}
