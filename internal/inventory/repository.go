package inventory

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
)

type Repository interface {
	GetByProduct(ctx context.Context, productID string) (*model.Inventory, error)

	// GetForUpdate reads the row and locks it until the ambient transaction
	// ends. Returns nil, nil when the product has no inventory row.
	GetForUpdate(ctx context.Context, productID string) (*model.Inventory, error)

	// Decrement subtracts amount only while quantity >= amount. Reports false
	// when no row was updated.
	Decrement(ctx context.Context, productID string, amount int) (bool, error)

	// EnsureExists inserts a zero-quantity row unless one is already there.
	EnsureExists(ctx context.Context, productID string) error
	SetQuantity(ctx context.Context, productID string, quantity int) error

	// Movements / Audit
	LogMovement(ctx context.Context, movement *model.InventoryMovement) error

	// HasMovement reports whether a movement for productID already carries
	// this reference.
	HasMovement(ctx context.Context, productID, referenceType, referenceID string) (bool, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.InventoryMovement, int, error)
}
