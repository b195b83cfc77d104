package inventory

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
)

// Ledger is the stock side of a checkout.
type Ledger interface {
	// Reserve checks and decrements stock for one sale line inside the
	// caller's transaction. Fails with *apperror.InsufficientStockError.
	Reserve(ctx context.Context, product *model.Product, quantity int, saleID string) error
}

type UseCase interface {
	GetProductInventory(ctx context.Context, productID string) (*model.Inventory, error)
	AdjustInventory(ctx context.Context, input *dto.AdjustInventoryInput) (*model.Inventory, error)
	SetStock(ctx context.Context, input *dto.SetStockInput) (*model.Inventory, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.InventoryMovement, int, error)
}

// UntrackedPolicy decides what a reservation does for a product without an
// inventory row.
type UntrackedPolicy string

const (
	// UntrackedAllow lets the line through and leaves stock untouched.
	UntrackedAllow UntrackedPolicy = "allow"
	// UntrackedReject treats the product as out of stock.
	UntrackedReject UntrackedPolicy = "reject"
)
