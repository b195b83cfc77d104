package product

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/model"
)

type Repository interface {
	Create(ctx context.Context, product *model.Product) error

	// FindByName matches the catalog name exactly. Returns nil, nil when
	// there is no such product.
	FindByName(ctx context.Context, name string) (*model.Product, error)
}
