package sale

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/sale/dto"
)

type Repository interface {
	Create(ctx context.Context, sale *model.Sale) error
	CreateDetail(ctx context.Context, detail *model.SalesDetail) error

	// FindByID loads the sale with its customer and details. Returns nil, nil
	// when there is no such sale.
	FindByID(ctx context.Context, id string) (*model.Sale, error)
	// FindAll lists sales newest first, each with customer and details.
	FindAll(ctx context.Context, filters *dto.SaleFilters) ([]model.Sale, int, error)
}
