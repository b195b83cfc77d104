package product

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/product/dto"
)

type UseCase interface {
	// EnsureProduct creates the product or, when a product with that name
	// already exists, returns it unchanged.
	EnsureProduct(ctx context.Context, input *dto.EnsureProductInput) (*model.Product, bool, error)
}
