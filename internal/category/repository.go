package category

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/model"
)

type Repository interface {
	Create(ctx context.Context, category *model.Category) error
	FindByName(ctx context.Context, name string) (*model.Category, error)
}
