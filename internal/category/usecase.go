package category

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/category/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
)

type UseCase interface {
	// EnsureCategory returns the category with the given name, creating it
	// when it does not exist yet.
	EnsureCategory(ctx context.Context, input *dto.EnsureCategoryInput) (*model.Category, error)
}
