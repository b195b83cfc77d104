package customer

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/model"
)

type Repository interface {
	FindByPhone(ctx context.Context, phone string) (*model.Customer, error)
	FindByID(ctx context.Context, id string) (*model.Customer, error)

	// Create fails with apperror.ErrDuplicateKey when the phone is taken.
	Create(ctx context.Context, customer *model.Customer) error
	UpdateName(ctx context.Context, id, name string) error
}
