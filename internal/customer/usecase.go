package customer

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/customer/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
)

type Resolver interface {
	// Resolve returns the customer a sale is recorded against. A nil contact
	// or a blank phone resolves to the guest customer.
	Resolve(ctx context.Context, contact *dto.Contact) (*model.Customer, error)

	// LoadGuest fetches the configured guest customer. Called at startup so
	// a missing row stops the process instead of failing checkouts.
	LoadGuest(ctx context.Context) (*model.Customer, error)
}
