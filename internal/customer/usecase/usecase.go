package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/customer"
	"github.com/fekuna/omnipos-sales-service/internal/customer/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type customerResolver struct {
	repo    customer.Repository
	guestID string
	logger  logger.ZapLogger
}

func NewCustomerResolver(repo customer.Repository, guestID string, log logger.ZapLogger) customer.Resolver {
	return &customerResolver{
		repo:    repo,
		guestID: guestID,
		logger:  log,
	}
}

func (r *customerResolver) LoadGuest(ctx context.Context) (*model.Customer, error) {
	if strings.TrimSpace(r.guestID) == "" {
		return nil, apperror.ErrGuestCustomerMissing
	}
	guest, err := r.repo.FindByID(ctx, r.guestID)
	if err != nil {
		return nil, err
	}
	if guest == nil {
		return nil, fmt.Errorf("%w: id %s", apperror.ErrGuestCustomerMissing, r.guestID)
	}
	return guest, nil
}

func (r *customerResolver) Resolve(ctx context.Context, contact *dto.Contact) (*model.Customer, error) {
	if contact == nil || strings.TrimSpace(contact.Phone) == "" {
		return r.LoadGuest(ctx)
	}

	phone := strings.TrimSpace(contact.Phone)
	name := strings.TrimSpace(contact.Name)

	c, err := r.repo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return r.refreshName(ctx, c, name)
	}

	now := time.Now()
	c = &model.Customer{
		BaseModel: model.BaseModel{ID: uuid.New().String(), CreatedAt: now},
		Phone:     phone,
		Name:      name,
		UpdatedAt: now,
	}
	err = r.repo.Create(ctx, c)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, apperror.ErrDuplicateKey) {
		return nil, err
	}

	// Another checkout created this phone between our lookup and insert.
	r.logger.Debug("customer created concurrently, retrying lookup", zap.String("phone", phone))
	c, err = r.repo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("customer %s reported duplicate but not found", phone)
	}
	return r.refreshName(ctx, c, name)
}

// refreshName applies last-write-wins to the display name.
func (r *customerResolver) refreshName(ctx context.Context, c *model.Customer, name string) (*model.Customer, error) {
	if name == "" || name == c.Name {
		return c, nil
	}
	if err := r.repo.UpdateName(ctx, c.ID, name); err != nil {
		return nil, err
	}
	c.Name = name
	c.UpdatedAt = time.Now()
	return c, nil
}
