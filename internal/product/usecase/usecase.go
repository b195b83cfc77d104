package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/product"
	"github.com/fekuna/omnipos-sales-service/internal/product/dto"
	"github.com/fekuna/omnipos-sales-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type productUseCase struct {
	repo   product.Repository
	logger logger.ZapLogger
}

func NewProductUseCase(repo product.Repository, log logger.ZapLogger) product.UseCase {
	return &productUseCase{
		repo:   repo,
		logger: log,
	}
}

// maxPrice is the first value the NUMERIC(10,2) price column cannot hold.
var maxPrice = decimal.New(1, 8)

// EnsureProduct reports whether the product was created by this call.
func (uc *productUseCase) EnsureProduct(ctx context.Context, input *dto.EnsureProductInput) (*model.Product, bool, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, false, apperror.NewValidation("product.name", "is required")
	}
	if len([]rune(name)) > 200 {
		return nil, false, apperror.NewValidation("product.name", "must be at most 200 characters")
	}
	if input.CategoryID == "" {
		return nil, false, apperror.NewValidation("product.category", "is required")
	}
	if input.Price.IsNegative() {
		return nil, false, apperror.NewValidation("product.price", "must not be negative")
	}
	if !input.Price.Equal(input.Price.Truncate(2)) || input.Price.GreaterThanOrEqual(maxPrice) {
		return nil, false, apperror.NewValidation("product.price", "must have at most 2 decimal places and be below "+maxPrice.String())
	}

	existing, err := uc.repo.FindByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if !existing.Price.Equal(input.Price) {
			uc.logger.Warn("Product exists with a different catalog price, keeping it",
				zap.String("product_id", existing.ID),
				zap.String("stored_price", existing.Price.StringFixed(2)),
				zap.String("seed_price", input.Price.StringFixed(2)),
			)
		}
		return existing, false, nil
	}

	p := &model.Product{
		BaseModel:  model.BaseModel{ID: uuid.New().String(), CreatedAt: time.Now()},
		CategoryID: input.CategoryID,
		Name:       name,
		Price:      input.Price,
	}
	if err := uc.repo.Create(ctx, p); err != nil {
		if errors.Is(err, apperror.ErrDuplicateKey) {
			existing, findErr := uc.repo.FindByName(ctx, name)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	uc.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("name", name))
	return p, true, nil
}
