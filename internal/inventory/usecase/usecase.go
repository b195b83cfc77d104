package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-sales-service/pkg/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/fekuna/omnipos-sales-service/internal/inventory")

var errLockBusy = errors.New("inventory is being adjusted, please try again later")

// Locker is the distributed lock AdjustInventory takes per product.
// *cache.RedisClient satisfies it.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

type InventoryUseCase struct {
	repo      inventory.Repository
	tx        postgres.Transactor
	locker    Locker
	untracked inventory.UntrackedPolicy
	logger    logger.ZapLogger
}

// NewInventoryUseCase builds the ledger. locker may be nil, in which case
// adjustments rely on the row lock alone.
func NewInventoryUseCase(
	repo inventory.Repository,
	tx postgres.Transactor,
	locker Locker,
	untracked inventory.UntrackedPolicy,
	log logger.ZapLogger,
) *InventoryUseCase {
	if untracked == "" {
		untracked = inventory.UntrackedAllow
	}
	return &InventoryUseCase{
		repo:      repo,
		tx:        tx,
		locker:    locker,
		untracked: untracked,
		logger:    log,
	}
}

func (uc *InventoryUseCase) Reserve(ctx context.Context, product *model.Product, quantity int, saleID string) error {
	ctx, span := tracer.Start(ctx, "inventory.Reserve", trace.WithAttributes(
		attribute.String("product.id", product.ID),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	inv, err := uc.repo.GetForUpdate(ctx, product.ID)
	if err != nil {
		return err
	}

	if inv == nil {
		if uc.untracked == inventory.UntrackedReject {
			return &apperror.InsufficientStockError{
				ProductID: product.ID,
				Product:   product.Name,
				Requested: quantity,
				Available: 0,
			}
		}
		uc.logger.Warn("Product has no inventory record, sale line not deducted",
			zap.String("product_id", product.ID),
			zap.String("product", product.Name),
			zap.String("sale_id", saleID),
		)
		return nil
	}

	insufficient := &apperror.InsufficientStockError{
		ProductID: product.ID,
		Product:   product.Name,
		Requested: quantity,
		Available: inv.Quantity,
	}
	if inv.Quantity < quantity {
		return insufficient
	}

	ok, err := uc.repo.Decrement(ctx, product.ID, quantity)
	if err != nil {
		return err
	}
	if !ok {
		return insufficient
	}

	refType := model.MovementTypeSale
	return uc.repo.LogMovement(ctx, &model.InventoryMovement{
		ID:             uuid.New().String(),
		ProductID:      product.ID,
		MovementType:   model.MovementTypeSale,
		QuantityChange: -quantity,
		QuantityBefore: inv.Quantity,
		QuantityAfter:  inv.Quantity - quantity,
		ReferenceType:  &refType,
		ReferenceID:    &saleID,
		Notes:          "Sale",
		CreatedAt:      time.Now(),
	})
}

func (uc *InventoryUseCase) GetProductInventory(ctx context.Context, productID string) (*model.Inventory, error) {
	inv, err := uc.repo.GetByProduct(ctx, productID)
	if err != nil {
		return nil, apperror.Classify("get inventory", err)
	}
	return inv, nil
}

func (uc *InventoryUseCase) AdjustInventory(ctx context.Context, input *dto.AdjustInventoryInput) (*model.Inventory, error) {
	if input.ProductID == "" {
		return nil, apperror.NewValidation("product_id", "is required")
	}
	if input.QuantityChange == 0 {
		return nil, apperror.NewValidation("quantity_change", "must not be zero")
	}

	ctx, span := tracer.Start(ctx, "inventory.AdjustInventory", trace.WithAttributes(
		attribute.String("product.id", input.ProductID),
		attribute.Int("quantity_change", input.QuantityChange),
	))
	defer span.End()

	return uc.apply(ctx, "adjust inventory", stockChange{
		productID:     input.ProductID,
		reason:        input.Reason,
		referenceID:   input.ReferenceID,
		referenceType: input.ReferenceType,
		skipRecorded:  input.SkipRecorded,
		target: func(before int) (int, error) {
			after := before + input.QuantityChange
			if after < 0 {
				return 0, &apperror.InsufficientStockError{
					ProductID: input.ProductID,
					Requested: -input.QuantityChange,
					Available: before,
				}
			}
			return after, nil
		},
	})
}

// SetStock records a stock take: the on-hand quantity becomes
// input.Quantity and the difference is logged as an adjustment. A product
// without an inventory row becomes tracked, even at zero.
func (uc *InventoryUseCase) SetStock(ctx context.Context, input *dto.SetStockInput) (*model.Inventory, error) {
	if input.ProductID == "" {
		return nil, apperror.NewValidation("product_id", "is required")
	}
	if input.Quantity < 0 {
		return nil, apperror.NewValidation("quantity", "must not be negative")
	}

	ctx, span := tracer.Start(ctx, "inventory.SetStock", trace.WithAttributes(
		attribute.String("product.id", input.ProductID),
		attribute.Int("quantity", input.Quantity),
	))
	defer span.End()

	return uc.apply(ctx, "set stock", stockChange{
		productID:     input.ProductID,
		reason:        input.Reason,
		referenceID:   input.ReferenceID,
		referenceType: input.ReferenceType,
		target:        func(int) (int, error) { return input.Quantity, nil },
	})
}

type stockChange struct {
	productID     string
	reason        string
	referenceID   string
	referenceType string
	skipRecorded  bool
	target        func(before int) (int, error)
}

// apply runs one stock change in its own transaction under the product lock.
// No movement is logged when the quantity does not change.
func (uc *InventoryUseCase) apply(ctx context.Context, op string, change stockChange) (*model.Inventory, error) {
	if uc.locker != nil {
		release, err := uc.lock(ctx, op, change.productID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	var (
		result  *model.Inventory
		skipped bool
	)
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := uc.repo.EnsureExists(ctx, change.productID); err != nil {
			return err
		}
		inv, err := uc.repo.GetForUpdate(ctx, change.productID)
		if err != nil {
			return err
		}
		if inv == nil {
			return fmt.Errorf("inventory row for %s vanished after insert", change.productID)
		}

		// Checked under the row lock so redeliveries of one reference
		// serialize and only the first applies.
		if change.skipRecorded && change.referenceID != "" {
			recorded, err := uc.repo.HasMovement(ctx, change.productID, change.referenceType, change.referenceID)
			if err != nil {
				return err
			}
			if recorded {
				skipped = true
				result = inv
				return nil
			}
		}

		before := inv.Quantity
		after, err := change.target(before)
		if err != nil {
			return err
		}
		result = inv
		if after == before {
			return nil
		}

		if err := uc.repo.SetQuantity(ctx, change.productID, after); err != nil {
			return err
		}

		var refID, refType *string
		if change.referenceID != "" {
			refID = &change.referenceID
		}
		if change.referenceType != "" {
			refType = &change.referenceType
		}

		now := time.Now()
		err = uc.repo.LogMovement(ctx, &model.InventoryMovement{
			ID:             uuid.New().String(),
			ProductID:      change.productID,
			MovementType:   model.MovementTypeAdjustment,
			QuantityChange: after - before,
			QuantityBefore: before,
			QuantityAfter:  after,
			ReferenceType:  refType,
			ReferenceID:    refID,
			Notes:          change.reason,
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}

		inv.Quantity = after
		inv.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, apperror.Classify(op, err)
	}
	if skipped {
		uc.logger.Info("Inventory change already recorded",
			zap.String("op", op),
			zap.String("product_id", change.productID),
			zap.String("reference_id", change.referenceID),
		)
		return result, nil
	}

	uc.logger.Info("Inventory updated",
		zap.String("op", op),
		zap.String("product_id", change.productID),
		zap.Int("quantity", result.Quantity),
	)
	return result, nil
}

func (uc *InventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.InventoryMovement, int, error) {
	items, total, err := uc.repo.ListMovements(ctx, filters)
	if err != nil {
		return nil, 0, apperror.Classify("list movements", err)
	}
	return items, total, nil
}

// lock takes the per-product adjustment lock with a short retry loop.
func (uc *InventoryUseCase) lock(ctx context.Context, op, productID string) (func(), error) {
	key := fmt.Sprintf("lock:inventory:%s", productID)
	value := uuid.New().String()

	for i := 0; i < 3; i++ {
		ok, err := uc.locker.AcquireLock(ctx, key, value, 5*time.Second)
		if err != nil {
			uc.logger.Error("Failed to acquire inventory lock", zap.Error(err))
		}
		if ok {
			return func() {
				if err := uc.locker.ReleaseLock(context.WithoutCancel(ctx), key, value); err != nil {
					uc.logger.Warn("Failed to release inventory lock", zap.Error(err))
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, apperror.Classify(op, ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil, &apperror.StoreUnavailableError{Op: op, Err: errLockBusy}
}
