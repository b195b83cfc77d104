package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/sale/dto"
	"github.com/fekuna/omnipos-sales-service/pkg/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const checkoutLockTTL = 30 * time.Second

// Cache stores receipts by idempotency key. *cache.RedisClient satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

// checkoutOnce replays the stored receipt for a key that already committed
// and lets only one request per key run the transaction. A cache outage
// degrades to a plain checkout.
func (uc *saleUseCase) checkoutOnce(ctx context.Context, input *dto.CheckoutInput) (*dto.Receipt, error) {
	key := "sales:idempotency:" + input.IdempotencyKey
	log := uc.logger.With(zap.String("idempotency_key", input.IdempotencyKey))

	if receipt, hit, err := uc.cachedReceipt(ctx, key); err != nil {
		log.Warn("Idempotency cache unavailable, checking out without it", zap.Error(err))
		return uc.checkout(ctx, input)
	} else if hit {
		log.Info("Replaying recorded sale", zap.String("sale_id", receipt.SaleID))
		return receipt, nil
	}

	token := uuid.New().String()
	ok, err := uc.cache.AcquireLock(ctx, key+":lock", token, checkoutLockTTL)
	if err != nil {
		log.Warn("Idempotency lock unavailable, checking out without it", zap.Error(err))
		return uc.checkout(ctx, input)
	}
	if !ok {
		return nil, apperror.ErrCheckoutInProgress
	}
	defer func() {
		if err := uc.cache.ReleaseLock(context.WithoutCancel(ctx), key+":lock", token); err != nil {
			log.Warn("Failed to release idempotency lock", zap.Error(err))
		}
	}()

	// The previous holder may have committed between the first read and
	// taking the lock.
	if receipt, hit, err := uc.cachedReceipt(ctx, key); err == nil && hit {
		return receipt, nil
	}

	receipt, err := uc.checkout(ctx, input)
	if err != nil {
		return nil, err
	}

	if err := uc.cache.SetJSON(context.WithoutCancel(ctx), key, receipt, uc.opts.IdempotencyTTL); err != nil {
		log.Warn("Failed to store receipt for idempotency key", zap.Error(err))
	}
	return receipt, nil
}

func (uc *saleUseCase) cachedReceipt(ctx context.Context, key string) (*dto.Receipt, bool, error) {
	var receipt dto.Receipt
	err := uc.cache.GetJSON(ctx, key, &receipt)
	switch {
	case err == nil:
		return &receipt, true, nil
	case errors.Is(err, cache.ErrCacheMiss):
		return nil, false, nil
	}
	return nil, false, err
}
