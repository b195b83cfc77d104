package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/pkg/cache"
	"github.com/fekuna/omnipos-sales-service/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	stock     map[string]int
	movements []model.InventoryMovement

	known        map[string]bool // products that exist in the catalog
	decrementErr error
	staleRead    bool // GetForUpdate reports more stock than is really there
}

func newMockRepository() *mockRepository {
	return &mockRepository{stock: map[string]int{}, known: map[string]bool{}}
}

func (m *mockRepository) GetByProduct(_ context.Context, productID string) (*model.Inventory, error) {
	q, ok := m.stock[productID]
	if !ok {
		return nil, nil
	}
	return &model.Inventory{ID: "inv-" + productID, ProductID: productID, Quantity: q}, nil
}

func (m *mockRepository) GetForUpdate(ctx context.Context, productID string) (*model.Inventory, error) {
	inv, err := m.GetByProduct(ctx, productID)
	if inv != nil && m.staleRead {
		inv.Quantity += 100
	}
	return inv, err
}

func (m *mockRepository) Decrement(_ context.Context, productID string, amount int) (bool, error) {
	if m.decrementErr != nil {
		return false, m.decrementErr
	}
	q, ok := m.stock[productID]
	if !ok || q < amount {
		return false, nil
	}
	m.stock[productID] = q - amount
	return true, nil
}

func (m *mockRepository) EnsureExists(_ context.Context, productID string) error {
	if !m.known[productID] {
		return apperror.ErrProductUnknown
	}
	if _, ok := m.stock[productID]; !ok {
		m.stock[productID] = 0
	}
	return nil
}

func (m *mockRepository) SetQuantity(_ context.Context, productID string, quantity int) error {
	m.stock[productID] = quantity
	return nil
}

func (m *mockRepository) LogMovement(_ context.Context, mv *model.InventoryMovement) error {
	m.movements = append(m.movements, *mv)
	return nil
}

func (m *mockRepository) HasMovement(_ context.Context, productID, referenceType, referenceID string) (bool, error) {
	for _, mv := range m.movements {
		if mv.ProductID == productID && mv.ReferenceType != nil && *mv.ReferenceType == referenceType &&
			mv.ReferenceID != nil && *mv.ReferenceID == referenceID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) ListMovements(_ context.Context, f *dto.MovementFilters) ([]model.InventoryMovement, int, error) {
	var out []model.InventoryMovement
	for _, mv := range m.movements {
		if f.ProductID != "" && mv.ProductID != f.ProductID {
			continue
		}
		out = append(out, mv)
	}
	return out, len(out), nil
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var widget = &model.Product{BaseModel: model.BaseModel{ID: "p-widget"}, Name: "Widget"}

func newUseCase(repo *mockRepository, policy inventory.UntrackedPolicy) *InventoryUseCase {
	return NewInventoryUseCase(repo, passthroughTx{}, nil, policy, logger.NewNop())
}

func TestReserve_DecrementsAndLogsMovement(t *testing.T) {
	repo := newMockRepository()
	repo.stock[widget.ID] = 10
	uc := newUseCase(repo, inventory.UntrackedAllow)

	require.NoError(t, uc.Reserve(context.Background(), widget, 3, "sale-1"))

	assert.Equal(t, 7, repo.stock[widget.ID])
	require.Len(t, repo.movements, 1)
	mv := repo.movements[0]
	assert.Equal(t, model.MovementTypeSale, mv.MovementType)
	assert.Equal(t, -3, mv.QuantityChange)
	assert.Equal(t, 10, mv.QuantityBefore)
	assert.Equal(t, 7, mv.QuantityAfter)
	require.NotNil(t, mv.ReferenceID)
	assert.Equal(t, "sale-1", *mv.ReferenceID)
}

func TestReserve_ExactQuantityEmptiesStock(t *testing.T) {
	repo := newMockRepository()
	repo.stock[widget.ID] = 4
	uc := newUseCase(repo, inventory.UntrackedAllow)

	require.NoError(t, uc.Reserve(context.Background(), widget, 4, "sale-1"))
	assert.Equal(t, 0, repo.stock[widget.ID])
}

func TestReserve_Insufficient(t *testing.T) {
	repo := newMockRepository()
	repo.stock[widget.ID] = 2
	uc := newUseCase(repo, inventory.UntrackedAllow)

	err := uc.Reserve(context.Background(), widget, 3, "sale-1")

	var stockErr *apperror.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Widget", stockErr.Product)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 2, repo.stock[widget.ID])
	assert.Empty(t, repo.movements)
}

func TestReserve_ConditionalDecrementGuardsStaleRead(t *testing.T) {
	repo := newMockRepository()
	repo.stock[widget.ID] = 1
	repo.staleRead = true
	uc := newUseCase(repo, inventory.UntrackedAllow)

	err := uc.Reserve(context.Background(), widget, 5, "sale-1")

	var stockErr *apperror.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 1, repo.stock[widget.ID])
}

func TestReserve_UntrackedPolicy(t *testing.T) {
	t.Run("allow", func(t *testing.T) {
		repo := newMockRepository()
		uc := newUseCase(repo, inventory.UntrackedAllow)

		require.NoError(t, uc.Reserve(context.Background(), widget, 50, "sale-1"))
		assert.NotContains(t, repo.stock, widget.ID)
		assert.Empty(t, repo.movements)
	})

	t.Run("default is allow", func(t *testing.T) {
		uc := newUseCase(newMockRepository(), "")
		require.NoError(t, uc.Reserve(context.Background(), widget, 1, "sale-1"))
	})

	t.Run("reject", func(t *testing.T) {
		uc := newUseCase(newMockRepository(), inventory.UntrackedReject)

		err := uc.Reserve(context.Background(), widget, 1, "sale-1")

		var stockErr *apperror.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, 0, stockErr.Available)
	})
}

func TestReserve_StoreError(t *testing.T) {
	repo := newMockRepository()
	repo.stock[widget.ID] = 10
	repo.decrementErr = errors.New("connection reset")
	uc := newUseCase(repo, inventory.UntrackedAllow)

	err := uc.Reserve(context.Background(), widget, 1, "sale-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestAdjustInventory(t *testing.T) {
	tests := []struct {
		name      string
		initial   *int
		change    int
		wantQty   int
		wantErrAs any
	}{
		{name: "restock tracked", initial: ptr(5), change: 10, wantQty: 15},
		{name: "first restock creates row", initial: nil, change: 8, wantQty: 8},
		{name: "shrinkage", initial: ptr(5), change: -5, wantQty: 0},
		{name: "below zero", initial: ptr(5), change: -6, wantErrAs: new(*apperror.InsufficientStockError)},
		{name: "zero change", initial: ptr(5), change: 0, wantErrAs: new(*apperror.ValidationError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			repo.known[widget.ID] = true
			if tt.initial != nil {
				repo.stock[widget.ID] = *tt.initial
			}
			uc := newUseCase(repo, inventory.UntrackedAllow)

			inv, err := uc.AdjustInventory(context.Background(), &dto.AdjustInventoryInput{
				ProductID:      widget.ID,
				QuantityChange: tt.change,
				Reason:         "count",
				ReferenceType:  "manual",
			})

			if tt.wantErrAs != nil {
				require.ErrorAs(t, err, tt.wantErrAs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQty, inv.Quantity)
			assert.Equal(t, tt.wantQty, repo.stock[widget.ID])
			require.Len(t, repo.movements, 1)
			assert.Equal(t, model.MovementTypeAdjustment, repo.movements[0].MovementType)
			assert.Equal(t, tt.change, repo.movements[0].QuantityChange)
		})
	}
}

func TestAdjustInventory_SkipRecordedAppliesOnce(t *testing.T) {
	repo := newMockRepository()
	repo.known[widget.ID] = true
	repo.stock[widget.ID] = 5
	uc := newUseCase(repo, inventory.UntrackedAllow)

	restock := &dto.AdjustInventoryInput{
		ProductID:      widget.ID,
		QuantityChange: 10,
		ReferenceID:    "po-9",
		ReferenceType:  "restock",
		SkipRecorded:   true,
	}

	for range 3 {
		inv, err := uc.AdjustInventory(context.Background(), restock)
		require.NoError(t, err)
		assert.Equal(t, 15, inv.Quantity)
	}
	assert.Equal(t, 15, repo.stock[widget.ID])
	assert.Len(t, repo.movements, 1)

	// Same reference on another product is a separate delivery.
	other := &model.Product{BaseModel: model.BaseModel{ID: "p-other"}}
	repo.known[other.ID] = true
	_, err := uc.AdjustInventory(context.Background(), &dto.AdjustInventoryInput{
		ProductID: other.ID, QuantityChange: 2, ReferenceID: "po-9", ReferenceType: "restock", SkipRecorded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.stock[other.ID])

	// Without SkipRecorded a repeated reference applies again.
	restock.SkipRecorded = false
	_, err = uc.AdjustInventory(context.Background(), restock)
	require.NoError(t, err)
	assert.Equal(t, 25, repo.stock[widget.ID])
}

func TestAdjustInventory_UnknownProduct(t *testing.T) {
	uc := newUseCase(newMockRepository(), inventory.UntrackedAllow)

	_, err := uc.AdjustInventory(context.Background(), &dto.AdjustInventoryInput{
		ProductID:      "missing",
		QuantityChange: 1,
	})
	assert.ErrorIs(t, err, apperror.ErrProductUnknown)
}

func TestAdjustInventory_LockBusy(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := &cache.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = rc.Close() })

	ok, err := rc.AcquireLock(context.Background(), "lock:inventory:"+widget.ID, "someone-else", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	repo := newMockRepository()
	repo.known[widget.ID] = true
	uc := NewInventoryUseCase(repo, passthroughTx{}, rc, inventory.UntrackedAllow, logger.NewNop())

	_, err = uc.AdjustInventory(context.Background(), &dto.AdjustInventoryInput{ProductID: widget.ID, QuantityChange: 1})

	var unavailable *apperror.StoreUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.True(t, unavailable.Retryable())
	assert.NotContains(t, repo.stock, widget.ID)
}

func TestAdjustInventory_ReleasesLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := &cache.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = rc.Close() })

	repo := newMockRepository()
	repo.known[widget.ID] = true
	uc := NewInventoryUseCase(repo, passthroughTx{}, rc, inventory.UntrackedAllow, logger.NewNop())

	for i := 0; i < 2; i++ {
		_, err := uc.AdjustInventory(context.Background(), &dto.AdjustInventoryInput{ProductID: widget.ID, QuantityChange: 2})
		require.NoError(t, err)
	}
	assert.Equal(t, 4, repo.stock[widget.ID])
	assert.False(t, mr.Exists("lock:inventory:"+widget.ID))
}

func ptr(i int) *int { return &i }

func TestSetStock(t *testing.T) {
	tests := []struct {
		name          string
		initial       *int
		quantity      int
		wantMovements int
		wantChange    int
	}{
		{name: "untracked becomes tracked at zero", initial: nil, quantity: 0, wantMovements: 0},
		{name: "count up", initial: ptr(3), quantity: 10, wantMovements: 1, wantChange: 7},
		{name: "count down", initial: ptr(10), quantity: 4, wantMovements: 1, wantChange: -6},
		{name: "unchanged", initial: ptr(4), quantity: 4, wantMovements: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			repo.known[widget.ID] = true
			if tt.initial != nil {
				repo.stock[widget.ID] = *tt.initial
			}
			uc := newUseCase(repo, inventory.UntrackedAllow)

			inv, err := uc.SetStock(context.Background(), &dto.SetStockInput{
				ProductID:     widget.ID,
				Quantity:      tt.quantity,
				Reason:        "stock take",
				ReferenceType: "stocktake",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.quantity, inv.Quantity)

			q, tracked := repo.stock[widget.ID]
			assert.True(t, tracked)
			assert.Equal(t, tt.quantity, q)
			require.Len(t, repo.movements, tt.wantMovements)
			if tt.wantMovements > 0 {
				assert.Equal(t, tt.wantChange, repo.movements[0].QuantityChange)
				assert.Equal(t, tt.quantity, repo.movements[0].QuantityAfter)
			}
		})
	}
}

func TestSetStock_Negative(t *testing.T) {
	uc := newUseCase(newMockRepository(), inventory.UntrackedAllow)

	_, err := uc.SetStock(context.Background(), &dto.SetStockInput{ProductID: widget.ID, Quantity: -1})

	var validation *apperror.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "quantity", validation.Field)
}
