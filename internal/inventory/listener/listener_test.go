package listener

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type useCaseMock struct {
	mu      sync.Mutex
	adjusts []dto.AdjustInventoryInput
	errs    []error // returned in order, then nil
}

func (m *useCaseMock) GetProductInventory(context.Context, string) (*model.Inventory, error) {
	return nil, nil
}

func (m *useCaseMock) SetStock(context.Context, *dto.SetStockInput) (*model.Inventory, error) {
	return nil, nil
}

func (m *useCaseMock) AdjustInventory(_ context.Context, input *dto.AdjustInventoryInput) (*model.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjusts = append(m.adjusts, *input)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	return &model.Inventory{}, nil
}

func (m *useCaseMock) ListMovements(context.Context, *dto.MovementFilters) ([]model.InventoryMovement, int, error) {
	return nil, 0, nil
}

func (m *useCaseMock) calls() []dto.AdjustInventoryInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.adjusts)
}

// readerMock hands out queued messages, then blocks until ctx is done.
type readerMock struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func (r *readerMock) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *readerMock) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *readerMock) offsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.committed)
}

func restockMessage(offset int64, productID string, qty int) kafka.Message {
	return kafka.Message{
		Offset: offset,
		Value:  []byte(fmt.Sprintf(`{"event_type":"StockReceived","payload":{"product_id":%q,"quantity":%d}}`, productID, qty)),
	}
}

func runListener(t *testing.T, l *InventoryListener) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("listener did not stop after cancel")
		}
	}
}

func TestProcessMessage(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []dto.AdjustInventoryInput
	}{
		{
			name:  "stock received",
			value: `{"event_id":"e1","event_type":"StockReceived","payload":{"product_id":"p1","quantity":24,"reference_id":"po-9","notes":"weekly delivery"}}`,
			want: []dto.AdjustInventoryInput{{
				ProductID: "p1", QuantityChange: 24, Reason: "weekly delivery", ReferenceID: "po-9", ReferenceType: "restock", SkipRecorded: true,
			}},
		},
		{
			name:  "defaults",
			value: `{"event_id":"e2","event_type":"StockReceived","payload":{"product_id":"p1","quantity":1}}`,
			want: []dto.AdjustInventoryInput{{
				ProductID: "p1", QuantityChange: 1, Reason: "Stock received", ReferenceID: "e2", ReferenceType: "restock", SkipRecorded: true,
			}},
		},
		{name: "other event", value: `{"event_type":"OrderCreated","payload":{"product_id":"p1","quantity":3}}`},
		{name: "non positive", value: `{"event_type":"StockReceived","payload":{"product_id":"p1","quantity":0}}`},
		{name: "garbage", value: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &useCaseMock{}
			l := NewInventoryListener(nil, uc, logger.NewNop())

			require.NoError(t, l.processMessage(context.Background(), []byte(tt.value)))

			if tt.want == nil {
				assert.Empty(t, uc.adjusts)
				return
			}
			assert.Equal(t, tt.want, uc.adjusts)
		})
	}
}

func TestProcessMessage_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantRetry bool
	}{
		{"store unavailable", &apperror.StoreUnavailableError{Op: "adjust inventory", Err: errors.New("db down")}, true},
		{"unknown product", apperror.ErrProductUnknown, false},
		{"would go negative", &apperror.InsufficientStockError{ProductID: "p1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &useCaseMock{errs: []error{tt.err}}
			l := NewInventoryListener(nil, uc, logger.NewNop())

			err := l.processMessage(context.Background(), restockMessage(0, "p1", 2).Value)
			if tt.wantRetry {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, uc.adjusts, 1)
		})
	}
}

func TestStart_CommitsAfterApplying(t *testing.T) {
	reader := &readerMock{msgs: make(chan kafka.Message, 2)}
	reader.msgs <- restockMessage(7, "p1", 5)
	reader.msgs <- restockMessage(8, "p2", 6)

	uc := &useCaseMock{}
	l := NewInventoryListener(reader, uc, logger.NewNop())
	stop := runListener(t, l)

	require.Eventually(t, func() bool { return len(reader.offsets()) == 2 }, time.Second, 10*time.Millisecond)
	stop()

	assert.Equal(t, []int64{7, 8}, reader.offsets())
	calls := uc.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "p2", calls[1].ProductID)
}

func TestStart_RetriesStoreOutageBeforeCommit(t *testing.T) {
	reader := &readerMock{msgs: make(chan kafka.Message, 1)}
	reader.msgs <- restockMessage(3, "p1", 4)

	outage := &apperror.StoreUnavailableError{Op: "adjust inventory", Err: errors.New("connection refused")}
	uc := &useCaseMock{errs: []error{outage, outage}}
	l := NewInventoryListener(reader, uc, logger.NewNop())
	l.retryDelay = time.Millisecond
	stop := runListener(t, l)

	require.Eventually(t, func() bool { return len(reader.offsets()) == 1 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Len(t, uc.calls(), 3)
	assert.Equal(t, []int64{3}, reader.offsets())
}

func TestStart_ShutdownDuringOutageLeavesOffset(t *testing.T) {
	reader := &readerMock{msgs: make(chan kafka.Message, 1)}
	reader.msgs <- restockMessage(3, "p1", 4)

	outage := &apperror.StoreUnavailableError{Op: "adjust inventory", Err: errors.New("connection refused")}
	uc := &useCaseMock{errs: []error{outage, outage, outage, outage, outage}}
	l := NewInventoryListener(reader, uc, logger.NewNop())
	l.retryDelay = time.Hour
	stop := runListener(t, l)

	require.Eventually(t, func() bool { return len(uc.calls()) == 1 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Empty(t, reader.offsets())
}
