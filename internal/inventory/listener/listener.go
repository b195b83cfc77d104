package listener

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const EventTypeStockReceived = "StockReceived"

// MessageReader is satisfied by *broker.KafkaConsumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

const maxRetryDelay = 30 * time.Second

type InventoryListener struct {
	consumer   MessageReader
	uc         inventory.UseCase
	logger     logger.ZapLogger
	retryDelay time.Duration
}

func NewInventoryListener(consumer MessageReader, uc inventory.UseCase, logger logger.ZapLogger) *InventoryListener {
	return &InventoryListener{
		consumer:   consumer,
		uc:         uc,
		logger:     logger,
		retryDelay: time.Second,
	}
}

// Start consumes restock events until ctx is done. An offset is committed
// only once its event is applied or found unusable, so delivery is at least
// once; redeliveries are absorbed by the reference check in AdjustInventory.
func (l *InventoryListener) Start(ctx context.Context) {
	l.logger.Info("Starting Inventory Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Inventory Kafka Listener")
			return
		default:
			msg, err := l.consumer.FetchMessage(ctx)
			if err != nil {
				// Don't log context canceled error as error
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			if !l.handle(ctx, msg) {
				return
			}
			if err := l.consumer.CommitMessages(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to commit kafka offset",
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
		}
	}
}

// handle retries msg while the failure is retryable. Reports false when ctx
// ended first and the offset must stay uncommitted.
func (l *InventoryListener) handle(ctx context.Context, msg kafka.Message) bool {
	delay := l.retryDelay
	for {
		err := l.processMessage(ctx, msg.Value)
		if err == nil {
			return true
		}
		l.logger.Warn("Restock failed, retrying",
			zap.Int64("offset", msg.Offset),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

type StockReceivedEvent struct {
	EventID   string               `json:"event_id"`
	EventType string               `json:"event_type"`
	Payload   StockReceivedPayload `json:"payload"`
	Timestamp time.Time            `json:"timestamp"`
}

type StockReceivedPayload struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	ReferenceID string `json:"reference_id"`
	Notes       string `json:"notes"`
}

// processMessage applies one event. It returns an error only when the
// event should be retried; malformed or rejected events are logged and
// dropped.
func (l *InventoryListener) processMessage(ctx context.Context, value []byte) error {
	var event StockReceivedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return nil
	}

	if event.EventType != EventTypeStockReceived {
		return nil
	}

	if event.Payload.Quantity <= 0 {
		l.logger.Warn("Ignoring StockReceived event with non-positive quantity",
			zap.String("event_id", event.EventID),
			zap.Int("quantity", event.Payload.Quantity),
		)
		return nil
	}

	l.logger.Info("Processing StockReceived event",
		zap.String("event_id", event.EventID),
		zap.String("product_id", event.Payload.ProductID),
	)

	reason := event.Payload.Notes
	if reason == "" {
		reason = "Stock received"
	}
	refID := event.Payload.ReferenceID
	if refID == "" {
		refID = event.EventID
	}

	_, err := l.uc.AdjustInventory(ctx, &dto.AdjustInventoryInput{
		ProductID:      event.Payload.ProductID,
		QuantityChange: event.Payload.Quantity,
		Reason:         reason,
		ReferenceID:    refID,
		ReferenceType:  "restock",
		SkipRecorded:   true,
	})
	if err == nil {
		return nil
	}

	var unavailable *apperror.StoreUnavailableError
	if errors.As(err, &unavailable) && unavailable.Retryable() {
		return err
	}
	l.logger.Error("Dropping restock event",
		zap.String("event_id", event.EventID),
		zap.String("product_id", event.Payload.ProductID),
		zap.Error(err),
	)
	return nil
}
