package publisher

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/outbox"
	"github.com/fekuna/omnipos-sales-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-sales-service/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer is satisfied by *broker.KafkaProducer.
type Producer interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller relays committed outbox rows to Kafka. Delivery is at least
// once: a crash between publish and mark republishes the event.
type OutboxPoller struct {
	repo      outbox.Repository
	tx        postgres.Transactor
	producer  Producer
	interval  time.Duration
	batchSize int
	logger    logger.ZapLogger
}

func NewOutboxPoller(
	repo outbox.Repository,
	tx postgres.Transactor,
	producer Producer,
	interval time.Duration,
	batchSize int,
	log logger.ZapLogger,
) *OutboxPoller {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxPoller{
		repo:      repo,
		tx:        tx,
		producer:  producer,
		interval:  interval,
		batchSize: batchSize,
		logger:    log,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	p.logger.Info("Starting outbox poller", zap.Duration("interval", p.interval))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Outbox batch failed", zap.Error(err))
			}
		case <-ctx.Done():
			p.logger.Info("Stopping outbox poller")
			return
		}
	}
}

// ProcessBatch publishes one batch and returns how many events went out.
// It stops at the first publish failure so ordering per aggregate holds;
// events already published in the batch stay marked.
func (p *OutboxPoller) ProcessBatch(ctx context.Context) (int, error) {
	published := 0
	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		events, err := p.repo.FetchUnprocessed(ctx, p.batchSize)
		if err != nil {
			return err
		}

		for i := range events {
			event := &events[i]
			if err := p.producer.Publish(ctx, toMessage(event)); err != nil {
				p.logger.Warn("Failed to publish outbox event",
					zap.String("event_id", event.ID),
					zap.String("event_type", event.EventType),
					zap.Error(err),
				)
				return nil
			}
			if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	if published > 0 {
		p.logger.Debug("Outbox events published", zap.Int("count", published))
	}
	return published, err
}

func toMessage(event *model.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(event.AggregateID), // sale id for ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
}
