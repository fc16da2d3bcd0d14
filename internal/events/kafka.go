package events

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kerc-health/recordvault/internal/config"
)

// KafkaPublisher publishes ledger events to a single topic, keyed by MRN so
// all events for one record land on the same partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	log    *zap.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, log *zap.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}

	return &KafkaPublisher{writer: writer, topic: cfg.Topic, log: log}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e *Event) error {
	data, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.MRN),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
		Time: e.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	p.log.Info("kafka publisher closed")
	return nil
}
