package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erain9/bookd/pkg/messaging"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// messageReader is the subset of *kafka.Reader used by the consumer
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// FillsConsumer reads fills messages from a topic
type FillsConsumer struct {
	reader messageReader
}

// NewFillsConsumer creates a consumer in the given consumer group
func NewFillsConsumer(brokerAddr, topic, groupID string) (*FillsConsumer, error) {
	if brokerAddr == "" || topic == "" {
		return nil, fmt.Errorf("kafka broker address and topic are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{brokerAddr},
		Topic:   topic,
		GroupID: groupID,
	})
	return &FillsConsumer{reader: reader}, nil
}

// Consume calls handler for each message until ctx is done or the reader
// fails. Messages that do not decode are skipped.
func (c *FillsConsumer) Consume(ctx context.Context, logger zerolog.Logger, handler func(*messaging.FillsMessage) error) error {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		var msg messaging.FillsMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			logger.Warn().Err(err).Int64("offset", m.Offset).Msg("Skipping undecodable fills message")
			continue
		}
		if err := handler(&msg); err != nil {
			logger.Error().Err(err).Str("cycle_id", msg.CycleID).Msg("Fills handler failed")
		}
	}
}

// Close closes the underlying reader
func (c *FillsConsumer) Close() error {
	return c.reader.Close()
}

// SetupConsumer initializes and starts a Kafka consumer that logs published fills
func SetupConsumer(ctx context.Context, brokerAddr, topic string, logger zerolog.Logger) (*FillsConsumer, error) {
	consumer, err := NewFillsConsumer(brokerAddr, topic, "bookd-fills-logger")
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create Kafka consumer - continuing without Kafka support")
		return nil, err
	}

	go func() {
		logger.Info().Str("topic", topic).Msg("Starting Kafka consumer")
		err := consumer.Consume(ctx, logger, LogFills(logger))
		if err != nil {
			logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	return consumer, nil
}

// LogFills returns a handler that writes each fill to logger
func LogFills(logger zerolog.Logger) func(*messaging.FillsMessage) error {
	return func(msg *messaging.FillsMessage) error {
		for _, f := range msg.Fills {
			logger.Info().
				Str("cycle_id", msg.CycleID).
				Str("strategy", msg.Strategy).
				Str("symbol", f.Symbol).
				Str("price", f.Price).
				Uint64("qty", f.Quantity).
				Str("buy_cl_ord_id", f.BuyClOrdID).
				Str("sell_cl_ord_id", f.SellClOrdID).
				Msg("Received fill")
		}
		return nil
	}
}
