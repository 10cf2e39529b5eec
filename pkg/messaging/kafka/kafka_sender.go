package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erain9/bookd/pkg/messaging"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer used by the sender
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMessageSender implements MessageSender using Kafka
type KafkaMessageSender struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
}

// NewKafkaMessageSender creates a new Kafka message sender
func NewKafkaMessageSender(brokerAddr, topic string) (*KafkaMessageSender, error) {
	if brokerAddr == "" {
		return nil, fmt.Errorf("kafka broker address is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokerAddr),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	return &KafkaMessageSender{
		writer:  writer,
		topic:   topic,
		timeout: 5 * time.Second,
	}, nil
}

// SendFillsMessage sends a fills message to Kafka
func (k *KafkaMessageSender) SendFillsMessage(ctx context.Context, fills *messaging.FillsMessage) error {
	data, err := json.Marshal(fills)
	if err != nil {
		return fmt.Errorf("failed to marshal fills message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(fills.Key()),
		Value: data,
		Time:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}
	return nil
}

// Topic returns the destination topic
func (k *KafkaMessageSender) Topic() string {
	return k.topic
}

// Close closes the Kafka writer
func (k *KafkaMessageSender) Close() error {
	return k.writer.Close()
}

var _ messaging.MessageSender = (*KafkaMessageSender)(nil)
