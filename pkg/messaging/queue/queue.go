package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/erain9/bookd/pkg/messaging"
)

const (
	defaultBroker = "localhost:9092"
	defaultTopic  = "bookd-fills"
	maxRetry      = 5
)

// newSyncProducer is swapped out in tests
var newSyncProducer = sarama.NewSyncProducer

// newConsumer is swapped out in tests
var newConsumer = sarama.NewConsumer

// QueueMessageSender implements the MessageSender interface
// for sending messages to Kafka through sarama
type QueueMessageSender struct {
	producer sarama.SyncProducer
	topic    string
}

// NewQueueMessageSender creates a sender with a synchronous producer.
// Empty arguments fall back to the local defaults.
func NewQueueMessageSender(brokers []string, topic string) (*QueueMessageSender, error) {
	if len(brokers) == 0 {
		brokers = []string{defaultBroker}
	}
	if topic == "" {
		topic = defaultTopic
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = maxRetry
	config.Producer.Return.Successes = true

	producer, err := newSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &QueueMessageSender{producer: producer, topic: topic}, nil
}

// SendFillsMessage sends the FillsMessage to the Kafka queue
func (q *QueueMessageSender) SendFillsMessage(ctx context.Context, fills *messaging.FillsMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	messageBytes, err := json.Marshal(fills)
	if err != nil {
		return fmt.Errorf("failed to marshal fills message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.StringEncoder(fills.Key()),
		Value: sarama.ByteEncoder(messageBytes),
	}

	if _, _, err := q.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}
	return nil
}

// Close closes the producer
func (q *QueueMessageSender) Close() error {
	return q.producer.Close()
}

// QueueMessageConsumer reads fills messages from partition 0 of a topic
type QueueMessageConsumer struct {
	consumer sarama.Consumer
	topic    string
	done     chan struct{}
	once     sync.Once
}

// NewQueueMessageConsumer connects a consumer to the brokers
func NewQueueMessageConsumer(brokers []string, topic string) (*QueueMessageConsumer, error) {
	if len(brokers) == 0 {
		brokers = []string{defaultBroker}
	}
	if topic == "" {
		topic = defaultTopic
	}
	consumer, err := newConsumer(brokers, sarama.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	return &QueueMessageConsumer{
		consumer: consumer,
		topic:    topic,
		done:     make(chan struct{}),
	}, nil
}

// ConsumeFillsMessages calls handler for each decoded message until Close is
// called. Undecodable messages are skipped.
func (c *QueueMessageConsumer) ConsumeFillsMessages(handler func(*messaging.FillsMessage) error) error {
	pc, err := c.consumer.ConsumePartition(c.topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer pc.Close()

	for {
		select {
		case <-c.done:
			return nil
		case m, ok := <-pc.Messages():
			if !ok {
				return nil
			}
			var msg messaging.FillsMessage
			if err := json.Unmarshal(m.Value, &msg); err != nil {
				continue
			}
			if err := handler(&msg); err != nil {
				return err
			}
		case cerr, ok := <-pc.Errors():
			if !ok {
				return nil
			}
			return cerr
		}
	}
}

// Close stops consumption and closes the consumer
func (c *QueueMessageConsumer) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.consumer.Close()
}

var _ messaging.MessageSender = (*QueueMessageSender)(nil)
