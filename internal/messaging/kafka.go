// Package messaging wraps the Kafka transport behind small Producer and
// Consumer interfaces. Redelivery and retry live here and in the broker;
// the scoring path stays free of transport concerns.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Topic names a Kafka topic.
type Topic string

// Default topics for the AML screening pipeline.
const (
	TopicTransactionsCreated Topic = "aml.transactions.created"
	TopicAlertsRaised        Topic = "aml.alerts.raised"
	TopicQuarantine          Topic = "aml.transactions.quarantine"
)

// KafkaConfig contains configuration for the Kafka connection.
type KafkaConfig struct {
	Brokers             []string      `mapstructure:"brokers" json:"brokers"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	BatchTimeout        time.Duration `mapstructure:"batch_timeout" json:"batch_timeout"`
	RequiredAcks        int           `mapstructure:"required_acks" json:"required_acks"`
	MaxMessageBytes     int           `mapstructure:"max_message_bytes" json:"max_message_bytes"`
	ConsumerGroupPrefix string        `mapstructure:"consumer_group_prefix" json:"consumer_group_prefix"`
}

// DefaultKafkaConfig returns defaults suitable for local development.
func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Brokers:             []string{"localhost:9092"},
		WriteTimeout:        2 * time.Second,
		BatchTimeout:        10 * time.Millisecond,
		RequiredAcks:        -1, // all ISRs; alerts are compliance records
		MaxMessageBytes:     1048576,
		ConsumerGroupPrefix: "txmonitor",
	}
}

// Producer publishes JSON-encoded messages to a topic.
type Producer interface {
	Publish(ctx context.Context, topic Topic, key string, message interface{}) error
	Close() error
}

// MessageHandler processes a single received message. A returned error
// leaves the message to the transport's redelivery semantics.
type MessageHandler func(ctx context.Context, msg *ReceivedMessage) error

// Consumer subscribes a consumer group to a topic.
type Consumer interface {
	Subscribe(ctx context.Context, topic Topic, groupID string, handler MessageHandler) error
	Close() error
}

// ReceivedMessage is a consumed record with its transport metadata.
type ReceivedMessage struct {
	Topic     string
	Key       string
	Value     []byte
	Headers   map[string][]byte
	Offset    int64
	Partition int
	Timestamp time.Time
}

// KafkaProducer implements Producer with one writer per topic.
type KafkaProducer struct {
	config  *KafkaConfig
	writers map[Topic]*kafka.Writer
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewKafkaProducer creates a producer; a nil config uses defaults.
func NewKafkaProducer(config *KafkaConfig, logger *zap.Logger) *KafkaProducer {
	if config == nil {
		config = DefaultKafkaConfig()
	}
	return &KafkaProducer{
		config:  config,
		writers: make(map[Topic]*kafka.Writer),
		logger:  logger,
	}
}

func (p *KafkaProducer) getWriter(topic Topic) *kafka.Writer {
	p.mu.RLock()
	writer, ok := p.writers[topic]
	p.mu.RUnlock()
	if ok {
		return writer
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if writer, ok = p.writers[topic]; ok {
		return writer
	}
	writer = &kafka.Writer{
		Addr:         kafka.TCP(p.config.Brokers...),
		Topic:        string(topic),
		Balancer:     &kafka.Hash{},
		WriteTimeout: p.config.WriteTimeout,
		BatchTimeout: p.config.BatchTimeout,
		RequiredAcks: kafka.RequiredAcks(p.config.RequiredAcks),
		Compression:  kafka.Snappy,
	}
	p.writers[topic] = writer
	return writer
}

// Publish JSON-encodes the message and writes it keyed, so all events for
// one account land on one partition.
func (p *KafkaProducer) Publish(ctx context.Context, topic Topic, key string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message for topic %s: %w", topic, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	}
	if err := p.getWriter(topic).WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message",
			zap.Error(err),
			zap.String("topic", string(topic)),
			zap.String("key", key))
		return fmt.Errorf("write to topic %s: %w", topic, err)
	}
	return nil
}

// Close closes all topic writers.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil {
			lastErr = err
			p.logger.Error("Failed to close writer", zap.Error(err), zap.String("topic", string(topic)))
		}
	}
	return lastErr
}

// KafkaConsumer implements Consumer over group readers.
type KafkaConsumer struct {
	config  *KafkaConfig
	readers map[string]*kafka.Reader
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewKafkaConsumer creates a consumer; a nil config uses defaults.
func NewKafkaConsumer(config *KafkaConfig, logger *zap.Logger) *KafkaConsumer {
	if config == nil {
		config = DefaultKafkaConfig()
	}
	return &KafkaConsumer{
		config:  config,
		readers: make(map[string]*kafka.Reader),
		logger:  logger,
	}
}

// Subscribe starts a reader goroutine for the topic. Handler errors are
// logged and the offset is committed anyway: the pipeline quarantines
// poison messages itself rather than blocking the partition.
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic Topic, groupID string, handler MessageHandler) error {
	fullGroupID := fmt.Sprintf("%s-%s", c.config.ConsumerGroupPrefix, groupID)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.config.Brokers,
		Topic:    string(topic),
		GroupID:  fullGroupID,
		MaxBytes: c.config.MaxMessageBytes,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			c.logger.Error(fmt.Sprintf(msg, args...))
		}),
	})

	c.mu.Lock()
	c.readers[fullGroupID] = reader
	c.mu.Unlock()

	go func() {
		defer reader.Close()

		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				c.logger.Error("Failed to read message", zap.Error(err))
				continue
			}

			received := &ReceivedMessage{
				Topic:     msg.Topic,
				Key:       string(msg.Key),
				Value:     msg.Value,
				Headers:   make(map[string][]byte, len(msg.Headers)),
				Offset:    msg.Offset,
				Partition: msg.Partition,
				Timestamp: msg.Time,
			}
			for _, header := range msg.Headers {
				received.Headers[header.Key] = header.Value
			}

			if err := handler(ctx, received); err != nil {
				c.logger.Error("Message handler failed",
					zap.Error(err),
					zap.String("topic", msg.Topic),
					zap.Int64("offset", msg.Offset))
			}
		}
	}()

	return nil
}

// Close closes all group readers.
func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for groupID, reader := range c.readers {
		if err := reader.Close(); err != nil {
			lastErr = err
			c.logger.Error("Failed to close reader", zap.Error(err), zap.String("group", groupID))
		}
	}
	return lastErr
}
