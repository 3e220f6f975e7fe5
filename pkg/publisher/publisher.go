// Package publisher implements the boundary between the capture hot
// loop and the durable message bus: synchronous, at-least-one-attempt
// delivery of each feature vector, with failures logged and dropped
// rather than rolled back.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	jsoniter "github.com/json-iterator/go"

	"github.com/flowmetrics/flowcap/pkg/flow"
	"github.com/flowmetrics/flowcap/pkg/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config carries the bus section of the external interface contract.
type Config struct {
	BootstrapServers []string
	Topic            string
	ClientID         string

	// ReconnectInterval is how long to wait between reconnect attempts
	// when the producer goes away.
	ReconnectInterval time.Duration
	// MaxReconnectAttempts bounds a single reconnect sequence; 0 means
	// retry forever.
	MaxReconnectAttempts int
}

// DefaultReconnectInterval matches the producer's own internal retry
// cadence closely enough to avoid hammering the broker.
const DefaultReconnectInterval = 5 * time.Second

// KafkaPublisher is the Emitter implementation backing production use: a
// sarama SyncProducer that reconnects with backoff when the broker goes
// away rather than failing the capture process.
type KafkaPublisher struct {
	cfg      Config
	producer sarama.SyncProducer
}

// New dials the Kafka cluster and returns a ready KafkaPublisher.
func New(cfg Config) (*KafkaPublisher, error) {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	p := &KafkaPublisher{cfg: cfg}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *KafkaPublisher) connect() error {
	cfg := sarama.NewConfig()
	cfg.ClientID = p.cfg.ClientID
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(p.cfg.BootstrapServers, cfg)
	if err != nil {
		return fmt.Errorf("publisher: failed to connect to %v: %w", p.cfg.BootstrapServers, err)
	}
	p.producer = producer
	return nil
}

// reconnect retries connect() until it succeeds or the reconnect budget
// (if any) is exhausted, logging every failed attempt and continuing
// rather than failing the whole process over a transient broker outage.
func (p *KafkaPublisher) reconnect(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	attempt := 0
	for {
		attempt++
		if err := p.connect(); err != nil {
			logger.Errorf("publisher: reconnect attempt %d failed: %v", attempt, err)
			if p.cfg.MaxReconnectAttempts > 0 && attempt >= p.cfg.MaxReconnectAttempts {
				return fmt.Errorf("publisher: exhausted %d reconnect attempts: %w", attempt, err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.ReconnectInterval):
			}
			continue
		}
		logger.Info("publisher: reconnected to bus")
		return nil
	}
}

// partitionKey derives the routing key for a feature vector per the
// publisher boundary contract.
func partitionKey(v flow.Vector) string {
	if v.SrcIP == "" || v.SrcPort == 0 {
		return "unknown:0"
	}
	return fmt.Sprintf("%s:%d", v.SrcIP, v.SrcPort)
}

// Emit serializes v to JSON, derives its partition key, and hands it to
// the producer synchronously. A failed send is logged and the vector is
// dropped: the local flow state has already been updated and is never
// rolled back.
func (p *KafkaPublisher) Emit(ctx context.Context, v flow.Vector) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		logging.FromContext(ctx).Errorf("publisher: failed to marshal feature vector: %v", err)
		return false
	}

	msg := &sarama.ProducerMessage{
		Topic: p.cfg.Topic,
		Key:   sarama.StringEncoder(partitionKey(v)),
		Value: sarama.ByteEncoder(payload),
	}

	_, _, err = p.producer.SendMessage(msg)
	if err != nil {
		logging.FromContext(ctx).Errorf("publisher: failed to publish feature vector: %v", err)
		if reconnErr := p.reconnect(ctx); reconnErr != nil {
			logging.FromContext(ctx).Errorf("publisher: %v", reconnErr)
		}
		return false
	}
	return true
}

// Close releases the underlying producer.
func (p *KafkaPublisher) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
