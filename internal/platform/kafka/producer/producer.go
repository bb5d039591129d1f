// Package producer wraps the franz-go client behind the narrow publish
// surface the audit relay needs.
package producer

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes messages to a single topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

// New creates a producer for the given brokers and topic.
func New(brokers []string, topic string) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Producer{client: client, topic: topic}, nil
}

// Produce publishes one message synchronously and returns the first error.
func (p *Producer) Produce(ctx context.Context, key, value []byte) error {
	record := &kgo.Record{Topic: p.topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and shuts down the client.
func (p *Producer) Close() {
	p.client.Close()
}
