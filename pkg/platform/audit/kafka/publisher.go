// Package kafka forwards committed audit entries to a Kafka topic so
// out-of-process observers (compliance archives, SIEM pipelines) can consume
// the governance ledger without touching the primary store.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "quorum/pkg/platform/audit"
)

// Publisher produces audit entries to a single topic, keyed by actor so one
// account's history stays ordered within a partition.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// New connects to the brokers and ensures the topic exists.
func New(brokers []string, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	if err := ensureTopic(client, topic); err != nil {
		client.Close()
		return nil, err
	}

	return &Publisher{client: client, topic: topic}, nil
}

func ensureTopic(client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	ctx := context.Background()

	existing, err := adm.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	if existing.Has(topic) {
		return nil
	}

	// Single partition keeps the global entry-id order observable downstream.
	if _, err := adm.CreateTopic(ctx, 1, -1, nil, topic); err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}

// payload is the wire form of an audit entry.
type payload struct {
	ID         uint64 `json:"id"`
	Action     string `json:"action"`
	Category   string `json:"category"`
	Actor      string `json:"actor"`
	Target     string `json:"target,omitempty"`
	ProposalID uint64 `json:"proposal_id,omitempty"`
	Sequence   uint64 `json:"sequence"`
	Detail     string `json:"detail,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// Publish produces one entry and waits for the broker ack.
func (p *Publisher) Publish(ctx context.Context, entry audit.Entry) error {
	body, err := json.Marshal(payload{
		ID:         uint64(entry.ID),
		Action:     string(entry.Action),
		Category:   string(entry.Action.Category()),
		Actor:      entry.Actor.String(),
		Target:     entry.Target.String(),
		ProposalID: uint64(entry.ProposalID),
		Sequence:   uint64(entry.Sequence),
		Detail:     entry.Detail,
		RequestID:  entry.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(entry.Actor.String()),
		Value: body,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit entry: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *Publisher) Close() {
	p.client.Close()
}
