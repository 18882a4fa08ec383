//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"quorum/pkg/domain"
	audit "quorum/pkg/platform/audit"
	auditkafka "quorum/pkg/platform/audit/kafka"
	"quorum/pkg/testutil/containers"
)

type PublisherSuite struct {
	suite.Suite
	broker string
}

func TestPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.broker = mgr.GetRedpanda(s.T()).Broker
}

type wirePayload struct {
	ID        uint64 `json:"id"`
	Action    string `json:"action"`
	Category  string `json:"category"`
	Actor     string `json:"actor"`
	Sequence  uint64 `json:"sequence"`
	Detail    string `json:"detail"`
	RequestID string `json:"request_id"`
}

func (s *PublisherSuite) consume(topic string, want int) []*kgo.Record {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer client.Close()

	deadline := time.Now().Add(15 * time.Second)
	var records []*kgo.Record
	for len(records) < want && time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		fetches := client.PollFetches(ctx)
		cancel()
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	s.Require().Len(records, want)
	return records
}

func (s *PublisherSuite) TestPublishDeliversEntry() {
	const topic = "audit-publish-test"

	publisher, err := auditkafka.New([]string{s.broker}, topic)
	s.Require().NoError(err)
	defer publisher.Close()

	entry := audit.Entry{
		ID:        42,
		Action:    audit.ActionVoteCast,
		Actor:     "alice",
		Sequence:  17,
		Detail:    "choice=for",
		RequestID: "req-123",
	}
	s.Require().NoError(publisher.Publish(context.Background(), entry))

	records := s.consume(topic, 1)
	s.Equal("alice", string(records[0].Key))

	var got wirePayload
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(uint64(42), got.ID)
	s.Equal("vote_cast", got.Action)
	s.Equal(string(audit.ActionVoteCast.Category()), got.Category)
	s.Equal("alice", got.Actor)
	s.Equal(uint64(17), got.Sequence)
	s.Equal("choice=for", got.Detail)
	s.Equal("req-123", got.RequestID)
}

func (s *PublisherSuite) TestSameActorStaysOrdered() {
	const topic = "audit-order-test"

	publisher, err := auditkafka.New([]string{s.broker}, topic)
	s.Require().NoError(err)
	defer publisher.Close()

	ctx := context.Background()
	for i := uint64(1); i <= 5; i++ {
		entry := audit.Entry{
			ID:       domain.EntryID(i),
			Action:   audit.ActionVoteCast,
			Actor:    "bob",
			Sequence: domain.Sequence(i),
		}
		s.Require().NoError(publisher.Publish(ctx, entry))
	}

	records := s.consume(topic, 5)
	for i, record := range records {
		var got wirePayload
		s.Require().NoError(json.Unmarshal(record.Value, &got))
		s.Equal(uint64(i+1), got.ID)
	}
}
