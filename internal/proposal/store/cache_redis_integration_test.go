//go:build integration

package store_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"quorum/internal/proposal/models"
	"quorum/internal/proposal/store"
	"quorum/pkg/domain"
	txcontext "quorum/pkg/platform/tx"
	"quorum/pkg/testutil/containers"
)

type CachedStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	inner *store.InMemoryStore
	store *store.CachedStore
}

func TestCachedStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedStoreSuite))
}

func (s *CachedStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
}

func (s *CachedStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.inner = store.NewInMemoryStore()
	s.store = store.NewCachedStore(s.inner, s.redis.Client, nil)
}

func (s *CachedStoreSuite) createProposal() models.Proposal {
	p, err := models.NewProposal("alice", "Expand the board", "", 10, 20, 1)
	s.Require().NoError(err)
	created, err := s.store.Create(context.Background(), p)
	s.Require().NoError(err)
	return created
}

func (s *CachedStoreSuite) TestReadThroughFillsCache() {
	ctx := context.Background()
	created := s.createProposal()

	found, err := s.store.FindByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.Title, found.Title)

	// A second read is served from the cache: mutating the backing store
	// directly is not visible until the entry is invalidated.
	stale := found
	stale.VotesFor = 999
	s.Require().NoError(s.inner.Save(ctx, stale))

	cached, err := s.store.FindByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(uint64(0), cached.VotesFor)
}

func (s *CachedStoreSuite) TestSaveInvalidatesCache() {
	ctx := context.Background()
	created := s.createProposal()

	_, err := s.store.FindByID(ctx, created.ID)
	s.Require().NoError(err)

	created.VotesFor = 500
	s.Require().NoError(s.store.Save(ctx, created))

	found, err := s.store.FindByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(uint64(500), found.VotesFor)
}

// TestTransitionReadsBypassCache pins the tally integrity rule: a
// read-modify-write inside a state transition must see the backing store
// even when the cache still holds an older row.
func (s *CachedStoreSuite) TestTransitionReadsBypassCache() {
	ctx := context.Background()
	created := s.createProposal()

	// Plain read fills the cache with the zero-vote row.
	_, err := s.store.FindByID(ctx, created.ID)
	s.Require().NoError(err)

	// The backing store moves on; the cached row is now stale.
	advanced := created
	advanced.VotesFor = 700
	s.Require().NoError(s.inner.Save(ctx, advanced))

	stale, err := s.store.FindByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(uint64(0), stale.VotesFor)

	fresh, err := s.store.FindByID(txcontext.Mark(ctx), created.ID)
	s.Require().NoError(err)
	s.Equal(uint64(700), fresh.VotesFor)
}

// TestSaveWritesStoreBeforeInvalidating pins the write ordering: after Save
// returns, a cache miss is guaranteed and the next read sees the new tally.
func (s *CachedStoreSuite) TestSaveWritesStoreBeforeInvalidating() {
	ctx := context.Background()
	created := s.createProposal()

	_, err := s.store.FindByID(ctx, created.ID)
	s.Require().NoError(err)

	created.VotesFor = 1000
	s.Require().NoError(s.store.Save(ctx, created))

	s.ErrorIs(s.redis.Client.Get(ctx, cacheKeyFor(created.ID)).Err(), redis.Nil)

	found, err := s.store.FindByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(uint64(1000), found.VotesFor)
}

func (s *CachedStoreSuite) TestCorruptEntryFallsBackToStore() {
	ctx := context.Background()
	created := s.createProposal()

	s.Require().NoError(s.redis.Client.Set(ctx, cacheKeyFor(created.ID), "not json", time.Minute).Err())

	found, err := s.store.FindByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.Title, found.Title)
}

// TestUnreachableRedisDegradesToStore verifies reads keep working when the
// cache endpoint is down and the breaker stops further cache traffic.
func (s *CachedStoreSuite) TestUnreachableRedisDegradesToStore() {
	ctx := context.Background()

	dead := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	})
	defer dead.Close()

	cached := store.NewCachedStore(s.inner, dead, nil)

	p, err := models.NewProposal("alice", "Quarterly dividend", "", 10, 20, 1)
	s.Require().NoError(err)
	created, err := cached.Create(ctx, p)
	s.Require().NoError(err)

	// Every read succeeds from the backing store; the failures trip the
	// breaker after the configured threshold.
	for i := 0; i < 5; i++ {
		found, err := cached.FindByID(ctx, created.ID)
		s.Require().NoError(err)
		s.Equal(created.Title, found.Title)
	}
}

func cacheKeyFor(id domain.ProposalID) string {
	return "proposal:id:" + strconv.FormatUint(uint64(id), 10)
}
