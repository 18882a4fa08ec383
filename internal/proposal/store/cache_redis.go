package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"quorum/internal/proposal/models"
	"quorum/pkg/domain"
	"quorum/pkg/platform/circuit"
	txcontext "quorum/pkg/platform/tx"
)

const (
	// Redis key prefix for cached proposals
	proposalKeyPrefix = "proposal:id:"

	proposalCacheTTL = 30 * time.Second
)

// CachedStore decorates a proposal store with a Redis read-through cache for
// plain reads. Reads inside a state transition bypass the cache entirely: a
// transition's read-modify-write must see the backing store, never a cached
// tally. Writes hit the backing store first and invalidate the cached entry
// after, so a read racing the invalidation can leave at most one TTL window
// of staleness on the read surface. Cache failures degrade to the backing
// store rather than surfacing errors; a breaker stops hammering an
// unreachable Redis. Invalidations double as recovery probes: they are
// attempted even while the breaker is open.
type CachedStore struct {
	inner   ProposalStore
	client  *redis.Client
	logger  *slog.Logger
	breaker *circuit.Breaker
}

// ProposalStore is the persistence surface CachedStore wraps.
type ProposalStore interface {
	Create(ctx context.Context, p models.Proposal) (models.Proposal, error)
	FindByID(ctx context.Context, id domain.ProposalID) (models.Proposal, error)
	Save(ctx context.Context, p models.Proposal) error
	Count(ctx context.Context) (uint64, error)
}

func NewCachedStore(inner ProposalStore, client *redis.Client, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{
		inner:   inner,
		client:  client,
		logger:  logger,
		breaker: circuit.New("proposal-cache", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(2)),
	}
}

func (c *CachedStore) Create(ctx context.Context, p models.Proposal) (models.Proposal, error) {
	return c.inner.Create(ctx, p)
}

func (c *CachedStore) FindByID(ctx context.Context, id domain.ProposalID) (models.Proposal, error) {
	if txcontext.InTx(ctx) {
		return c.inner.FindByID(ctx, id)
	}

	key := cacheKey(id)
	if !c.breaker.IsOpen() {
		raw, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			c.recordSuccess()
			var p models.Proposal
			if uerr := json.Unmarshal(raw, &p); uerr == nil {
				return p, nil
			}
			// Corrupt entry; drop it and fall through to the store.
			c.client.Del(ctx, key)
		case errors.Is(err, redis.Nil):
			c.recordSuccess()
		default:
			c.recordFailure(err)
		}
	}

	p, err := c.inner.FindByID(ctx, id)
	if err != nil {
		return models.Proposal{}, err
	}
	if c.breaker.IsOpen() {
		return p, nil
	}
	if raw, merr := json.Marshal(p); merr == nil {
		if serr := c.client.Set(ctx, key, raw, proposalCacheTTL).Err(); serr != nil {
			c.recordFailure(serr)
		}
	}
	return p, nil
}

func (c *CachedStore) Save(ctx context.Context, p models.Proposal) error {
	if err := c.inner.Save(ctx, p); err != nil {
		return err
	}
	// Invalidation follows the write so a racing plain read cannot
	// repopulate the key with the pre-save row and outlive the delete. It
	// runs even while the breaker is open; a successful delete is the
	// signal that Redis is back.
	if err := c.client.Del(ctx, cacheKey(p.ID)).Err(); err != nil {
		c.recordFailure(err)
		c.logger.Warn("proposal cache invalidation failed", "proposal_id", uint64(p.ID), "error", err)
	} else {
		c.recordSuccess()
	}
	return nil
}

func (c *CachedStore) Count(ctx context.Context) (uint64, error) {
	return c.inner.Count(ctx)
}

func (c *CachedStore) recordFailure(err error) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.Warn("proposal cache circuit opened", "error", err)
	}
}

func (c *CachedStore) recordSuccess() {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("proposal cache circuit closed")
	}
}

func cacheKey(id domain.ProposalID) string {
	return fmt.Sprintf("%s%d", proposalKeyPrefix, uint64(id))
}
