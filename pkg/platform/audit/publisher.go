package audit

import (
	"context"

	"quorum/pkg/domain"
)

// Publisher captures structured audit entries. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily. When a
// forwarding sink is configured, committed entries are additionally offered to
// it without blocking the transition: the store is the source of truth, the
// sink is delivery to external observers.
type Publisher struct {
	store Store
	sink  chan<- Entry
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithSink forwards committed entries to a channel drained by a Worker.
func WithSink(sink chan<- Entry) Option {
	return func(p *Publisher) { p.sink = sink }
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit appends the entry to the log. The append participates in the caller's
// transaction (tx-in-context), so the entry commits iff the transition does.
func (p *Publisher) Emit(ctx context.Context, entry Entry) (Entry, error) {
	stored, err := p.store.Append(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	if p.sink != nil {
		select {
		case p.sink <- stored:
		default:
			// Observers replay from the store; a full sink never stalls a
			// transition.
		}
	}
	return stored, nil
}

// List returns the entries produced by one actor.
func (p *Publisher) List(ctx context.Context, actor domain.AccountID) ([]Entry, error) {
	return p.store.ListByActor(ctx, actor)
}

// GetByID returns a single entry.
func (p *Publisher) GetByID(ctx context.Context, id domain.EntryID) (Entry, error) {
	return p.store.GetByID(ctx, id)
}

// ListRecent returns the newest entries, newest first.
func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	return p.store.ListRecent(ctx, limit)
}

// Count reports the length of the log.
func (p *Publisher) Count(ctx context.Context) (uint64, error) {
	return p.store.Count(ctx)
}
