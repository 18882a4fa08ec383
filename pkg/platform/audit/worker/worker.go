package worker

import (
	"context"
	"log/slog"

	audit "quorum/pkg/platform/audit"
)

// Sink receives committed audit entries for delivery outside the process,
// e.g. the Kafka publisher.
type Sink interface {
	Publish(ctx context.Context, entry audit.Entry) error
}

// Worker consumes audit entries from a channel and forwards them to a sink.
// Delivery is best-effort: the store already holds the entry, so a failed
// forward is logged and skipped rather than retried in-line.
type Worker struct {
	sink   Sink
	inbox  <-chan audit.Entry
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan audit.Entry, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-w.inbox:
			if err := w.sink.Publish(ctx, entry); err != nil {
				w.logger.Warn("audit forward failed",
					"entry_id", uint64(entry.ID),
					"action", string(entry.Action),
					"err", err,
				)
			}
		}
	}
}
