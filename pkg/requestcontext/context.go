// Package requestcontext provides transport-independent context accessors for
// request-scoped values.
//
// The execution environment supplies two inputs on every state transition:
// the caller identity and the current logical sequence (block height
// equivalent). Middleware sets both; services read them. Keeping this package
// free of net/http lets domain services import only what they need.
//
// Usage in services (read values):
//
//	caller := requestcontext.Caller(ctx)
//	seq := requestcontext.Sequence(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithCaller(ctx, caller)
//	ctx = requestcontext.WithSequence(ctx, seq)
//
// Usage in tests (inject a fixed clock):
//
//	ctx = requestcontext.WithSequence(ctx, domain.Sequence(42))
package requestcontext

import (
	"context"

	"quorum/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	callerKey    struct{}
	sequenceKey  struct{}
	requestIDKey struct{}
)

// Caller retrieves the caller account id from the context. Returns the zero
// value if not set.
func Caller(ctx context.Context) domain.AccountID {
	if caller, ok := ctx.Value(callerKey{}).(domain.AccountID); ok {
		return caller
	}
	return ""
}

// WithCaller injects the caller identity into the context.
func WithCaller(ctx context.Context, caller domain.AccountID) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// Sequence retrieves the externally supplied logical sequence. The zero value
// means the execution environment did not supply one; transitions must reject
// such requests rather than substitute wall-clock time.
func Sequence(ctx context.Context) domain.Sequence {
	if seq, ok := ctx.Value(sequenceKey{}).(domain.Sequence); ok {
		return seq
	}
	return 0
}

// WithSequence injects the logical sequence into the context.
func WithSequence(ctx context.Context, seq domain.Sequence) context.Context {
	return context.WithValue(ctx, sequenceKey{}, seq)
}

// RequestID retrieves the correlation id assigned by transport middleware.
func RequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}

// WithRequestID injects a correlation id into the context.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, rid)
}
