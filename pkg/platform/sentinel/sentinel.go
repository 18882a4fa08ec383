package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into coded
// domain errors.
//
// These represent factual states about stored entities, not validation
// failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: unique key already taken (registration, identity hash,
//   vote record, open dispute triple)
// - ErrLocked: entity is under an active sequence lock
// - ErrInvalidState: entity in wrong lifecycle state for requested operation
// - ErrInsufficientFunds: a ledger holder cannot cover the requested amount
// - ErrUnavailable: backing store or cache temporarily unavailable
//
// For validation errors (bad input, out-of-policy values), use
// pkg/domain-errors directly.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrLocked            = errors.New("locked")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnavailable       = errors.New("unavailable")
)
