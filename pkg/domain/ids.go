// Package domain holds the shared domain primitives of the governance core:
// typed identifiers, the logical sequence clock, and the identity hash used by
// the anti-Sybil check. Primitives validate at parse time so invalid values
// cannot travel past a trust boundary.
//
// Everything here is pure: no I/O, no wall clock, no randomness. The sequence
// is supplied by the execution environment on every operation and is the only
// notion of "now" the core understands.
package domain

import (
	"encoding/hex"

	dErrors "quorum/pkg/domain-errors"
)

// AccountID is the opaque caller identity assigned by the execution
// environment. The core never generates these.
type AccountID string

// MaxAccountIDLen bounds stored identifiers; anything longer is rejected at
// the boundary rather than truncated.
const MaxAccountIDLen = 128

// ParseAccountID validates an externally supplied account identifier.
func ParseAccountID(s string) (AccountID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account id must not be empty")
	}
	if len(s) > MaxAccountIDLen {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "account id exceeds %d bytes", MaxAccountIDLen)
	}
	return AccountID(s), nil
}

// IsNil reports whether the id is the zero value.
func (a AccountID) IsNil() bool { return a == "" }

func (a AccountID) String() string { return string(a) }

// ProposalID is a monotonic counter assigned by the proposal store.
type ProposalID uint64

// IsNil reports whether the id is unassigned (ids start at 1).
func (p ProposalID) IsNil() bool { return p == 0 }

// DisputeID is a monotonic counter assigned by the dispute store.
type DisputeID uint64

// IsNil reports whether the id is unassigned (ids start at 1).
func (d DisputeID) IsNil() bool { return d == 0 }

// EntryID is a monotonic counter assigned by the audit log.
type EntryID uint64

// Sequence is the externally supplied logical clock (block height
// equivalent). It is monotonic across transitions; the core never derives it
// from the wall clock or from call order.
type Sequence uint64

// Add returns the sequence advanced by d. Saturates instead of wrapping so a
// hostile duration cannot produce a lock in the past.
func (s Sequence) Add(d uint64) Sequence {
	sum := uint64(s) + d
	if sum < uint64(s) {
		return Sequence(^uint64(0))
	}
	return Sequence(sum)
}

// After reports whether s is strictly later than other.
func (s Sequence) After(other Sequence) bool { return s > other }

// IdentityHash is the 32-byte digest binding a verified account to a
// real-world identity. Global uniqueness across verified accounts is the
// anti-Sybil guarantee.
type IdentityHash [32]byte

// ParseIdentityHash decodes a 64-character hex digest.
func ParseIdentityHash(s string) (IdentityHash, error) {
	var h IdentityHash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, dErrors.Wrap(err, dErrors.CodeInvalidInput, "identity hash is not valid hex")
	}
	if len(raw) != len(h) {
		return h, dErrors.Newf(dErrors.CodeInvalidInput, "identity hash must be %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	if h.IsZero() {
		return IdentityHash{}, dErrors.New(dErrors.CodeInvalidInput, "identity hash must not be all zeros")
	}
	return h, nil
}

// IsZero reports whether the hash is unset.
func (h IdentityHash) IsZero() bool { return h == IdentityHash{} }

func (h IdentityHash) String() string { return hex.EncodeToString(h[:]) }
