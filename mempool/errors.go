// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"errors"
	"fmt"
)

// Policy violation errors. These are wrapped into RuleError values with a
// machine-checkable RejectKind; callers match them with errors.Is.
var (
	// ErrTooManyEvictions indicates a replacement transaction would evict
	// too many transactions from the pool.
	ErrTooManyEvictions = errors.New("replacement evicts too many transactions")

	// ErrNonReplaceable indicates a transaction conflicts with pool
	// transactions that do not signal replaceability.
	ErrNonReplaceable = errors.New("conflicts do not signal replaceability")

	// ErrInsufficientAbsoluteFee indicates a replacement transaction has an
	// insufficient absolute fee compared to the transactions it's replacing.
	ErrInsufficientAbsoluteFee = errors.New("insufficient absolute fee for replacement")

	// ErrInsufficientFeeRate indicates a replacement transaction has an
	// insufficient fee rate compared to the transactions it's replacing.
	ErrInsufficientFeeRate = errors.New("insufficient fee rate for replacement")

	// ErrUnresolvableConflict indicates no valid eviction set exists for a
	// conflicting transaction, for example because the candidate descends
	// from a transaction it would evict.
	ErrUnresolvableConflict = errors.New("no valid eviction set for conflict")

	// ErrExceededAncestorLimit indicates a transaction would exceed the
	// maximum number or size of ancestors.
	ErrExceededAncestorLimit = errors.New("transaction exceeds ancestor limit")

	// ErrExceededDescendantLimit indicates a transaction would exceed the
	// maximum number or size of descendants.
	ErrExceededDescendantLimit = errors.New("transaction exceeds descendant limit")

	// ErrExceededPackageLimits indicates a package as a whole would exceed
	// the ancestor or descendant limits even though individual members
	// might pass.
	ErrExceededPackageLimits = errors.New("package exceeds ancestor/descendant limits")
)

// RejectKind categorizes why a transaction was refused admission.
type RejectKind int

const (
	// KindTopologyViolation is returned when a transaction violates the
	// TRUC topology rules.
	KindTopologyViolation RejectKind = iota

	// KindLimitViolation is returned when a transaction exceeds the
	// configured ancestor or descendant limits.
	KindLimitViolation

	// KindReplacementRejected is returned when a conflicting transaction
	// fails one of the replacement rules.
	KindReplacementRejected

	// KindConflictUnresolved is returned when a conflicting transaction
	// admits no valid eviction set at all.
	KindConflictUnresolved

	// KindDuplicate is returned when the transaction is already in the
	// pool.
	KindDuplicate

	// KindMissingInputs is returned when a transaction references an
	// output that is neither a known UTXO nor an output of a pool or
	// package transaction.
	KindMissingInputs
)

// String returns the RejectKind as a human-readable string.
func (k RejectKind) String() string {
	switch k {
	case KindTopologyViolation:
		return "topology-violation"
	case KindLimitViolation:
		return "limit-violation"
	case KindReplacementRejected:
		return "replacement-rejected"
	case KindConflictUnresolved:
		return "conflict-unresolved"
	case KindDuplicate:
		return "duplicate"
	case KindMissingInputs:
		return "missing-inputs"
	}
	return fmt.Sprintf("unknown-reject-kind-%d", int(k))
}

// RuleError identifies a policy rule violation. It carries the rejection
// category alongside the underlying error so callers can branch on either.
type RuleError struct {
	// Kind is the rejection category.
	Kind RejectKind

	// Err is the underlying error, usually wrapping one of the sentinel
	// policy errors above.
	Err error
}

// Error satisfies the error interface and prints the underlying error.
func (e RuleError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As matching.
func (e RuleError) Unwrap() error {
	return e.Err
}

// ruleError creates a RuleError with a formatted description. Sentinel errors
// are threaded through with %w so errors.Is keeps working.
func ruleError(kind RejectKind, format string, args ...interface{}) RuleError {
	return RuleError{
		Kind: kind,
		Err:  fmt.Errorf(format, args...),
	}
}

// ErrorKind extracts the rejection category from an error, if it carries one.
func ErrorKind(err error) (RejectKind, bool) {
	var ruleErr RuleError
	if errors.As(err, &ruleErr) {
		return ruleErr.Kind, true
	}
	return 0, false
}

// IsKind reports whether the error carries the given rejection category.
func IsKind(err error, kind RejectKind) bool {
	got, ok := ErrorKind(err)
	return ok && got == kind
}
