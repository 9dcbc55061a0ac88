package core

import (
	"errors"
	"fmt"
)

// ValidationError marks malformed input. Handlers map it to a 4xx response;
// nothing is persisted when one is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	ErrInvalidAmount     = NewValidationError("invalid amount")
	ErrInvalidEntryType  = NewValidationError("type must be income or expense")
	ErrEmptyCategoryName = NewValidationError("category name cannot be empty")
	ErrInvalidDate       = NewValidationError("invalid date")

	ErrCategoryNotFound    = errors.New("category not found")
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrBalanceNotInitialized means the singleton balance row is missing.
	// The row is seeded by migration; reads never create it lazily.
	ErrBalanceNotInitialized = errors.New("balance not initialized")
)

// ConsistencyGapError reports a divergence between the stored balance and the
// signed sum of the ledger. The write path makes this unreachable (insert and
// increment share one storage transaction), so any occurrence points at
// out-of-band writes.
type ConsistencyGapError struct {
	BalanceCents int64
	LedgerCents  int64
}

func (e *ConsistencyGapError) Error() string {
	return fmt.Sprintf("balance diverged from ledger: balance=%d cents, ledger=%d cents", e.BalanceCents, e.LedgerCents)
}

func IsConsistencyGap(err error) bool {
	var ce *ConsistencyGapError
	return errors.As(err, &ce)
}
