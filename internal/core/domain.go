package core

import (
	"strings"
	"time"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

// BalanceID is the fixed key of the singleton balance row.
const BalanceID = "main-balance"

type (
	EntryType string

	Money struct {
		Cents int64
	}

	Category struct {
		ID        string
		Name      string
		Type      EntryType
		CreatedAt time.Time

		// Transactions is populated only when the caller asked for an
		// eager-loaded listing.
		Transactions []Transaction
	}

	Transaction struct {
		ID          string
		Amount      Money // magnitude, always >= 0; sign lives in Type
		Description string
		Date        time.Time
		Type        EntryType
		CategoryID  string // empty means uncategorized
		Seq         int64  // storage-assigned creation sequence
		CreatedAt   time.Time
	}

	// Balance is the singleton running total: Income sum minus expense sum
	// over every transaction in the ledger.
	Balance struct {
		Amount    Money // signed
		UpdatedAt time.Time
	}

	// NewCategory carries validated input for a category creation.
	NewCategory struct {
		Name string
		Type EntryType
	}

	// NewTransaction carries validated input for a ledger append.
	NewTransaction struct {
		Amount      Money
		Description string
		Date        time.Time
		Type        EntryType
		CategoryID  string
	}
)

// ParseEntryType validates a raw type string at the input boundary. Past this
// point the enum is closed and never trusted as free text again.
func ParseEntryType(s string) (EntryType, error) {
	switch EntryType(strings.TrimSpace(s)) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	default:
		return "", ErrInvalidEntryType
	}
}

func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

func (nc NewCategory) Validate() error {
	if strings.TrimSpace(nc.Name) == "" {
		return ErrEmptyCategoryName
	}
	if !nc.Type.Valid() {
		return ErrInvalidEntryType
	}
	return nil
}

func (nt NewTransaction) Validate() error {
	if !nt.Type.Valid() {
		return ErrInvalidEntryType
	}
	if nt.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if nt.Date.IsZero() {
		return ErrInvalidDate
	}
	if len(nt.Description) > 200 {
		return NewValidationError("description too long (max 200 characters)")
	}
	return nil
}

// SignedCents returns the transaction's contribution to the balance:
// positive for income, negative for expense.
func (nt NewTransaction) SignedCents() int64 {
	if nt.Type == Expense {
		return -nt.Amount.Cents
	}
	return nt.Amount.Cents
}

func (t Transaction) SignedCents() int64 {
	if t.Type == Expense {
		return -t.Amount.Cents
	}
	return t.Amount.Cents
}

// SumSigned folds the signed contributions of a set of transactions.
// Addition commutes, so the result is independent of order.
func SumSigned(txs []Transaction) int64 {
	var total int64
	for _, t := range txs {
		total += t.SignedCents()
	}
	return total
}
