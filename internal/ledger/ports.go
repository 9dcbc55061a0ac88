// Package ledger defines the ports between the HTTP/service layers and the
// persistence backends. The ledger is append-only: transactions are created,
// never edited or removed.
package ledger

import (
	"context"

	"bilancio/internal/core"
)

// TransactionFilter narrows a ledger listing. The zero value lists everything.
type TransactionFilter struct {
	CategoryID string
}

type (
	CategoryStore interface {
		// CreateCategory persists a new category and returns it with its
		// generated ID.
		CreateCategory(ctx context.Context, nc core.NewCategory) (core.Category, error)

		// GetCategory returns core.ErrCategoryNotFound for unknown IDs.
		GetCategory(ctx context.Context, id string) (core.Category, error)

		// ListCategories returns all categories; insertion order is not
		// guaranteed. With withTransactions set, each category carries its
		// transactions.
		ListCategories(ctx context.Context, withTransactions bool) ([]core.Category, error)
	}

	TransactionStore interface {
		// CreateTransaction appends to the ledger AND applies the signed
		// delta to the balance in a single atomic unit. Either both writes
		// are durable or neither is.
		CreateTransaction(ctx context.Context, nt core.NewTransaction) (core.Transaction, error)

		// GetTransaction returns core.ErrTransactionNotFound for unknown IDs.
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)

		// ListTransactions returns transactions ordered by date descending,
		// ties broken by creation sequence descending.
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
	}

	BalanceStore interface {
		// GetBalance returns core.ErrBalanceNotInitialized when the
		// singleton row is missing; it never creates the row.
		GetBalance(ctx context.Context) (core.Balance, error)

		// SumTransactions recomputes the running total from the ledger
		// alone, independently of the stored balance.
		SumTransactions(ctx context.Context) (int64, error)
	}

	// Store is the full persistence contract a backend must satisfy.
	Store interface {
		CategoryStore
		TransactionStore
		BalanceStore
	}
)
