package services

import (
	"context"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
)

// SyncPublisher publishes export notifications for committed transactions
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id string, seq int64) error
}

// LedgerService orchestrates ledger operations across the store and the
// export pipeline. The store owns atomicity of the ledger append and the
// balance update; publishing is best-effort and never fails a request.
type LedgerService struct {
	store     ledger.Store
	publisher SyncPublisher
	logger    *log.Logger
}

// NewLedgerService creates a new ledger service. publisher may be nil,
// which disables the export pipeline.
func NewLedgerService(store ledger.Store, publisher SyncPublisher, logger *log.Logger) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

// CreateCategory persists a new category
func (s *LedgerService) CreateCategory(ctx context.Context, nc core.NewCategory) (core.Category, error) {
	cat, err := s.store.CreateCategory(ctx, nc)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	s.logger.InfoContext(ctx, "Category created",
		log.FieldCategoryID, cat.ID,
		log.FieldCategoryName, cat.Name,
		log.FieldEntryType, string(cat.Type))
	return cat, nil
}

// GetCategory returns a single category with its transactions loaded
func (s *LedgerService) GetCategory(ctx context.Context, id string) (core.Category, error) {
	cat, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}

	txs, err := s.store.ListTransactions(ctx, ledger.TransactionFilter{CategoryID: id})
	if err != nil {
		return core.Category{}, fmt.Errorf("load category transactions: %w", err)
	}
	cat.Transactions = txs
	return cat, nil
}

// ListCategories returns all categories, optionally with transactions
func (s *LedgerService) ListCategories(ctx context.Context, withTransactions bool) ([]core.Category, error) {
	return s.store.ListCategories(ctx, withTransactions)
}

// ListCategoryTransactions returns the transactions of one category,
// newest first. The category must exist.
func (s *LedgerService) ListCategoryTransactions(ctx context.Context, id string) ([]core.Transaction, error) {
	if _, err := s.store.GetCategory(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, ledger.TransactionFilter{CategoryID: id})
}

// CreateTransaction appends to the ledger, updates the balance and
// notifies the export pipeline. The append and the balance update commit
// together in the store; a publish failure only logs.
func (s *LedgerService) CreateTransaction(ctx context.Context, nt core.NewTransaction) (core.Transaction, error) {
	tx, err := s.store.CreateTransaction(ctx, nt)
	if err != nil {
		return core.Transaction{}, err
	}

	if err := s.publishSyncMessage(ctx, tx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			log.FieldTransactionID, tx.ID,
			log.FieldError, err.Error())
	}

	return tx, nil
}

// GetTransaction returns a single transaction
func (s *LedgerService) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// ListTransactions returns transactions newest first
func (s *LedgerService) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, f)
}

// GetBalance returns the stored running balance
func (s *LedgerService) GetBalance(ctx context.Context) (core.Balance, error) {
	return s.store.GetBalance(ctx)
}

// Reconcile recomputes the running total from the ledger and compares it
// against the stored balance. A mismatch returns a
// core.ConsistencyGapError carrying both figures.
func (s *LedgerService) Reconcile(ctx context.Context) (core.Balance, error) {
	bal, err := s.store.GetBalance(ctx)
	if err != nil {
		return core.Balance{}, err
	}

	ledgerCents, err := s.store.SumTransactions(ctx)
	if err != nil {
		return core.Balance{}, fmt.Errorf("sum transactions: %w", err)
	}

	if bal.Amount.Cents != ledgerCents {
		return bal, &core.ConsistencyGapError{
			BalanceCents: bal.Amount.Cents,
			LedgerCents:  ledgerCents,
		}
	}

	s.logger.DebugContext(ctx, "Balance reconciled",
		log.FieldOperation, log.OpReconcile,
		log.FieldBalanceCents, bal.Amount.Cents,
		log.FieldLedgerCents, ledgerCents)
	return bal, nil
}

func (s *LedgerService) publishSyncMessage(ctx context.Context, tx core.Transaction) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishTransactionSync(ctx, tx.ID, tx.Seq)
}
