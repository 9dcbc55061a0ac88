package worker

import (
	"context"
	"errors"
	"fmt"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
	"bilancio/internal/sheets"
)

// SyncWorker exports committed transactions to the configured sheet. It
// consumes lightweight notifications and fetches the authoritative row
// from the store, so a replayed or delayed message exports current data.
type SyncWorker struct {
	store  ledger.Store
	writer sheets.TransactionWriter
	logger *log.Logger
}

func NewSyncWorker(store ledger.Store, writer sheets.TransactionWriter, logger *log.Logger) *SyncWorker {
	return &SyncWorker{
		store:  store,
		writer: writer,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSyncMessage processes a single sync notification
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		log.FieldTransactionID, msg.ID,
		log.FieldSeq, msg.Seq)

	tx, err := w.store.GetTransaction(ctx, msg.ID)
	if err != nil {
		// A transaction the store no longer knows cannot be exported,
		// requeueing would loop forever.
		if errors.Is(err, core.ErrTransactionNotFound) {
			w.logger.WarnContext(ctx, "Transaction gone from store, dropping message",
				log.FieldTransactionID, msg.ID)
			return nil
		}
		return fmt.Errorf("get transaction from store: %w", err)
	}

	categoryName := ""
	if tx.CategoryID != "" {
		cat, err := w.store.GetCategory(ctx, tx.CategoryID)
		if err != nil && !errors.Is(err, core.ErrCategoryNotFound) {
			return fmt.Errorf("resolve category name: %w", err)
		}
		categoryName = cat.Name
	}

	ref, err := w.writer.Append(ctx, sheets.Row{Transaction: tx, CategoryName: categoryName})
	if err != nil {
		return fmt.Errorf("append to sheet: %w", err)
	}

	w.logger.InfoContext(ctx, "Transaction exported",
		log.FieldTransactionID, tx.ID,
		log.FieldAmountCents, tx.Amount.Cents,
		"sheet_ref", ref)
	return nil
}
