package sheets

import (
	"context"

	"bilancio/internal/core"
)

// Row is one exported ledger entry. CategoryName is resolved by the
// caller so the sheet stays readable without ID lookups.
type Row struct {
	Transaction  core.Transaction
	CategoryName string
}

// TransactionWriter is the outbound port for the export pipeline
type TransactionWriter interface {
	// Append writes one row and returns a reference to where it landed
	Append(ctx context.Context, row Row) (rowRef string, err error)
}
