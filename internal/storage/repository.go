// Package storage implements the ledger store on SQLite.
//
// Transaction creation is the consistency-critical path: the ledger insert
// and the balance increment run inside one database transaction, and the
// increment is expressed in SQL so the read-modify-write happens atomically
// at the store, never in application code.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ ledger.Store = (*SQLiteRepository)(nil)

// dsn builds the connection string with the pragmas the repository relies
// on: WAL for concurrent readers, a busy timeout so concurrent writers queue
// instead of failing, and enforced foreign keys. Transactions start with an
// immediate lock; a deferred transaction that reads before writing would hit
// SQLITE_BUSY on the lock upgrade without waiting for the busy timeout.
func dsn(dbPath string) string {
	return "file:" + url.PathEscape(dbPath) +
		"?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, nc core.NewCategory) (core.Category, error) {
	if err := nc.Validate(); err != nil {
		return core.Category{}, err
	}

	cat := core.Category{
		ID:        uuid.NewString(),
		Name:      nc.Name,
		Type:      nc.Type,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, type, created_at) VALUES (?, ?, ?, ?)`,
		cat.ID, cat.Name, string(cat.Type), cat.CreatedAt)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}

	slog.InfoContext(ctx, "Category created",
		"id", cat.ID,
		"name", cat.Name,
		"type", string(cat.Type))

	return cat, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	var cat core.Category
	var typ string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, type, created_at FROM categories WHERE id = ?`, id).
		Scan(&cat.ID, &cat.Name, &typ, &cat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("select category: %w", err)
	}
	cat.Type = core.EntryType(typ)
	return cat, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, withTransactions bool) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, type, created_at FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var cat core.Category
		var typ string
		if err := rows.Scan(&cat.ID, &cat.Name, &typ, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cat.Type = core.EntryType(typ)
		cats = append(cats, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	if !withTransactions {
		return cats, nil
	}

	// One query for all categorized transactions, grouped in memory.
	txs, err := r.queryTransactions(ctx, `WHERE category_id IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	byCategory := make(map[string][]core.Transaction, len(cats))
	for _, t := range txs {
		byCategory[t.CategoryID] = append(byCategory[t.CategoryID], t)
	}
	for i := range cats {
		cats[i].Transactions = byCategory[cats[i].ID]
	}
	return cats, nil
}

// CreateTransaction appends to the ledger and moves the balance in one
// database transaction. A failure at any step rolls back both writes, so the
// ledger and the balance cannot diverge.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, nt core.NewTransaction) (core.Transaction, error) {
	if err := nt.Validate(); err != nil {
		return core.Transaction{}, err
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if nt.CategoryID != "" {
		var exists int
		err := dbTx.QueryRowContext(ctx,
			`SELECT 1 FROM categories WHERE id = ?`, nt.CategoryID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, core.ErrCategoryNotFound
		}
		if err != nil {
			return core.Transaction{}, fmt.Errorf("check category: %w", err)
		}
	}

	tx := core.Transaction{
		ID:          uuid.NewString(),
		Amount:      nt.Amount,
		Description: nt.Description,
		Date:        nt.Date.UTC(),
		Type:        nt.Type,
		CategoryID:  nt.CategoryID,
		CreatedAt:   time.Now().UTC(),
	}

	res, err := dbTx.ExecContext(ctx,
		`INSERT INTO transactions (id, amount_cents, description, date, type, category_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Amount.Cents, tx.Description, tx.Date, string(tx.Type),
		nullableID(tx.CategoryID), tx.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	tx.Seq, err = res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("read insert sequence: %w", err)
	}

	// Atomic in-place increment; never read-then-write from Go.
	res, err = dbTx.ExecContext(ctx,
		`UPDATE balance SET amount_cents = amount_cents + ?, updated_at = ? WHERE id = ?`,
		nt.SignedCents(), time.Now().UTC(), core.BalanceID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("apply balance delta: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("check balance update: %w", err)
	}
	if affected == 0 {
		return core.Transaction{}, core.ErrBalanceNotInitialized
	}

	if err := dbTx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", tx.ID,
		"seq", tx.Seq,
		"type", string(tx.Type),
		"amount_cents", tx.Amount.Cents,
		"signed_cents", nt.SignedCents())

	return tx, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	txs, err := r.queryTransactions(ctx, `WHERE id = ?`, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if len(txs) == 0 {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	return txs[0], nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]core.Transaction, error) {
	if f.CategoryID != "" {
		return r.queryTransactions(ctx, `WHERE category_id = ?`, f.CategoryID)
	}
	return r.queryTransactions(ctx, ``)
}

// queryTransactions runs the shared select with an optional WHERE clause.
// Ordering is date descending, creation sequence descending on ties.
func (r *SQLiteRepository) queryTransactions(ctx context.Context, where string, args ...any) ([]core.Transaction, error) {
	q := `SELECT seq, id, amount_cents, description, date, type, category_id, created_at
	      FROM transactions ` + where + ` ORDER BY date DESC, seq DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var tx core.Transaction
		var typ string
		var categoryID sql.NullString
		if err := rows.Scan(&tx.Seq, &tx.ID, &tx.Amount.Cents, &tx.Description,
			&tx.Date, &typ, &categoryID, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Type = core.EntryType(typ)
		tx.CategoryID = categoryID.String
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func (r *SQLiteRepository) GetBalance(ctx context.Context) (core.Balance, error) {
	var bal core.Balance
	err := r.db.QueryRowContext(ctx,
		`SELECT amount_cents, updated_at FROM balance WHERE id = ?`, core.BalanceID).
		Scan(&bal.Amount.Cents, &bal.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Balance{}, core.ErrBalanceNotInitialized
	}
	if err != nil {
		return core.Balance{}, fmt.Errorf("select balance: %w", err)
	}
	return bal, nil
}

func (r *SQLiteRepository) SumTransactions(ctx context.Context) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE -amount_cents END), 0)
		 FROM transactions`).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, nil
}

func nullableID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}
