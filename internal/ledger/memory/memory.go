// Package memory provides a mutex-guarded in-memory ledger store. It backs
// local development and the test suites of the layers above storage.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

type Store struct {
	mu         sync.Mutex
	categories []core.Category
	txs        []core.Transaction
	nextSeq    int64

	balanceCents     int64
	balanceUpdatedAt time.Time
	balanceSeeded    bool

	createErr error
}

var _ ledger.Store = (*Store)(nil)

// New returns a store with the balance row already seeded at zero, matching
// what the SQLite seed migration produces.
func New() *Store {
	return &Store{balanceSeeded: true, balanceUpdatedAt: time.Now().UTC()}
}

// NewUnseeded returns a store without a balance row, for exercising the
// not-initialized read path.
func NewUnseeded() *Store {
	return &Store{}
}

// InjectCreateFailure makes the next CreateTransaction call fail with err
// before anything is written. Pass nil to clear.
func (s *Store) InjectCreateFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = err
}

func (s *Store) CreateCategory(_ context.Context, nc core.NewCategory) (core.Category, error) {
	if err := nc.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cat := core.Category{
		ID:        uuid.NewString(),
		Name:      nc.Name,
		Type:      nc.Type,
		CreatedAt: time.Now().UTC(),
	}
	s.categories = append(s.categories, cat)
	return cat, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return core.Category{}, core.ErrCategoryNotFound
}

func (s *Store) ListCategories(_ context.Context, withTransactions bool) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, len(s.categories))
	copy(out, s.categories)
	if withTransactions {
		for i := range out {
			out[i].Transactions = s.transactionsOfLocked(out[i].ID)
		}
	}
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, nt core.NewTransaction) (core.Transaction, error) {
	if err := nt.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		err := s.createErr
		s.createErr = nil
		return core.Transaction{}, err
	}
	if !s.balanceSeeded {
		return core.Transaction{}, core.ErrBalanceNotInitialized
	}
	if nt.CategoryID != "" && !s.hasCategoryLocked(nt.CategoryID) {
		return core.Transaction{}, core.ErrCategoryNotFound
	}

	s.nextSeq++
	tx := core.Transaction{
		ID:          uuid.NewString(),
		Amount:      nt.Amount,
		Description: nt.Description,
		Date:        nt.Date,
		Type:        nt.Type,
		CategoryID:  nt.CategoryID,
		Seq:         s.nextSeq,
		CreatedAt:   time.Now().UTC(),
	}

	// Both writes happen under one lock hold: the in-memory equivalent of
	// the SQLite store's single transaction.
	s.txs = append(s.txs, tx)
	s.balanceCents += tx.SignedCents()
	s.balanceUpdatedAt = time.Now().UTC()

	return tx, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, core.ErrTransactionNotFound
}

func (s *Store) ListTransactions(_ context.Context, f ledger.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if f.CategoryID != "" && t.CategoryID != f.CategoryID {
			continue
		}
		out = append(out, t)
	}
	sortTransactions(out)
	return out, nil
}

func (s *Store) GetBalance(_ context.Context) (core.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.balanceSeeded {
		return core.Balance{}, core.ErrBalanceNotInitialized
	}
	return core.Balance{
		Amount:    core.Money{Cents: s.balanceCents},
		UpdatedAt: s.balanceUpdatedAt,
	}, nil
}

func (s *Store) SumTransactions(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.SumSigned(s.txs), nil
}

func (s *Store) hasCategoryLocked(id string) bool {
	for _, c := range s.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) transactionsOfLocked(categoryID string) []core.Transaction {
	var out []core.Transaction
	for _, t := range s.txs {
		if t.CategoryID == categoryID {
			out = append(out, t)
		}
	}
	sortTransactions(out)
	return out
}

// sortTransactions orders by date descending with creation sequence
// descending as the deterministic tie-break.
func sortTransactions(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].Seq > txs[j].Seq
	})
}
