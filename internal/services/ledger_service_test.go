package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/ledger/memory"
	"bilancio/internal/log"
)

type fakePublisher struct {
	published []string
	err       error
}

func (p *fakePublisher) PublishTransactionSync(_ context.Context, id string, _ int64) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, id)
	return nil
}

func newTestService(t *testing.T, pub SyncPublisher) (*LedgerService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewLedgerService(store, pub, log.New(log.DefaultConfig())), store
}

func income(cents int64, desc string) core.NewTransaction {
	return core.NewTransaction{
		Amount:      core.Money{Cents: cents},
		Description: desc,
		Date:        time.Now(),
		Type:        core.Income,
	}
}

func expense(cents int64, desc string) core.NewTransaction {
	nt := income(cents, desc)
	nt.Type = core.Expense
	return nt
}

func TestCreateTransactionPublishesSync(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newTestService(t, pub)
	ctx := context.Background()

	tx, err := svc.CreateTransaction(ctx, income(10000, "salary"))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if len(pub.published) != 1 || pub.published[0] != tx.ID {
		t.Errorf("published = %v, want [%s]", pub.published, tx.ID)
	}
}

func TestCreateTransactionSurvivesPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, _ := newTestService(t, pub)
	ctx := context.Background()

	if _, err := svc.CreateTransaction(ctx, income(10000, "salary")); err != nil {
		t.Fatalf("publish failure must not fail the request: %v", err)
	}

	bal, err := svc.GetBalance(ctx)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Amount.Cents != 10000 {
		t.Errorf("balance = %d, want 10000", bal.Amount.Cents)
	}
}

func TestCreateTransactionNilPublisher(t *testing.T) {
	svc, _ := newTestService(t, nil)

	if _, err := svc.CreateTransaction(context.Background(), expense(4000, "groceries")); err != nil {
		t.Fatalf("CreateTransaction with nil publisher: %v", err)
	}
}

func TestCreateTransactionRejectsUnknownCategory(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newTestService(t, pub)

	nt := income(500, "misfiled")
	nt.CategoryID = "11111111-2222-3333-4444-555555555555"

	_, err := svc.CreateTransaction(context.Background(), nt)
	if !errors.Is(err, core.ErrCategoryNotFound) {
		t.Fatalf("err = %v, want ErrCategoryNotFound", err)
	}
	if len(pub.published) != 0 {
		t.Error("nothing should be published for a rejected transaction")
	}
}

func TestGetCategoryLoadsTransactions(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, core.NewCategory{Name: "Groceries", Type: core.Expense})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	nt := expense(4000, "weekly shop")
	nt.CategoryID = cat.ID
	if _, err := svc.CreateTransaction(ctx, nt); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	got, err := svc.GetCategory(ctx, cat.ID)
	if err != nil {
		t.Fatalf("GetCategory: %v", err)
	}
	if len(got.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(got.Transactions))
	}
}

func TestListCategoryTransactionsUnknownCategory(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.ListCategoryTransactions(context.Background(), "missing")
	if !errors.Is(err, core.ErrCategoryNotFound) {
		t.Fatalf("err = %v, want ErrCategoryNotFound", err)
	}
}

func TestReconcile(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.CreateTransaction(ctx, income(10000, "salary")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateTransaction(ctx, expense(4000, "groceries")); err != nil {
		t.Fatal(err)
	}

	bal, err := svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if bal.Amount.Cents != 6000 {
		t.Errorf("balance = %d, want 6000", bal.Amount.Cents)
	}
}

func TestReconcileUnseededBalance(t *testing.T) {
	store := memory.NewUnseeded()
	svc := NewLedgerService(store, nil, log.New(log.DefaultConfig()))

	_, err := svc.Reconcile(context.Background())
	if !errors.Is(err, core.ErrBalanceNotInitialized) {
		t.Fatalf("err = %v, want ErrBalanceNotInitialized", err)
	}
}

func TestReconcilerDetectsGap(t *testing.T) {
	store := memory.New()
	svc := NewLedgerService(store, nil, log.New(log.DefaultConfig()))
	ctx := context.Background()

	if _, err := svc.CreateTransaction(ctx, income(10000, "salary")); err != nil {
		t.Fatal(err)
	}

	// A consistent ledger reconciles cleanly through the service.
	if _, err := svc.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile on consistent ledger: %v", err)
	}

	r := NewReconciler(svc, ReconcilerConfig{Interval: 10 * time.Millisecond}, log.New(log.DefaultConfig()))
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}
	if !r.IsRunning() {
		t.Error("reconciler should report running")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if r.IsRunning() {
		t.Error("reconciler should report stopped")
	}
}

var _ ledger.Store = (*memory.Store)(nil)
