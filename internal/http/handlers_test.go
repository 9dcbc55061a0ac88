package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"bilancio/internal/ledger/memory"
	"bilancio/internal/log"
	"bilancio/internal/services"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := log.New(log.DefaultConfig())
	svc := services.NewLedgerService(memory.New(), nil, logger)
	s := NewServer(Config{Addr: ":0", RateLimitPerMinute: 1000}, svc, logger)
	t.Cleanup(func() { s.cacheManager.Stop(); s.limiter.Stop() })
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

type categoryBody struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Type         string             `json:"type"`
	Transactions *[]transactionBody `json:"transactions"`
}

type transactionBody struct {
	ID          string  `json:"id"`
	Amount      string  `json:"amount"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Type        string  `json:"type"`
	CategoryID  *string `json:"categoryId"`
	Seq         int64   `json:"seq"`
}

type balanceBody struct {
	Amount string `json:"amount"`
}

type reconcileBody struct {
	Balance     string `json:"balance"`
	LedgerTotal string `json:"ledgerTotal"`
	Consistent  bool   `json:"consistent"`
}

func TestCategoryLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/categories", map[string]string{
		"name": "Groceries",
		"type": "expense",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[categoryBody](t, rec)
	if created.ID == "" || created.Name != "Groceries" || created.Type != "expense" {
		t.Fatalf("unexpected category: %+v", created)
	}

	rec = doJSON(t, s, http.MethodGet, "/categories/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decodeBody[categoryBody](t, rec)
	if got.Transactions == nil {
		t.Error("single category fetch should carry a transactions array")
	}

	rec = doJSON(t, s, http.MethodGet, "/categories/11111111-2222-3333-4444-555555555555", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}
}

func TestCreateCategoryValidation(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name string
		body map[string]string
		want int
	}{
		{"missing name", map[string]string{"type": "expense"}, http.StatusUnprocessableEntity},
		{"bad type", map[string]string{"name": "x", "type": "transfer"}, http.StatusUnprocessableEntity},
		{"blank name", map[string]string{"name": "   ", "type": "income"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/categories", tc.body)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/categories", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestBalanceTracksLedger(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/balance", nil)
	if got := decodeBody[balanceBody](t, rec); got.Amount != "0.00" {
		t.Fatalf("initial balance = %s, want 0.00", got.Amount)
	}

	rec = doJSON(t, s, http.MethodPost, "/transactions", map[string]any{
		"amount":      "100.00",
		"description": "salary",
		"date":        "2024-03-01",
		"type":        "income",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("income status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/balance", nil)
	if got := decodeBody[balanceBody](t, rec); got.Amount != "100.00" {
		t.Fatalf("balance after income = %s, want 100.00", got.Amount)
	}

	rec = doJSON(t, s, http.MethodPost, "/transactions", map[string]any{
		"amount":      40,
		"description": "groceries",
		"date":        "2024-03-02",
		"type":        "expense",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expense status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/balance", nil)
	if got := decodeBody[balanceBody](t, rec); got.Amount != "60.00" {
		t.Fatalf("balance after expense = %s, want 60.00", got.Amount)
	}

	rec = doJSON(t, s, http.MethodGet, "/balance/reconcile", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reconcile status = %d", rec.Code)
	}
	recon := decodeBody[reconcileBody](t, rec)
	if !recon.Consistent || recon.Balance != "60.00" || recon.LedgerTotal != "60.00" {
		t.Errorf("reconcile = %+v", recon)
	}
}

func TestTransactionsOrderedNewestFirst(t *testing.T) {
	s := newTestServer(t)

	for i, date := range []string{"2024-01-10", "2024-03-05", "2024-02-20"} {
		rec := doJSON(t, s, http.MethodPost, "/transactions", map[string]any{
			"amount":      "1.00",
			"description": fmt.Sprintf("tx %d", i),
			"date":        date,
			"type":        "income",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %d status = %d", i, rec.Code)
		}
	}

	rec := doJSON(t, s, http.MethodGet, "/transactions", nil)
	txs := decodeBody[[]transactionBody](t, rec)
	if len(txs) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txs))
	}
	for i := 1; i < len(txs); i++ {
		if txs[i-1].Date < txs[i].Date {
			t.Errorf("transactions out of order: %s before %s", txs[i-1].Date, txs[i].Date)
		}
	}
}

func TestCreateTransactionUnknownCategory(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/transactions", map[string]any{
		"amount":      "5.00",
		"description": "misfiled",
		"date":        "2024-03-01",
		"type":        "income",
		"categoryId":  "11111111-2222-3333-4444-555555555555",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (%s)", rec.Code, rec.Body.String())
	}

	// Nothing persisted, balance untouched.
	rec = doJSON(t, s, http.MethodGet, "/transactions", nil)
	if txs := decodeBody[[]transactionBody](t, rec); len(txs) != 0 {
		t.Errorf("ledger should be empty, got %d entries", len(txs))
	}
	rec = doJSON(t, s, http.MethodGet, "/balance", nil)
	if got := decodeBody[balanceBody](t, rec); got.Amount != "0.00" {
		t.Errorf("balance = %s, want 0.00", got.Amount)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"negative amount", map[string]any{"amount": "-5.00", "description": "x", "date": "2024-01-01", "type": "expense"}, http.StatusUnprocessableEntity},
		{"bad type", map[string]any{"amount": "5.00", "description": "x", "date": "2024-01-01", "type": "transfer"}, http.StatusUnprocessableEntity},
		{"bad date", map[string]any{"amount": "5.00", "description": "x", "date": "01/02/2024", "type": "income"}, http.StatusUnprocessableEntity},
		{"unparsable amount", map[string]any{"amount": "five", "description": "x", "date": "2024-01-01", "type": "income"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/transactions", tc.body)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestCategoryTransactionsEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/categories", map[string]string{"name": "Salary", "type": "income"})
	cat := decodeBody[categoryBody](t, rec)

	rec = doJSON(t, s, http.MethodPost, "/transactions", map[string]any{
		"amount":      "100.00",
		"description": "march pay",
		"date":        "2024-03-01",
		"type":        "income",
		"categoryId":  cat.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	// One uncategorized entry that must not show up in the filtered views.
	doJSON(t, s, http.MethodPost, "/transactions", map[string]any{
		"amount":      "1.00",
		"description": "stray",
		"date":        "2024-03-02",
		"type":        "expense",
	})

	rec = doJSON(t, s, http.MethodGet, "/categories/"+cat.ID+"/transactions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	txs := decodeBody[[]transactionBody](t, rec)
	if len(txs) != 1 || txs[0].Description != "march pay" {
		t.Fatalf("filtered list = %+v", txs)
	}

	rec = doJSON(t, s, http.MethodGet, "/transactions?categoryId="+cat.ID, nil)
	if txs := decodeBody[[]transactionBody](t, rec); len(txs) != 1 {
		t.Errorf("query filter returned %d entries, want 1", len(txs))
	}

	rec = doJSON(t, s, http.MethodGet, "/categories/unknown-id/transactions", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown category status = %d, want 404", rec.Code)
	}
}

func TestListCategoriesWithTransactionsToggle(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/categories", map[string]string{"name": "Rent", "type": "expense"})

	rec := doJSON(t, s, http.MethodGet, "/categories", nil)
	cats := decodeBody[[]categoryBody](t, rec)
	if len(cats) != 1 || cats[0].Transactions == nil {
		t.Fatalf("default listing should eager-load transactions: %+v", cats)
	}

	rec = doJSON(t, s, http.MethodGet, "/categories?withTransactions=false", nil)
	cats = decodeBody[[]categoryBody](t, rec)
	if len(cats) != 1 || cats[0].Transactions != nil {
		t.Fatalf("plain listing should omit transactions: %+v", cats)
	}
}

func TestListCachesInvalidatedOnWrite(t *testing.T) {
	s := newTestServer(t)

	// Prime the cache with an empty listing.
	rec := doJSON(t, s, http.MethodGet, "/transactions", nil)
	if txs := decodeBody[[]transactionBody](t, rec); len(txs) != 0 {
		t.Fatalf("expected empty ledger, got %d", len(txs))
	}

	doJSON(t, s, http.MethodPost, "/transactions", map[string]any{
		"amount":      "2.50",
		"description": "coffee",
		"date":        "2024-03-01",
		"type":        "expense",
	})

	rec = doJSON(t, s, http.MethodGet, "/transactions", nil)
	if txs := decodeBody[[]transactionBody](t, rec); len(txs) != 1 {
		t.Errorf("listing after write = %d entries, want 1 (stale cache?)", len(txs))
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	if rec := doJSON(t, s, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d", rec.Code)
	}
}

func TestReadyzFailsWithoutBalanceRow(t *testing.T) {
	logger := log.New(log.DefaultConfig())
	svc := services.NewLedgerService(memory.NewUnseeded(), nil, logger)
	s := NewServer(Config{Addr: ":0", RateLimitPerMinute: 1000}, svc, logger)
	t.Cleanup(func() { s.cacheManager.Stop(); s.limiter.Stop() })

	if rec := doJSON(t, s, http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz = %d, want 503", rec.Code)
	}
}
