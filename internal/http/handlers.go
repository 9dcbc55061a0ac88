package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
)

type categoryResponse struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Type         string                 `json:"type"`
	CreatedAt    time.Time              `json:"createdAt"`
	Transactions *[]transactionResponse `json:"transactions,omitempty"`
}

type transactionResponse struct {
	ID          string     `json:"id"`
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	Date        time.Time  `json:"date"`
	Type        string     `json:"type"`
	CategoryID  *string    `json:"categoryId"`
	Seq         int64      `json:"seq"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type balanceResponse struct {
	Amount    core.Money `json:"amount"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type reconcileResponse struct {
	Balance     core.Money `json:"balance"`
	LedgerTotal core.Money `json:"ledgerTotal"`
	Consistent  bool       `json:"consistent"`
}

type createCategoryRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type createTransactionRequest struct {
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
	Type        string     `json:"type"`
	CategoryID  string     `json:"categoryId"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:          tx.ID,
		Amount:      tx.Amount,
		Description: tx.Description,
		Date:        tx.Date,
		Type:        string(tx.Type),
		Seq:         tx.Seq,
		CreatedAt:   tx.CreatedAt,
	}
	if tx.CategoryID != "" {
		id := tx.CategoryID
		resp.CategoryID = &id
	}
	return resp
}

func toTransactionResponses(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	return out
}

func toCategoryResponse(cat core.Category, withTransactions bool) categoryResponse {
	resp := categoryResponse{
		ID:        cat.ID,
		Name:      cat.Name,
		Type:      string(cat.Type),
		CreatedAt: cat.CreatedAt,
	}
	if withTransactions {
		txs := toTransactionResponses(cat.Transactions)
		resp.Transactions = &txs
	}
	return resp
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Nested transactions are included unless explicitly turned off.
	withTransactions := true
	if v := strings.TrimSpace(r.URL.Query().Get("withTransactions")); v != "" {
		withTransactions = v != "false" && v != "0"
	}

	cacheKey := "categories:plain"
	if withTransactions {
		cacheKey = "categories:eager"
	}

	cats, ok := s.categoriesCache.Get(cacheKey)
	if !ok {
		var err error
		cats, err = s.service.ListCategories(ctx, withTransactions)
		if err != nil {
			respondStoreError(ctx, w, err)
			return
		}
		s.categoriesCache.Set(cacheKey, cats)
	}

	out := make([]categoryResponse, 0, len(cats))
	for _, cat := range cats {
		out = append(out, toCategoryResponse(cat, withTransactions))
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	entryType, err := core.ParseEntryType(req.Type)
	if err != nil {
		respondError(ctx, w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	cat, err := s.service.CreateCategory(ctx, core.NewCategory{
		Name: strings.TrimSpace(req.Name),
		Type: entryType,
	})
	if err != nil {
		respondStoreError(ctx, w, err)
		return
	}

	s.invalidateListCaches()
	respondJSON(ctx, w, http.StatusCreated, toCategoryResponse(cat, false))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cat, err := s.service.GetCategory(ctx, r.PathValue("id"))
	if err != nil {
		respondStoreError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toCategoryResponse(cat, true))
}

func (s *Server) handleListCategoryTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txs, err := s.service.ListCategoryTransactions(ctx, r.PathValue("id"))
	if err != nil {
		respondStoreError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, toTransactionResponses(txs))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := ledger.TransactionFilter{
		CategoryID: strings.TrimSpace(r.URL.Query().Get("categoryId")),
	}

	cacheKey := "transactions:all"
	if filter.CategoryID != "" {
		cacheKey = "transactions:cat:" + filter.CategoryID
	}

	txs, ok := s.transactionsCache.Get(cacheKey)
	if !ok {
		var err error
		txs, err = s.service.ListTransactions(ctx, filter)
		if err != nil {
			respondStoreError(ctx, w, err)
			return
		}
		s.transactionsCache.Set(cacheKey, txs)
	}

	respondJSON(ctx, w, http.StatusOK, toTransactionResponses(txs))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		if core.IsValidationError(err) {
			respondError(ctx, w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	entryType, err := core.ParseEntryType(req.Type)
	if err != nil {
		respondError(ctx, w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		respondError(ctx, w, http.StatusUnprocessableEntity, "invalid date, want RFC 3339 or YYYY-MM-DD")
		return
	}

	tx, err := s.service.CreateTransaction(ctx, core.NewTransaction{
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		Date:        date,
		Type:        entryType,
		CategoryID:  strings.TrimSpace(req.CategoryID),
	})
	if err != nil {
		respondStoreError(ctx, w, err)
		return
	}

	s.invalidateListCaches()
	respondJSON(ctx, w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bal, err := s.service.GetBalance(ctx)
	if err != nil {
		respondStoreError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, balanceResponse{
		Amount:    bal.Amount,
		UpdatedAt: bal.UpdatedAt,
	})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bal, err := s.service.Reconcile(ctx)
	if err != nil {
		var gap *core.ConsistencyGapError
		if errors.As(err, &gap) {
			log.FromContext(ctx).ErrorContext(ctx, "Balance diverged from ledger",
				log.FieldBalanceCents, gap.BalanceCents,
				log.FieldLedgerCents, gap.LedgerCents)
			respondJSON(ctx, w, http.StatusInternalServerError, reconcileResponse{
				Balance:     core.Money{Cents: gap.BalanceCents},
				LedgerTotal: core.Money{Cents: gap.LedgerCents},
				Consistent:  false,
			})
			return
		}
		respondStoreError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, reconcileResponse{
		Balance:     bal.Amount,
		LedgerTotal: bal.Amount,
		Consistent:  true,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// The service is ready once the balance row is reachable.
	if _, err := s.service.GetBalance(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ready"})
}
