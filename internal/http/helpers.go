package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// errorResponse is the JSON shape of every handler failure
type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to encode response", log.FieldError, err.Error())
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	respondJSON(ctx, w, status, errorResponse{Error: msg})
}

// respondStoreError maps domain errors onto HTTP statuses
func respondStoreError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case core.IsValidationError(err):
		respondError(ctx, w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, core.ErrCategoryNotFound):
		respondError(ctx, w, http.StatusNotFound, "category not found")
	case errors.Is(err, core.ErrTransactionNotFound):
		respondError(ctx, w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, core.ErrBalanceNotInitialized):
		log.FromContext(ctx).ErrorContext(ctx, "Balance row missing", log.FieldError, err.Error())
		respondError(ctx, w, http.StatusInternalServerError, "balance not initialized")
	default:
		log.FromContext(ctx).ErrorContext(ctx, "Request failed", log.FieldError, err.Error())
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes a request body, rejecting unknown fields
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// parseDate accepts RFC 3339 or a bare calendar date
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// clientIP extracts the client address, honoring proxy headers
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
