package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/store"
)

const defaultPerPage = 20

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindFormat:
		return http.StatusUnprocessableEntity
	case domain.KindSourceUnavailable:
		return http.StatusBadGateway
	case domain.KindDuplicate, domain.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError maps a tagged error to its status code. Untagged
// errors are logged and reported with msg only.
func respondDomainError(w http.ResponseWriter, logger *slog.Logger, err error, msg string) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		logger.Error(msg, "error", err)
		respondError(w, status, msg)
		return
	}
	respondJSON(w, status, errorResponse{Error: err.Error(), Kind: kind.String()})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func parsePositive(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

// parsePage reads page and per_page, defaulting to the first page of 20.
func parsePage(r *http.Request) (store.Page, error) {
	page, err := parsePositive(r, "page", 1)
	if err != nil {
		return store.Page{}, err
	}
	perPage, err := parsePositive(r, "per_page", defaultPerPage)
	if err != nil {
		return store.Page{}, err
	}
	return store.Page{Page: page, PerPage: perPage}, nil
}

// parseTime accepts RFC 3339 timestamps or plain dates. An empty value
// yields nil.
func parseTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be an RFC 3339 time or a YYYY-MM-DD date", key)
}

func requireTime(r *http.Request, key string) (time.Time, error) {
	t, err := parseTime(r, key)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	return *t, nil
}
