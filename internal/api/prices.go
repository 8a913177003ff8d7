package api

import (
	"log/slog"
	"net/http"

	"github.com/Priya8975/price-tracker/internal/pricing"
	"github.com/go-chi/chi/v5"
)

type PriceHandler struct {
	pricing *pricing.Service
	logger  *slog.Logger
}

func NewPriceHandler(p *pricing.Service, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{pricing: p, logger: logger}
}

// CheckAll runs a full price-check cycle and returns its tally.
func (h *PriceHandler) CheckAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.pricing.RunCycle(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to run price check")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (h *PriceHandler) Check(w http.ResponseWriter, r *http.Request) {
	entry, err := h.pricing.LogPrice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to check price")
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

func (h *PriceHandler) History(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := h.pricing.History(r.Context(), chi.URLParam(r, "id"), page)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to get price history")
		return
	}

	respondJSON(w, http.StatusOK, logs)
}

func (h *PriceHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := h.pricing.ListAll(r.Context(), page)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to list prices")
		return
	}

	respondJSON(w, http.StatusOK, logs)
}

func (h *PriceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.pricing.DeleteLog(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, h.logger, err, "failed to delete price log")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Purge deletes entries checked before older_than.
func (h *PriceHandler) Purge(w http.ResponseWriter, r *http.Request) {
	cutoff, err := requireTime(r, "older_than")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.pricing.PurgeOlderThan(r.Context(), cutoff)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to purge price history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
