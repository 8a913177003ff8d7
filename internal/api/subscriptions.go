package api

import (
	"log/slog"
	"net/http"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/subscription"
	"github.com/go-chi/chi/v5"
)

type SubscriptionHandler struct {
	subscriptions *subscription.Service
	logger        *slog.Logger
}

func NewSubscriptionHandler(s *subscription.Service, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: s, logger: logger}
}

// Subscribe takes the request from the body, or from the email and name
// query parameters so the re-subscribe link in emails works.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := domain.SubscribeRequest{Email: q.Get("email"), Name: q.Get("name")}
	if req.Email == "" {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	sub, err := h.subscriptions.Subscribe(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to subscribe")
		return
	}

	respondJSON(w, http.StatusCreated, sub)
}

// Unsubscribe takes the address from the body, or from the email query
// parameter so the link in confirmation emails works.
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	req := domain.UnsubscribeRequest{Email: r.URL.Query().Get("email")}
	if req.Email == "" {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.subscriptions.Unsubscribe(r.Context(), chi.URLParam(r, "id"), req); err != nil {
		respondDomainError(w, h.logger, err, "failed to unsubscribe")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}

func (h *SubscriptionHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	subs, err := h.subscriptions.ListByProduct(r.Context(), chi.URLParam(r, "id"), page)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to list subscribers")
		return
	}

	respondJSON(w, http.StatusOK, subs)
}

// List returns every subscription of ?email=, or all subscriptions a
// page at a time.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	if email := r.URL.Query().Get("email"); email != "" {
		subs, err := h.subscriptions.ListByEmail(r.Context(), email)
		if err != nil {
			respondDomainError(w, h.logger, err, "failed to list subscriptions")
			return
		}
		respondJSON(w, http.StatusOK, subs)
		return
	}

	page, err := parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	subs, err := h.subscriptions.ListAll(r.Context(), page)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to list subscribers")
		return
	}

	respondJSON(w, http.StatusOK, subs)
}
