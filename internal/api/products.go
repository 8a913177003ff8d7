package api

import (
	"log/slog"
	"net/http"

	"github.com/Priya8975/price-tracker/internal/catalog"
	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	catalog *catalog.Service
	logger  *slog.Logger
}

func NewProductHandler(c *catalog.Service, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{catalog: c, logger: logger}
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProductRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.catalog.AddProduct(r.Context(), req)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to add product")
		return
	}

	respondJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, err := h.catalog.List(r.Context(), page)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to list products")
		return
	}

	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to search products")
		return
	}

	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to get product")
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// Refresh re-scrapes the product page and stores the result.
func (h *ProductHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.RefreshProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to refresh product")
		return
	}

	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to delete product")
		return
	}

	respondJSON(w, http.StatusOK, res)
}
