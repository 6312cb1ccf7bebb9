package transport

import (
	"net/http"
	"strings"

	"price-scout/internal/middleware"
	"price-scout/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CompareRequest lists the products to compare
type CompareRequest struct {
	ProductIDs []int64 `json:"product_ids" validate:"required,min=1,max=50,dive,gt=0"`
}

// FavoriteResponse acknowledges a favorite change
type FavoriteResponse struct {
	ProductID  int64 `json:"product_id"`
	IsFavorite bool  `json:"is_favorite"`
}

// CatalogHandler serves the persisted catalog
type CatalogHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers catalog routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.Search)
		r.Post("/compare", h.Compare)
		r.Get("/{id}/history", h.History)
		r.Put("/{id}/favorite", h.AddFavorite)
		r.Delete("/{id}/favorite", h.RemoveFavorite)
	})
	r.Post("/api/clear-history", h.ClearHistory)
	r.Get("/api/categories", h.Categories)
	r.Get("/api/stores", h.Stores)
}

// Search filters the catalog by q, min_price and max_price
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := service.LocalSearchParams{Query: strings.TrimSpace(q.Get("q"))}

	var invalid []middleware.ValidationError
	for _, bound := range []struct {
		name string
		dst  **decimal.Decimal
	}{
		{"min_price", &params.MinPrice},
		{"max_price", &params.MaxPrice},
	} {
		raw := strings.TrimSpace(q.Get(bound.name))
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			invalid = append(invalid, middleware.ValidationError{Field: bound.name, Message: "Value must be a non-negative number"})
			continue
		}
		*bound.dst = &v
	}
	if len(invalid) > 0 {
		middleware.RespondWithValidationErrors(w, invalid)
		return
	}

	resp, err := h.catalogService.Search(r.Context(), params)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "failed to search catalog")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// Compare annotates the requested products relative to the cheapest
func (h *CatalogHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Compare validation failed", zap.Error(err))
		respondDecodeError(w, r, err)
		return
	}

	cmp, err := h.catalogService.Compare(r.Context(), req.ProductIDs)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "failed to compare products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cmp)
}

func (h *CatalogHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		middleware.RespondWithRequestError(w, r, http.StatusBadRequest, "invalid product id")
		return
	}

	history, err := h.catalogService.History(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "failed to load price history")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, history)
}

func (h *CatalogHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	h.setFavorite(w, r, true)
}

func (h *CatalogHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	h.setFavorite(w, r, false)
}

func (h *CatalogHandler) setFavorite(w http.ResponseWriter, r *http.Request, favorite bool) {
	id, err := idParam(r, "id")
	if err != nil {
		middleware.RespondWithRequestError(w, r, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.catalogService.SetFavorite(r.Context(), id, favorite); err != nil {
		respondServiceError(w, r, h.logger, err, "failed to update favorite")
		return
	}

	h.logger.Info("Favorite updated", zap.Int64("product_id", id), zap.Bool("favorite", favorite))
	middleware.RespondWithJSON(w, http.StatusOK, FavoriteResponse{ProductID: id, IsFavorite: favorite})
}

// ClearHistory removes every non-favorite product with its history
func (h *CatalogHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalogService.ClearHistory(r.Context())
	if err != nil {
		respondServiceError(w, r, h.logger, err, "failed to clear history")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.Categories(r.Context())
	if err != nil {
		respondServiceError(w, r, h.logger, err, "failed to list categories")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) Stores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.catalogService.Stores(r.Context())
	if err != nil {
		respondServiceError(w, r, h.logger, err, "failed to list stores")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, stores)
}
