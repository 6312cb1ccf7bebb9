package transport

import (
	"net/http"
	"strings"

	"price-scout/internal/domain"
	"price-scout/internal/middleware"
	"price-scout/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxQueryLength bounds product_name
const maxQueryLength = 200

// RankRequest is a listing set to rank without crawling or persisting
type RankRequest struct {
	Query    string           `json:"query" validate:"required,max=200"`
	Listings []domain.Listing `json:"listings" validate:"required,min=1,max=1000,dive"`
}

// RankResponse carries ranked listings
type RankResponse struct {
	Query   string           `json:"query"`
	Total   int              `json:"total"`
	Results []domain.Listing `json:"results"`
}

// SearchHandler handles live search requests
type SearchHandler struct {
	searchService service.SearchService
	logger        *zap.Logger
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(searchService service.SearchService, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		logger:        logger,
	}
}

// RegisterRoutes registers search routes. limiter may be nil.
func (h *SearchHandler) RegisterRoutes(r chi.Router, limiter func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter)
		}
		r.Get("/api/search", h.Search)
	})
	r.Post("/api/rank", h.Rank)
}

// Search crawls every source for product_name, merges the ranked listings into
// the catalog and returns the persisted products
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("product_name"))
	if query == "" {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "product_name", Message: "This field is required"},
		})
		return
	}
	if len([]rune(query)) > maxQueryLength {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "product_name", Message: "Value is too long"},
		})
		return
	}

	resp, err := h.searchService.AggregateAndMerge(r.Context(), query)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "failed to search products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// Rank orders a posted listing set the way Search would
func (h *SearchHandler) Rank(w http.ResponseWriter, r *http.Request) {
	var req RankRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Rank validation failed", zap.Error(err))
		respondDecodeError(w, r, err)
		return
	}

	ranked := h.searchService.RankOnly(req.Listings, req.Query)
	middleware.RespondWithJSON(w, http.StatusOK, RankResponse{
		Query:   req.Query,
		Total:   len(ranked),
		Results: ranked,
	})
}
