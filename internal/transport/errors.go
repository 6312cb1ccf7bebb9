package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"price-scout/internal/middleware"
	"price-scout/internal/repository"
	"price-scout/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errInvalidID = errors.New("invalid id")

// respondServiceError maps service and repository errors onto HTTP statuses.
// Anything unknown is logged and reported as fallback with status 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, fallback string) {
	status, message := http.StatusInternalServerError, fallback

	switch {
	case errors.Is(err, repository.ErrCatalogUnavailable):
		status, message = http.StatusServiceUnavailable, "catalog is unavailable"
	case errors.Is(err, repository.ErrProductNotFound):
		status, message = http.StatusNotFound, "product not found"
	case errors.Is(err, repository.ErrNotificationNotFound):
		status, message = http.StatusNotFound, "notification not found"
	case errors.Is(err, service.ErrNothingToCompare):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrInvalidPriceRange):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusGatewayTimeout, "request timed out"
	}

	if status >= http.StatusInternalServerError {
		logger.Error(fallback, zap.Error(err), zap.String("path", r.URL.Path))
	} else {
		logger.Debug(message, zap.Error(err))
	}
	middleware.RespondWithRequestError(w, r, status, message)
}

// respondDecodeError reports a body that failed to decode or validate
func respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}
	middleware.RespondWithRequestError(w, r, http.StatusBadRequest, "invalid request body")
}

// idParam reads a positive int64 path parameter
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
