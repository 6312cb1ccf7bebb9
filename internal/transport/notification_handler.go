package transport

import (
	"net/http"
	"strconv"

	"price-scout/internal/domain"
	"price-scout/internal/middleware"
	"price-scout/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NotificationHandler serves price-change notifications
type NotificationHandler struct {
	notificationService service.NotificationService
	logger              *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notificationService service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// RegisterRoutes registers notification routes
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/notifications", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/{id}/read", h.MarkRead)
	})
}

// List returns the newest notifications, only unread ones when unread=true
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
				{Field: "unread", Message: "Value must be true or false"},
			})
			return
		}
		unreadOnly = v
	}

	notifications, err := h.notificationService.List(r.Context(), unreadOnly)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "failed to list notifications")
		return
	}
	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		middleware.RespondWithRequestError(w, r, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := h.notificationService.MarkRead(r.Context(), id); err != nil {
		respondServiceError(w, r, h.logger, err, "failed to mark notification read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
