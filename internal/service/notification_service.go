package service

import (
	"context"

	"price-scout/internal/domain"
	"price-scout/internal/repository"
)

const defaultNotificationLimit = 100

// NotificationService defines the interface for price-change notifications
type NotificationService interface {
	List(ctx context.Context, unreadOnly bool) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id int64) error
}

type notificationService struct {
	repo repository.NotificationRepository
}

// NewNotificationService creates a new instance of NotificationService
func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

func (s *notificationService) List(ctx context.Context, unreadOnly bool) ([]*domain.Notification, error) {
	return s.repo.List(ctx, unreadOnly, defaultNotificationLimit)
}

func (s *notificationService) MarkRead(ctx context.Context, id int64) error {
	return s.repo.MarkRead(ctx, id)
}
