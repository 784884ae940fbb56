package notification

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/medcrm/clinic/internal/domain"
)

// Pusher delivers an event to a user's open sessions. Delivery is best
// effort.
type Pusher interface {
	Push(userID uuid.UUID, kind string, payload any)
}

// EventNotification is the live event type for a new notification.
const EventNotification = "notification"

type Service struct {
	repo   Repository
	pusher Pusher
}

// NewService returns the notification service. pusher may be nil when no
// live channel is configured.
func NewService(repo Repository, pusher Pusher) *Service {
	return &Service{repo: repo, pusher: pusher}
}

// Notify stores a message for userID. appointmentID may be nil.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, appointmentID *uuid.UUID, title, message string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Invalid("title", "title is required")
	}
	n := &Notification{
		UserID:        userID,
		AppointmentID: appointmentID,
		Title:         title,
		Message:       message,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	if s.pusher != nil {
		s.pusher.Push(userID, EventNotification, n)
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	return s.repo.ListForUser(ctx, userID, unreadOnly, limit, offset)
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
