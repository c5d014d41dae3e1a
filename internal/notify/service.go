package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/medtrack/medtrack/internal/shared"
)

// RepositoryPort abstracts notification persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
	List(ctx context.Context, recipientID int64, unreadOnly bool, page, perPage int) ([]Notification, int, error)
	UnreadCount(ctx context.Context, recipientID int64) (int, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, recipientID int64) error
}

// MailPort hands a notification to the async mailer. Implementations enqueue
// and return; delivery happens in the worker.
type MailPort interface {
	EnqueueNotificationEmail(ctx context.Context, n Notification) error
}

// Service is the notification emitter. Emission never fails the caller's
// operation; persistence or enqueue errors are logged and swallowed by the
// emitting side.
type Service struct {
	repo   RepositoryPort
	mail   MailPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, mail MailPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, mail: mail, logger: logger}
}

// Emit persists a notification and hands it to the mailer. The mailer enqueue
// is best effort; a stored notification with a failed email is still emitted.
func (s *Service) Emit(ctx context.Context, n Notification) (Notification, error) {
	if strings.TrimSpace(n.Title) == "" {
		return Notification{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(n.Message) == "" {
		return Notification{}, fmt.Errorf("%w: message is required", ErrValidation)
	}
	if n.Type == "" {
		n.Type = TypeSystem
	}
	if !n.Type.Valid() {
		return Notification{}, fmt.Errorf("%w: unknown type %q", ErrValidation, n.Type)
	}
	stored, err := s.repo.Insert(ctx, n)
	if err != nil {
		return Notification{}, err
	}
	if s.mail != nil {
		if err := s.mail.EnqueueNotificationEmail(ctx, stored); err != nil {
			s.logger.Warn("notification email enqueue failed",
				slog.Int64("notification_id", stored.ID), slog.Any("error", err))
		}
	}
	return stored, nil
}

// List returns a page of a recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, recipientID int64, unreadOnly bool, page, perPage int) ([]Notification, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	items, total, err := s.repo.List(ctx, recipientID, unreadOnly, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, perPage, total), nil
}

// UnreadCount returns how many unread notifications a recipient has.
func (s *Service) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	return s.repo.UnreadCount(ctx, recipientID)
}

// MarkRead flags one notification as read.
func (s *Service) MarkRead(ctx context.Context, id int64) error {
	return s.repo.MarkRead(ctx, id)
}

// MarkAllRead flags every notification of a recipient as read.
func (s *Service) MarkAllRead(ctx context.Context, recipientID int64) error {
	return s.repo.MarkAllRead(ctx, recipientID)
}
