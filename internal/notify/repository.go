package notify

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for notifications.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a notification and returns it with server-set fields.
func (r *Repository) Insert(ctx context.Context, n Notification) (Notification, error) {
	var refKind *ReferenceKind
	var refID *int64
	if n.Reference != nil {
		refKind = &n.Reference.Kind
		refID = &n.Reference.ID
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (recipient_id, title, message, type, reference_kind, reference_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW())
		RETURNING id, created_at
	`, n.RecipientID, n.Title, n.Message, n.Type, refKind, refID).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return Notification{}, err
	}
	return n, nil
}

// List returns a page of a recipient's notifications, newest first, plus the
// total count matching the filter.
func (r *Repository) List(ctx context.Context, recipientID int64, unreadOnly bool, page, perPage int) ([]Notification, int, error) {
	filter := ``
	if unreadOnly {
		filter = ` AND is_read = FALSE`
	}
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1`+filter,
		recipientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, recipient_id, title, message, type, reference_kind, reference_id, is_read, created_at
		FROM notifications
		WHERE recipient_id = $1`+filter+`
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, recipientID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Notification
	for rows.Next() {
		var n Notification
		var refKind *ReferenceKind
		var refID *int64
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &n.Type,
			&refKind, &refID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		if refKind != nil && refID != nil {
			n.Reference = &Reference{Kind: *refKind, ID: *refID}
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}

// UnreadCount counts unread notifications for a recipient.
func (r *Repository) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`,
		recipientID).Scan(&count)
	return count, err
}

// MarkRead flags one notification as read.
func (r *Repository) MarkRead(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead flags every unread notification of a recipient as read.
func (r *Repository) MarkAllRead(ctx context.Context, recipientID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND is_read = FALSE`,
		recipientID)
	return err
}

// Get retrieves one notification.
func (r *Repository) Get(ctx context.Context, id int64) (Notification, error) {
	var n Notification
	var refKind *ReferenceKind
	var refID *int64
	err := r.pool.QueryRow(ctx, `
		SELECT id, recipient_id, title, message, type, reference_kind, reference_id, is_read, created_at
		FROM notifications WHERE id = $1
	`, id).Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &n.Type, &refKind, &refID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, err
	}
	if refKind != nil && refID != nil {
		n.Reference = &Reference{Kind: *refKind, ID: *refID}
	}
	return n, nil
}
