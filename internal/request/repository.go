package request

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medtrack/medtrack/internal/platform/db"
	"github.com/medtrack/medtrack/internal/stock"
)

// Repository provides PostgreSQL backed persistence for requests. Fulfilled
// allocations live in request_stocks_used, one row per consumed batch.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const requestColumns = `id, listing_id, department, requested_by, quantity, priority, purpose,
	status, approved_by, approval_date, fulfilled_by, fulfillment_date, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var req Request
	err := row.Scan(
		&req.ID, &req.ListingID, &req.Department, &req.RequestedBy, &req.Quantity,
		&req.Priority, &req.Purpose, &req.Status, &req.ApprovedBy, &req.ApprovalDate,
		&req.FulfilledBy, &req.FulfillmentDate, &req.Notes, &req.CreatedAt, &req.UpdatedAt,
	)
	return req, err
}

// Get retrieves a request with its consumed batches.
func (r *Repository) Get(ctx context.Context, id int64) (Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	req, err := scanRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	used, err := r.stocksUsed(ctx, id)
	if err != nil {
		return Request{}, err
	}
	req.StocksUsed = used
	return req, nil
}

func (r *Repository) stocksUsed(ctx context.Context, requestID int64) ([]StockUsed, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT stock_batch_id, quantity FROM request_stocks_used WHERE request_id = $1 ORDER BY id`,
		requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var used []StockUsed
	for rows.Next() {
		var u StockUsed
		if err := rows.Scan(&u.StockBatchID, &u.Quantity); err != nil {
			return nil, err
		}
		used = append(used, u)
	}
	return used, rows.Err()
}

// List returns requests matching the filter, newest first. Consumed batches
// are not loaded here; Get fills them for a single request.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		query += ` AND department = $` + strconv.Itoa(len(args))
	}
	if filter.ListingID != 0 {
		args = append(args, filter.ListingID)
		query += ` AND listing_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Create inserts a pending request and returns it with server-set fields.
func (r *Repository) Create(ctx context.Context, req Request) (Request, error) {
	query := `
		INSERT INTO requests (listing_id, department, requested_by, quantity, priority,
			purpose, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		req.ListingID, req.Department, req.RequestedBy, req.Quantity, req.Priority,
		req.Purpose, req.Status, req.Notes,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

// GetForUpdate locks the request row for the duration of the transaction.
func (r *txRepo) GetForUpdate(ctx context.Context, id int64) (Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1 FOR UPDATE`
	req, err := scanRequest(r.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

// SetStatus writes the lifecycle fields of a request.
func (r *txRepo) SetStatus(ctx context.Context, req Request) error {
	query := `
		UPDATE requests
		SET status = $2, approved_by = $3, approval_date = $4, fulfilled_by = $5,
			fulfillment_date = $6, notes = $7, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.tx.Exec(ctx, query, req.ID, req.Status, req.ApprovedBy, req.ApprovalDate,
		req.FulfilledBy, req.FulfillmentDate, req.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AvailableBatchesForUpdate locks the listing row, then returns its available
// batches ordered soonest expiry first with never-expiring lots last. The
// batch rows are locked too, so concurrent fulfilments serialize.
func (r *txRepo) AvailableBatchesForUpdate(ctx context.Context, listingID int64) ([]stock.Batch, error) {
	var id int64
	if err := r.tx.QueryRow(ctx, `SELECT id FROM listings WHERE id = $1 FOR UPDATE`, listingID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rows, err := r.tx.Query(ctx, `
		SELECT id, listing_id, quantity, expiration_date, status
		FROM stock_batches
		WHERE listing_id = $1 AND status = 'available' AND quantity > 0
		ORDER BY expiration_date ASC NULLS LAST, id ASC
		FOR UPDATE
	`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []stock.Batch
	for rows.Next() {
		var b stock.Batch
		if err := rows.Scan(&b.ID, &b.ListingID, &b.Quantity, &b.ExpirationDate, &b.Status); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// DecrementBatch subtracts by from a batch and marks it dispensed when it
// reaches zero.
func (r *txRepo) DecrementBatch(ctx context.Context, batchID int64, by int) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE stock_batches
		SET quantity = quantity - $2,
			status = CASE WHEN quantity - $2 <= 0 THEN 'dispensed' ELSE status END,
			updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
	`, batchID, by)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return stock.ErrNotFound
	}
	return nil
}

// InsertStocksUsed records the allocation plan for a fulfilled request.
func (r *txRepo) InsertStocksUsed(ctx context.Context, requestID int64, used []StockUsed) error {
	for _, u := range used {
		if _, err := r.tx.Exec(ctx,
			`INSERT INTO request_stocks_used (request_id, stock_batch_id, quantity) VALUES ($1, $2, $3)`,
			requestID, u.StockBatchID, u.Quantity); err != nil {
			return err
		}
	}
	return nil
}
