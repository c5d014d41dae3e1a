package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medtrack/medtrack/internal/listing"
	"github.com/medtrack/medtrack/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for stock batches.
// It also serves the listing aggregate's read side (available quantity and
// movement stats).
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

const batchColumns = `id, listing_id, quantity, unit_cost, acquisition_date, expiration_date,
	supplier_name, supplier_contact_person, supplier_contact_number, supplier_email,
	manufacturer, status, storage_location, notes, created_at, updated_at`

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(
		&b.ID, &b.ListingID, &b.Quantity, &b.UnitCost, &b.AcquisitionDate, &b.ExpirationDate,
		&b.Supplier.Name, &b.Supplier.ContactPerson, &b.Supplier.ContactNumber, &b.Supplier.Email,
		&b.Manufacturer, &b.Status, &b.StorageLocation, &b.Notes, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// Get retrieves a batch by id.
func (r *Repository) Get(ctx context.Context, id int64) (Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM stock_batches WHERE id = $1`
	b, err := scanBatch(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrNotFound
		}
		return Batch{}, err
	}
	return b, nil
}

// List returns every batch, newest first.
func (r *Repository) List(ctx context.Context) ([]Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM stock_batches ORDER BY created_at DESC, id DESC`
	return r.queryBatches(ctx, query)
}

// ListByListing filters batches for one listing, optionally by status.
func (r *Repository) ListByListing(ctx context.Context, listingID int64, status BatchStatus) ([]Batch, error) {
	if status != "" {
		query := `SELECT ` + batchColumns + ` FROM stock_batches
			WHERE listing_id = $1 AND status = $2 ORDER BY created_at DESC, id DESC`
		return r.queryBatches(ctx, query, listingID, status)
	}
	query := `SELECT ` + batchColumns + ` FROM stock_batches
		WHERE listing_id = $1 ORDER BY created_at DESC, id DESC`
	return r.queryBatches(ctx, query, listingID)
}

func (r *Repository) queryBatches(ctx context.Context, query string, args ...any) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// AvailableQuantity sums available batch quantities for a listing.
// Implements the listing aggregate's stock reader port.
func (r *Repository) AvailableQuantity(ctx context.Context, listingID int64) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM stock_batches WHERE listing_id = $1 AND status = 'available'`,
		listingID).Scan(&total)
	return total, err
}

// MovementStats counts batches created since the cutoff and their quantities.
func (r *Repository) MovementStats(ctx context.Context, listingID int64, since time.Time) (listing.MovementStats, error) {
	var stats listing.MovementStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(quantity), 0) FROM stock_batches WHERE listing_id = $1 AND created_at >= $2`,
		listingID, since).Scan(&stats.RestockCount, &stats.TotalQuantityMoved)
	return stats, err
}

// ExpireOverdue flips available batches past their expiration date to
// expired and returns the affected listing ids, deduplicated.
func (r *Repository) ExpireOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE stock_batches
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'available' AND expiration_date IS NOT NULL AND expiration_date < $1
		RETURNING listing_id
	`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[int64]bool)
	var listingIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			listingIDs = append(listingIDs, id)
		}
	}
	return listingIDs, rows.Err()
}

// AvailableQuantityForUpdate locks the listing row, then sums available
// batches. The row lock is the per-listing critical section at the
// database level.
func (r *txRepo) AvailableQuantityForUpdate(ctx context.Context, listingID int64) (int, error) {
	var id int64
	if err := r.tx.QueryRow(ctx, `SELECT id FROM listings WHERE id = $1 FOR UPDATE`, listingID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	var total int
	err := r.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM stock_batches WHERE listing_id = $1 AND status = 'available'`,
		listingID).Scan(&total)
	return total, err
}

func (r *txRepo) Insert(ctx context.Context, b Batch) (int64, error) {
	query := `
		INSERT INTO stock_batches (listing_id, quantity, unit_cost, acquisition_date,
			expiration_date, supplier_name, supplier_contact_person, supplier_contact_number,
			supplier_email, manufacturer, status, storage_location, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING id
	`
	var id int64
	err := r.tx.QueryRow(ctx, query,
		b.ListingID, b.Quantity, b.UnitCost, b.AcquisitionDate, b.ExpirationDate,
		b.Supplier.Name, b.Supplier.ContactPerson, b.Supplier.ContactNumber, b.Supplier.Email,
		b.Manufacturer, b.Status, b.StorageLocation, b.Notes,
	).Scan(&id)
	return id, err
}

func (r *txRepo) Update(ctx context.Context, b Batch) error {
	query := `
		UPDATE stock_batches
		SET quantity = $2, unit_cost = $3, expiration_date = $4, supplier_name = $5,
			supplier_contact_person = $6, supplier_contact_number = $7, supplier_email = $8,
			manufacturer = $9, status = $10, storage_location = $11, notes = $12, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.tx.Exec(ctx, query, b.ID, b.Quantity, b.UnitCost, b.ExpirationDate,
		b.Supplier.Name, b.Supplier.ContactPerson, b.Supplier.ContactNumber, b.Supplier.Email,
		b.Manufacturer, b.Status, b.StorageLocation, b.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM stock_batches WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
