package listing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for listings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const listingColumns = `id, item_code, title, description, category, abc_category,
	min_stock_level, max_stock_level, status, created_by, current_stock,
	stock_level_status, stock_level_percentage, last_stock_update,
	last_abc_update, created_at, updated_at`

func scanListing(row pgx.Row) (Listing, error) {
	var l Listing
	err := row.Scan(
		&l.ID, &l.ItemCode, &l.Title, &l.Description, &l.Category, &l.ABCCategory,
		&l.MinStockLevel, &l.MaxStockLevel, &l.Status, &l.CreatedBy, &l.CurrentStock,
		&l.StockLevelStatus, &l.StockLevelPercentage, &l.LastStockUpdate,
		&l.LastABCUpdate, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

// Get retrieves a listing by id.
func (r *Repository) Get(ctx context.Context, id int64) (Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	l, err := scanListing(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, err
	}
	return l, nil
}

// List returns every listing, newest first.
func (r *Repository) List(ctx context.Context) ([]Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings ORDER BY created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Create inserts a listing, mapping the unique item_code violation.
func (r *Repository) Create(ctx context.Context, l Listing) (int64, error) {
	query := `
		INSERT INTO listings (item_code, title, description, category, abc_category,
			min_stock_level, max_stock_level, status, created_by, current_stock,
			stock_level_status, stock_level_percentage, last_stock_update,
			last_abc_update, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		l.ItemCode, l.Title, l.Description, l.Category, l.ABCCategory,
		l.MinStockLevel, l.MaxStockLevel, l.Status, l.CreatedBy, l.CurrentStock,
		l.StockLevelStatus, l.StockLevelPercentage, l.LastStockUpdate, l.LastABCUpdate,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateItemCode
		}
		return 0, err
	}
	return id, nil
}

// Update persists the client-settable fields.
func (r *Repository) Update(ctx context.Context, l Listing) error {
	query := `
		UPDATE listings
		SET title = $2, description = $3, category = $4, min_stock_level = $5,
			max_stock_level = $6, status = $7, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, l.ID, l.Title, l.Description, l.Category,
		l.MinStockLevel, l.MaxStockLevel, l.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateDerived writes the recomputed stock fields.
func (r *Repository) UpdateDerived(ctx context.Context, id int64, update DerivedUpdate) error {
	query := `
		UPDATE listings
		SET current_stock = $2, stock_level_status = $3, stock_level_percentage = $4,
			last_stock_update = $5, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, update.CurrentStock,
		update.StockLevelStatus, update.StockLevelPercentage, update.LastStockUpdate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateABC writes a changed demand category.
func (r *Repository) UpdateABC(ctx context.Context, id int64, category ABCCategory, at time.Time) error {
	query := `UPDATE listings SET abc_category = $2, last_abc_update = $3, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, category, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStaleABC returns ids whose last classification predates the cutoff.
func (r *Repository) ListStaleABC(ctx context.Context, olderThan time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM listings WHERE last_abc_update < $1 ORDER BY id`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
