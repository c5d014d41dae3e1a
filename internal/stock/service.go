package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/medtrack/medtrack/internal/listing"
	"github.com/medtrack/medtrack/internal/shared"
)

// RepositoryPort abstracts batch persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Batch, error)
	List(ctx context.Context) ([]Batch, error)
	ListByListing(ctx context.Context, listingID int64, status BatchStatus) ([]Batch, error)
}

// TxRepository exposes the transactional operations used by the guard.
type TxRepository interface {
	AvailableQuantityForUpdate(ctx context.Context, listingID int64) (int, error)
	Insert(ctx context.Context, b Batch) (int64, error)
	Update(ctx context.Context, b Batch) error
	Delete(ctx context.Context, id int64) error
}

// ListingPort is the slice of the listing aggregate the guard needs.
type ListingPort interface {
	Get(ctx context.Context, id int64) (listing.Listing, error)
	Recompute(ctx context.Context, id int64) (listing.Listing, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts guard rejections.
type MetricsPort interface {
	RecordThresholdRejection()
}

// Service is the stock mutation guard: every batch create/update is checked
// against the owning listing's [min,max] band before commit, and the listing
// aggregate is recomputed afterward.
type Service struct {
	repo     RepositoryPort
	listings ListingPort
	locks    *shared.KeyedMutex
	audit    AuditPort
	metrics  MetricsPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, listings ListingPort, locks *shared.KeyedMutex, audit AuditPort, metrics MetricsPort, logger *slog.Logger) *Service {
	if locks == nil {
		locks = shared.NewKeyedMutex()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, listings: listings, locks: locks, audit: audit, metrics: metrics, logger: logger, now: time.Now}
}

// CreateInput describes a new acquisition lot.
type CreateInput struct {
	ListingID       int64
	Quantity        int
	UnitCost        float64
	AcquisitionDate time.Time
	ExpirationDate  *time.Time
	Supplier        Supplier
	Manufacturer    string
	Status          BatchStatus
	StorageLocation string
	Notes           string
	ActorID         int64
}

// Create validates the quantity against the listing thresholds and persists
// the batch. The whole read-validate-write runs under the listing's lock.
func (s *Service) Create(ctx context.Context, input CreateInput) (Batch, error) {
	if input.Quantity <= 0 {
		return Batch{}, fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	}
	if strings.TrimSpace(input.Supplier.Name) == "" {
		return Batch{}, fmt.Errorf("%w: supplier name is required", ErrValidation)
	}
	if strings.TrimSpace(input.Manufacturer) == "" {
		return Batch{}, fmt.Errorf("%w: manufacturer is required", ErrValidation)
	}
	if input.Status == "" {
		input.Status = BatchStatusAvailable
	}
	if !input.Status.Valid() {
		return Batch{}, fmt.Errorf("%w: unknown status %q", ErrValidation, input.Status)
	}
	l, err := s.listings.Get(ctx, input.ListingID)
	if err != nil {
		return Batch{}, err
	}

	unlock := s.locks.Lock(l.ID)
	defer unlock()

	batch := Batch{
		ListingID:       l.ID,
		Quantity:        input.Quantity,
		UnitCost:        input.UnitCost,
		AcquisitionDate: input.AcquisitionDate,
		ExpirationDate:  input.ExpirationDate,
		Supplier:        input.Supplier,
		Manufacturer:    input.Manufacturer,
		Status:          input.Status,
		StorageLocation: input.StorageLocation,
		Notes:           input.Notes,
	}
	if batch.AcquisitionDate.IsZero() {
		batch.AcquisitionDate = s.now()
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.AvailableQuantityForUpdate(ctx, l.ID)
		if err != nil {
			return err
		}
		newTotal := current + input.Quantity
		if newTotal < l.MinStockLevel {
			return &ThresholdError{NewTotal: newTotal, Bound: l.MinStockLevel}
		}
		if newTotal > l.MaxStockLevel {
			return &ThresholdError{NewTotal: newTotal, Bound: l.MaxStockLevel, Ceiling: true}
		}
		id, err := tx.Insert(ctx, batch)
		if err != nil {
			return err
		}
		batch.ID = id
		return nil
	})
	if err != nil {
		s.countRejection(err)
		return Batch{}, err
	}

	if _, err := s.listings.Recompute(ctx, l.ID); err != nil {
		return Batch{}, err
	}
	s.recordAudit(ctx, input.ActorID, "STOCK_CREATE", batch.ID, map[string]any{
		"listing_id": l.ID, "quantity": batch.Quantity,
	})
	return batch, nil
}

// UpdateInput carries the batch fields a client may change. Only the
// quantity delta is guarded; everything else passes through unchecked.
type UpdateInput struct {
	Quantity        int
	UnitCost        float64
	ExpirationDate  *time.Time
	Supplier        Supplier
	Manufacturer    string
	Status          BatchStatus
	StorageLocation string
	Notes           string
	ActorID         int64
}

// Update guards the quantity change against the listing owning the existing
// batch. Listing reassignment is not supported.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Batch, error) {
	if input.Quantity <= 0 {
		return Batch{}, fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Batch{}, err
	}
	if input.Status != "" && !input.Status.Valid() {
		return Batch{}, fmt.Errorf("%w: unknown status %q", ErrValidation, input.Status)
	}
	l, err := s.listings.Get(ctx, existing.ListingID)
	if err != nil {
		return Batch{}, err
	}

	unlock := s.locks.Lock(l.ID)
	defer unlock()

	updated := existing
	updated.Quantity = input.Quantity
	updated.UnitCost = input.UnitCost
	updated.ExpirationDate = input.ExpirationDate
	if input.Supplier.Name != "" {
		updated.Supplier = input.Supplier
	}
	if input.Manufacturer != "" {
		updated.Manufacturer = input.Manufacturer
	}
	if input.Status != "" {
		updated.Status = input.Status
	}
	updated.StorageLocation = input.StorageLocation
	updated.Notes = input.Notes

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.AvailableQuantityForUpdate(ctx, l.ID)
		if err != nil {
			return err
		}
		delta := input.Quantity - existing.Quantity
		newTotal := current + delta
		if newTotal < l.MinStockLevel {
			return &ThresholdError{NewTotal: newTotal, Bound: l.MinStockLevel}
		}
		if newTotal > l.MaxStockLevel {
			return &ThresholdError{NewTotal: newTotal, Bound: l.MaxStockLevel, Ceiling: true}
		}
		return tx.Update(ctx, updated)
	})
	if err != nil {
		s.countRejection(err)
		return Batch{}, err
	}

	if _, err := s.listings.Recompute(ctx, l.ID); err != nil {
		return Batch{}, err
	}
	s.recordAudit(ctx, input.ActorID, "STOCK_UPDATE", id, map[string]any{
		"listing_id": l.ID, "quantity": updated.Quantity,
	})
	return updated, nil
}

// Delete removes a batch unconditionally. Deletion may legally drop current
// stock below the minimum; only the recompute follows.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(existing.ListingID)
	defer unlock()

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	if _, err := s.listings.Recompute(ctx, existing.ListingID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "STOCK_DELETE", id, map[string]any{"listing_id": existing.ListingID})
	return nil
}

// Get returns one batch.
func (s *Service) Get(ctx context.Context, id int64) (Batch, error) {
	return s.repo.Get(ctx, id)
}

// List returns every batch, newest first.
func (s *Service) List(ctx context.Context) ([]Batch, error) {
	return s.repo.List(ctx)
}

// ListByListing filters batches for one listing, optionally by status.
func (s *Service) ListByListing(ctx context.Context, listingID int64, status BatchStatus) ([]Batch, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.repo.ListByListing(ctx, listingID, status)
}

func (s *Service) countRejection(err error) {
	if s.metrics != nil && errors.Is(err, ErrThresholdViolation) {
		s.metrics.RecordThresholdRejection()
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "stock_batch", EntityID: fmt.Sprintf("%d", id), Meta: meta})
}
