package request

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/medtrack/medtrack/internal/listing"
	"github.com/medtrack/medtrack/internal/shared"
	"github.com/medtrack/medtrack/internal/stock"
)

// RepositoryPort abstracts request persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Request, error)
	List(ctx context.Context, filter ListFilter) ([]Request, error)
	Create(ctx context.Context, req Request) (Request, error)
}

// TxRepository exposes the transactional operations the lifecycle needs.
// GetForUpdate locks the request row so concurrent transitions serialize.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Request, error)
	SetStatus(ctx context.Context, req Request) error
	AvailableBatchesForUpdate(ctx context.Context, listingID int64) ([]stock.Batch, error)
	DecrementBatch(ctx context.Context, batchID int64, by int) error
	InsertStocksUsed(ctx context.Context, requestID int64, used []StockUsed) error
}

// ListFilter narrows List results. Zero values mean no constraint.
type ListFilter struct {
	Status     Status
	Department Department
	ListingID  int64
}

// ListingPort is the slice of the listing aggregate the lifecycle needs.
type ListingPort interface {
	Get(ctx context.Context, id int64) (listing.Listing, error)
	Recompute(ctx context.Context, id int64) (listing.Listing, error)
}

// NotifierPort delivers fulfilment notices. Failures must not undo the
// transition, so implementations are called fire-and-forget.
type NotifierPort interface {
	RequestFulfilled(ctx context.Context, req Request, listingTitle string) error
}

// IdempotencyPort guards the fulfil transition against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts fulfilled requests.
type MetricsPort interface {
	RecordFulfillment()
}

// Service drives the request lifecycle. Fulfilment allocates stock
// first-expired-first-out, all or nothing, under the listing's lock.
type Service struct {
	repo     RepositoryPort
	listings ListingPort
	notifier NotifierPort
	idem     IdempotencyPort
	locks    *shared.KeyedMutex
	audit    AuditPort
	metrics  MetricsPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, listings ListingPort, notifier NotifierPort, idem IdempotencyPort, locks *shared.KeyedMutex, audit AuditPort, metrics MetricsPort, logger *slog.Logger) *Service {
	if locks == nil {
		locks = shared.NewKeyedMutex()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		listings: listings,
		notifier: notifier,
		idem:     idem,
		locks:    locks,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateInput describes a new procurement request.
type CreateInput struct {
	ListingID   int64
	Department  Department
	RequestedBy int64
	Quantity    int
	Priority    Priority
	Purpose     string
	Notes       string
}

// Create validates the input and files the request as pending.
func (s *Service) Create(ctx context.Context, input CreateInput) (Request, error) {
	if input.Quantity < 1 {
		return Request{}, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}
	if !input.Department.Valid() {
		return Request{}, fmt.Errorf("%w: unknown department %q", ErrValidation, input.Department)
	}
	if strings.TrimSpace(input.Purpose) == "" {
		return Request{}, fmt.Errorf("%w: purpose is required", ErrValidation)
	}
	if input.Priority == "" {
		input.Priority = PriorityMedium
	}
	if !input.Priority.Valid() {
		return Request{}, fmt.Errorf("%w: unknown priority %q", ErrValidation, input.Priority)
	}
	if _, err := s.listings.Get(ctx, input.ListingID); err != nil {
		return Request{}, err
	}

	req := Request{
		ListingID:   input.ListingID,
		Department:  input.Department,
		RequestedBy: input.RequestedBy,
		Quantity:    input.Quantity,
		Priority:    input.Priority,
		Purpose:     input.Purpose,
		Status:      StatusPending,
		Notes:       input.Notes,
	}
	created, err := s.repo.Create(ctx, req)
	if err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, input.RequestedBy, "REQUEST_CREATE", created.ID, map[string]any{
		"listing_id": created.ListingID, "quantity": created.Quantity,
	})
	return created, nil
}

// Approve moves a pending request to approved.
func (s *Service) Approve(ctx context.Context, id, approverID int64) (Request, error) {
	var out Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return &TransitionError{Current: req.Status, Required: []Status{StatusPending}}
		}
		at := s.now()
		req.Status = StatusApproved
		req.ApprovedBy = approverID
		req.ApprovalDate = &at
		if err := tx.SetStatus(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, approverID, "REQUEST_APPROVE", id, nil)
	return out, nil
}

// Reject moves a pending request to rejected. An empty reason defaults to
// "Request rejected".
func (s *Service) Reject(ctx context.Context, id, actorID int64, reason string) (Request, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "Request rejected"
	}
	var out Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return &TransitionError{Current: req.Status, Required: []Status{StatusPending}}
		}
		req.Status = StatusRejected
		req.Notes = reason
		if err := tx.SetStatus(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, actorID, "REQUEST_REJECT", id, map[string]any{"reason": reason})
	return out, nil
}

// Cancel moves a pending or approved request to cancelled. An empty reason
// defaults to "Request cancelled".
func (s *Service) Cancel(ctx context.Context, id, actorID int64, reason string) (Request, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "Request cancelled"
	}
	var out Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPending && req.Status != StatusApproved {
			return &TransitionError{Current: req.Status, Required: []Status{StatusPending, StatusApproved}}
		}
		req.Status = StatusCancelled
		req.Notes = reason
		if err := tx.SetStatus(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, actorID, "REQUEST_CANCEL", id, map[string]any{"reason": reason})
	return out, nil
}

// Fulfill sources an approved request from available stock, soonest expiry
// first. The allocation is all or nothing: on any shortfall the transaction
// rolls back, the request stays approved and no batch changes. On success the
// listing aggregate is recomputed and the requester is notified.
func (s *Service) Fulfill(ctx context.Context, id, fulfillerID int64) (Request, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if existing.Status != StatusApproved {
		return Request{}, &TransitionError{Current: existing.Status, Required: []Status{StatusApproved}}
	}

	unlock := s.locks.Lock(existing.ListingID)
	defer unlock()

	idemKey := fmt.Sprintf("request:fulfill:%d", id)
	if s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idemKey, "request"); err != nil {
			return Request{}, err
		}
	}

	var out Request
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusApproved {
			return &TransitionError{Current: req.Status, Required: []Status{StatusApproved}}
		}
		batches, err := tx.AvailableBatchesForUpdate(ctx, req.ListingID)
		if err != nil {
			return err
		}
		plan, shortfall := Allocate(batches, req.Quantity)
		if shortfall > 0 {
			return &InsufficientStockError{Requested: req.Quantity, Available: req.Quantity - shortfall}
		}
		for _, alloc := range plan {
			if err := tx.DecrementBatch(ctx, alloc.StockBatchID, alloc.Quantity); err != nil {
				return err
			}
		}
		if err := tx.InsertStocksUsed(ctx, req.ID, plan); err != nil {
			return err
		}
		at := s.now()
		req.Status = StatusFulfilled
		req.FulfilledBy = fulfillerID
		req.FulfillmentDate = &at
		req.StocksUsed = plan
		if err := tx.SetStatus(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		if s.idem != nil {
			if delErr := s.idem.Delete(ctx, idemKey); delErr != nil {
				s.logger.Warn("idempotency rollback failed", slog.String("key", idemKey), slog.Any("error", delErr))
			}
		}
		return Request{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordFulfillment()
	}
	l, err := s.listings.Recompute(ctx, out.ListingID)
	if err != nil {
		// The fulfilment is committed; the aggregate catches up on the
		// next mutation or sweep.
		s.logger.Warn("listing recompute after fulfilment failed",
			slog.Int64("listing_id", out.ListingID), slog.Any("error", err))
	}
	if s.notifier != nil {
		if err := s.notifier.RequestFulfilled(ctx, out, l.Title); err != nil {
			s.logger.Warn("fulfilment notification failed",
				slog.Int64("request_id", out.ID), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, fulfillerID, "REQUEST_FULFILL", id, map[string]any{
		"listing_id": out.ListingID, "quantity": out.Quantity, "batches": len(out.StocksUsed),
	})
	return out, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id int64) (Request, error) {
	return s.repo.Get(ctx, id)
}

// List returns requests matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	if filter.Status != "" {
		switch filter.Status {
		case StatusPending, StatusApproved, StatusFulfilled, StatusRejected, StatusCancelled:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
		}
	}
	if filter.Department != "" && !filter.Department.Valid() {
		return nil, fmt.Errorf("%w: unknown department %q", ErrValidation, filter.Department)
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "request", EntityID: fmt.Sprintf("%d", id), Meta: meta})
}
