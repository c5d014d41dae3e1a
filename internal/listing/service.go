package listing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/medtrack/medtrack/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Listing, error)
	List(ctx context.Context) ([]Listing, error)
	Create(ctx context.Context, l Listing) (int64, error)
	Update(ctx context.Context, l Listing) error
	UpdateDerived(ctx context.Context, id int64, update DerivedUpdate) error
	UpdateABC(ctx context.Context, id int64, category ABCCategory, at time.Time) error
	ListStaleABC(ctx context.Context, olderThan time.Time) ([]int64, error)
}

// StockReaderPort exposes the batch aggregates the listing derives from.
type StockReaderPort interface {
	AvailableQuantity(ctx context.Context, listingID int64) (int, error)
	MovementStats(ctx context.Context, listingID int64, since time.Time) (MovementStats, error)
}

// AlertPort receives stock level events. Best effort, never transactional.
type AlertPort interface {
	StockLevelLow(ctx context.Context, l Listing, currentStock int) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// DerivedUpdate carries the recomputed fields written back to a listing.
type DerivedUpdate struct {
	CurrentStock         int
	StockLevelStatus     StockLevel
	StockLevelPercentage float64
	LastStockUpdate      time.Time
}

// Service is the single source of truth for a listing's inventory state.
type Service struct {
	repo   RepositoryPort
	stocks StockReaderPort
	alerts AlertPort
	cache  *Cache
	audit  AuditPort
	logger *slog.Logger
	sf     singleflight.Group
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, stocks StockReaderPort, alerts AlertPort, cache *Cache, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, stocks: stocks, alerts: alerts, cache: cache, audit: audit, logger: logger, now: time.Now}
}

// CreateInput describes a new catalog entry.
type CreateInput struct {
	ItemCode      string
	Title         string
	Description   string
	Category      string
	MinStockLevel int
	MaxStockLevel int
	CreatedBy     int64
}

// Create validates and persists a new listing. New listings start in
// category C with an empty stock position.
func (s *Service) Create(ctx context.Context, input CreateInput) (Listing, error) {
	if strings.TrimSpace(input.ItemCode) == "" {
		return Listing{}, fmt.Errorf("%w: item code is required", ErrValidation)
	}
	if strings.TrimSpace(input.Title) == "" {
		return Listing{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(input.Description) == "" {
		return Listing{}, fmt.Errorf("%w: description is required", ErrValidation)
	}
	if strings.TrimSpace(input.Category) == "" {
		return Listing{}, fmt.Errorf("%w: category is required", ErrValidation)
	}
	if input.MinStockLevel < 0 || input.MaxStockLevel < 0 {
		return Listing{}, fmt.Errorf("%w: stock levels cannot be negative", ErrValidation)
	}
	now := s.now()
	l := Listing{
		ItemCode:             input.ItemCode,
		Title:                input.Title,
		Description:          input.Description,
		Category:             input.Category,
		ABCCategory:          ABCCategoryC,
		MinStockLevel:        input.MinStockLevel,
		MaxStockLevel:        input.MaxStockLevel,
		Status:               StatusActive,
		CreatedBy:            input.CreatedBy,
		StockLevelStatus:     StockLevelLow,
		StockLevelPercentage: 0,
		LastStockUpdate:      now,
		LastABCUpdate:        now,
	}
	id, err := s.repo.Create(ctx, l)
	if err != nil {
		return Listing{}, err
	}
	l.ID = id
	s.recordAudit(ctx, input.CreatedBy, "LISTING_CREATE", id, map[string]any{"item_code": l.ItemCode})
	return l, nil
}

// UpdateInput carries the client-settable listing fields. Nil stock levels
// keep the stored thresholds.
type UpdateInput struct {
	Title         string
	Description   string
	Category      string
	MinStockLevel *int
	MaxStockLevel *int
	Status        Status
	ActorID       int64
}

// Update persists changes to the policy fields and recomputes the derived
// state against the possibly changed thresholds.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Listing, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	if input.MinStockLevel != nil && *input.MinStockLevel < 0 {
		return Listing{}, fmt.Errorf("%w: stock levels cannot be negative", ErrValidation)
	}
	if input.MaxStockLevel != nil && *input.MaxStockLevel < 0 {
		return Listing{}, fmt.Errorf("%w: stock levels cannot be negative", ErrValidation)
	}
	if input.Title != "" {
		l.Title = input.Title
	}
	if input.Description != "" {
		l.Description = input.Description
	}
	if input.Category != "" {
		l.Category = input.Category
	}
	if input.Status != "" {
		switch input.Status {
		case StatusActive, StatusDiscontinued, StatusOutOfStock:
			l.Status = input.Status
		default:
			return Listing{}, fmt.Errorf("%w: unknown status %q", ErrValidation, input.Status)
		}
	}
	if input.MinStockLevel != nil {
		l.MinStockLevel = *input.MinStockLevel
	}
	if input.MaxStockLevel != nil {
		l.MaxStockLevel = *input.MaxStockLevel
	}
	if err := s.repo.Update(ctx, l); err != nil {
		return Listing{}, err
	}
	s.recordAudit(ctx, input.ActorID, "LISTING_UPDATE", id, map[string]any{"item_code": l.ItemCode})
	return s.Recompute(ctx, id)
}

// Get returns one listing.
func (s *Service) Get(ctx context.Context, id int64) (Listing, error) {
	return s.repo.Get(ctx, id)
}

// List returns all listings.
func (s *Service) List(ctx context.Context) ([]Listing, error) {
	return s.repo.List(ctx)
}

// Calculated returns the derived fields for one listing without writing
// anything back. Reads are cached and deduplicated.
func (s *Service) Calculated(ctx context.Context, id int64) (CalculatedFields, error) {
	if fields, ok, err := s.cache.Get(ctx, id); err == nil && ok {
		return fields, nil
	}
	key := fmt.Sprintf("listing:calculated:%d", id)
	v, err, _ := s.sf.Do(key, func() (any, error) {
		l, err := s.repo.Get(ctx, id)
		if err != nil {
			return CalculatedFields{}, err
		}
		current, err := s.stocks.AvailableQuantity(ctx, id)
		if err != nil {
			return CalculatedFields{}, err
		}
		fields := CalculatedFields{
			CurrentStock:         current,
			StockLevelStatus:     ClassifyStockLevel(current, l.MinStockLevel, l.MaxStockLevel),
			StockLevelPercentage: StockLevelPercentage(current, l.MinStockLevel, l.MaxStockLevel),
		}
		if err := s.cache.Set(ctx, id, fields); err != nil {
			s.logger.Warn("cache calculated fields", slog.Int64("listing_id", id), slog.Any("error", err))
		}
		return fields, nil
	})
	if err != nil {
		return CalculatedFields{}, err
	}
	return v.(CalculatedFields), nil
}

// Recompute refreshes the derived fields from the batch set and persists
// them. Called by the stock guard and the request lifecycle after every
// stock-affecting write. A listing whose category has gone stale is
// reclassified on the way through.
func (s *Service) Recompute(ctx context.Context, id int64) (Listing, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	current, err := s.stocks.AvailableQuantity(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	now := s.now()
	update := DerivedUpdate{
		CurrentStock:         current,
		StockLevelStatus:     ClassifyStockLevel(current, l.MinStockLevel, l.MaxStockLevel),
		StockLevelPercentage: StockLevelPercentage(current, l.MinStockLevel, l.MaxStockLevel),
		LastStockUpdate:      now,
	}
	if err := s.repo.UpdateDerived(ctx, id, update); err != nil {
		return Listing{}, err
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("invalidate calculated cache", slog.Int64("listing_id", id), slog.Any("error", err))
	}

	crossedLow := l.StockLevelStatus != StockLevelLow && update.StockLevelStatus == StockLevelLow
	if crossedLow && s.alerts != nil {
		alerted := l
		alerted.CurrentStock = current
		if err := s.alerts.StockLevelLow(ctx, alerted, current); err != nil {
			s.logger.Warn("low stock alert", slog.Int64("listing_id", id), slog.Any("error", err))
		}
	}

	if now.Sub(l.LastABCUpdate) > ABCMaxAge {
		if _, err := s.Reclassify(ctx, id); err != nil {
			s.logger.Warn("abc reclassify", slog.Int64("listing_id", id), slog.Any("error", err))
		}
	}
	return s.repo.Get(ctx, id)
}

// Reclassify recomputes the ABC demand category from the trailing six-month
// batch movement. The write is skipped when the category is unchanged.
func (s *Service) Reclassify(ctx context.Context, id int64) (ABCCategory, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	since := s.now().AddDate(0, -6, 0)
	stats, err := s.stocks.MovementStats(ctx, id, since)
	if err != nil {
		return "", err
	}
	next := ClassifyABC(stats)
	if next == l.ABCCategory {
		return next, nil
	}
	if err := s.repo.UpdateABC(ctx, id, next, s.now()); err != nil {
		return "", err
	}
	s.recordAudit(ctx, 0, "LISTING_ABC_UPDATE", id, map[string]any{
		"from": string(l.ABCCategory), "to": string(next),
		"restock_count": stats.RestockCount, "quantity_moved": stats.TotalQuantityMoved,
	})
	return next, nil
}

// StaleABCListings returns ids whose category is older than ABCMaxAge.
func (s *Service) StaleABCListings(ctx context.Context) ([]int64, error) {
	return s.repo.ListStaleABC(ctx, s.now().Add(-ABCMaxAge))
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "listing", EntityID: fmt.Sprintf("%d", id), Meta: meta})
}
