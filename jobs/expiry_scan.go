package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/medtrack/medtrack/internal/jobs"
	"github.com/medtrack/medtrack/internal/listing"
)

const (
	// TaskExpiryScan triggers the daily expired-batch sweep.
	TaskExpiryScan = "stock:expiry_scan"
)

// ExpiryScanPayload carries scheduling metadata.
type ExpiryScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewExpiryScanTask constructs an Asynq task for the expiry sweep.
func NewExpiryScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ExpiryScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryScan, body, asynq.Queue(QueueDefault)), nil
}

// BatchExpirer flips overdue batches to expired and reports which listings
// were touched.
type BatchExpirer interface {
	ExpireOverdue(ctx context.Context, asOf time.Time) ([]int64, error)
}

// ListingRecomputer refreshes a listing's derived stock state.
type ListingRecomputer interface {
	Recompute(ctx context.Context, id int64) (listing.Listing, error)
}

// NewExpiryScanHandler builds the handler that expires overdue batches and
// recomputes every affected listing.
func NewExpiryScanHandler(expirer BatchExpirer, listings ListingRecomputer, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := jobmetrics.NewMetrics(nil)
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("expiry_scan")
		var payload ExpiryScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		asOf := payload.ScheduledFor
		if asOf.IsZero() {
			asOf = time.Now()
		}
		listingIDs, err := expirer.ExpireOverdue(ctx, asOf)
		if err != nil {
			return tracker.End(err)
		}
		for _, id := range listingIDs {
			if _, err := listings.Recompute(ctx, id); err != nil {
				logger.Warn("recompute after expiry", slog.Int64("listing_id", id), slog.Any("error", err))
			}
		}
		logger.Info("expiry scan done", slog.Int("listings", len(listingIDs)))
		return tracker.End(nil)
	}
}
