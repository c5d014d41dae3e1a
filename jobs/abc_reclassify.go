package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/medtrack/medtrack/internal/jobs"
	"github.com/medtrack/medtrack/internal/listing"
)

const (
	// TaskABCReclassify triggers the nightly ABC category sweep.
	TaskABCReclassify = "listing:abc_reclassify"

	abcSweepConcurrency = 4
)

// ABCReclassifyPayload carries scheduling metadata.
type ABCReclassifyPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewABCReclassifyTask constructs an Asynq task for the ABC sweep.
func NewABCReclassifyTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ABCReclassifyPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskABCReclassify, body, asynq.Queue(QueueDefault)), nil
}

// ABCReclassifier is the slice of the listing aggregate the sweep needs.
type ABCReclassifier interface {
	StaleABCListings(ctx context.Context) ([]int64, error)
	Reclassify(ctx context.Context, id int64) (listing.ABCCategory, error)
}

// NewABCReclassifyHandler builds the handler that reclassifies every listing
// whose ABC category has gone stale. Failures on individual listings are
// logged; the sweep continues.
func NewABCReclassifyHandler(listings ABCReclassifier, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := jobmetrics.NewMetrics(nil)
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("abc_reclassify")
		var payload ABCReclassifyPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		ids, err := listings.StaleABCListings(ctx)
		if err != nil {
			return tracker.End(err)
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(abcSweepConcurrency)
		for _, id := range ids {
			id := id
			g.Go(func() error {
				if _, err := listings.Reclassify(gctx, id); err != nil {
					logger.Warn("abc reclassify", slog.Int64("listing_id", id), slog.Any("error", err))
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return tracker.End(err)
		}
		logger.Info("abc sweep done", slog.Int("listings", len(ids)))
		return tracker.End(nil)
	}
}
