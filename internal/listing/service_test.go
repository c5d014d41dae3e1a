package listing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	nextID   int64
	listings map[int64]Listing
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1, listings: make(map[int64]Listing)}
}

func (f *fakeRepo) Get(_ context.Context, id int64) (Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return Listing{}, ErrNotFound
	}
	return l, nil
}

func (f *fakeRepo) List(_ context.Context) ([]Listing, error) {
	out := make([]Listing, 0, len(f.listings))
	for _, l := range f.listings {
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeRepo) Create(_ context.Context, l Listing) (int64, error) {
	for _, existing := range f.listings {
		if existing.ItemCode == l.ItemCode {
			return 0, ErrDuplicateItemCode
		}
	}
	id := f.nextID
	f.nextID++
	l.ID = id
	f.listings[id] = l
	return id, nil
}

func (f *fakeRepo) Update(_ context.Context, l Listing) error {
	if _, ok := f.listings[l.ID]; !ok {
		return ErrNotFound
	}
	f.listings[l.ID] = l
	return nil
}

func (f *fakeRepo) UpdateDerived(_ context.Context, id int64, update DerivedUpdate) error {
	l, ok := f.listings[id]
	if !ok {
		return ErrNotFound
	}
	l.CurrentStock = update.CurrentStock
	l.StockLevelStatus = update.StockLevelStatus
	l.StockLevelPercentage = update.StockLevelPercentage
	l.LastStockUpdate = update.LastStockUpdate
	f.listings[id] = l
	return nil
}

func (f *fakeRepo) UpdateABC(_ context.Context, id int64, category ABCCategory, at time.Time) error {
	l, ok := f.listings[id]
	if !ok {
		return ErrNotFound
	}
	l.ABCCategory = category
	l.LastABCUpdate = at
	f.listings[id] = l
	return nil
}

func (f *fakeRepo) ListStaleABC(_ context.Context, olderThan time.Time) ([]int64, error) {
	var ids []int64
	for id, l := range f.listings {
		if l.LastABCUpdate.Before(olderThan) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeStocks struct {
	quantities map[int64]int
	stats      map[int64]MovementStats
	statsSince time.Time
}

func (f *fakeStocks) AvailableQuantity(_ context.Context, listingID int64) (int, error) {
	return f.quantities[listingID], nil
}

func (f *fakeStocks) MovementStats(_ context.Context, listingID int64, since time.Time) (MovementStats, error) {
	f.statsSince = since
	return f.stats[listingID], nil
}

type fakeAlerts struct {
	lowAlerts []int64
	err       error
}

func (f *fakeAlerts) StockLevelLow(_ context.Context, l Listing, _ int) error {
	f.lowAlerts = append(f.lowAlerts, l.ID)
	return f.err
}

func newTestService(repo *fakeRepo, stocks *fakeStocks, alerts *fakeAlerts) *Service {
	var port AlertPort
	if alerts != nil {
		port = alerts
	}
	return NewService(repo, stocks, port, nil, nil, nil)
}

func seedListing(repo *fakeRepo, min, max int) Listing {
	l := Listing{
		ItemCode:         "MED-001",
		Title:            "Surgical Gloves",
		Description:      "Nitrile, size M",
		Category:         "Consumables",
		ABCCategory:      ABCCategoryC,
		MinStockLevel:    min,
		MaxStockLevel:    max,
		Status:           StatusActive,
		StockLevelStatus: StockLevelModerate,
		LastABCUpdate:    time.Now(),
	}
	id, _ := repo.Create(context.Background(), l)
	l.ID = id
	return l
}

func TestCreateValidatesAndDefaults(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeStocks{quantities: map[int64]int{}}, nil)

	_, err := svc.Create(context.Background(), CreateInput{Title: "x", Description: "y", Category: "z"})
	require.ErrorIs(t, err, ErrValidation)

	created, err := svc.Create(context.Background(), CreateInput{
		ItemCode:      "MED-002",
		Title:         "Saline 0.9%",
		Description:   "500ml bag",
		Category:      "Fluids",
		MinStockLevel: 10,
		MaxStockLevel: 100,
	})
	require.NoError(t, err)
	require.Equal(t, ABCCategoryC, created.ABCCategory)
	require.Equal(t, StatusActive, created.Status)
	require.Equal(t, StockLevelLow, created.StockLevelStatus)

	_, err = svc.Create(context.Background(), CreateInput{
		ItemCode:    "MED-002",
		Title:       "Duplicate",
		Description: "dup",
		Category:    "Fluids",
	})
	require.ErrorIs(t, err, ErrDuplicateItemCode)
}

func TestRecomputeDerivesFields(t *testing.T) {
	repo := newFakeRepo()
	stocks := &fakeStocks{quantities: map[int64]int{}}
	svc := newTestService(repo, stocks, nil)
	l := seedListing(repo, 10, 100)

	stocks.quantities[l.ID] = 55
	updated, err := svc.Recompute(context.Background(), l.ID)
	require.NoError(t, err)
	require.Equal(t, 55, updated.CurrentStock)
	require.Equal(t, StockLevelModerate, updated.StockLevelStatus)
	require.InDelta(t, 50.0, updated.StockLevelPercentage, 0.0001)
	require.False(t, updated.LastStockUpdate.IsZero())
}

func TestRecomputeAlertsOnLowCrossing(t *testing.T) {
	repo := newFakeRepo()
	stocks := &fakeStocks{quantities: map[int64]int{}}
	alerts := &fakeAlerts{}
	svc := newTestService(repo, stocks, alerts)
	l := seedListing(repo, 10, 100)

	stocks.quantities[l.ID] = 20
	_, err := svc.Recompute(context.Background(), l.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{l.ID}, alerts.lowAlerts)

	// Already low, no second alert.
	stocks.quantities[l.ID] = 15
	_, err = svc.Recompute(context.Background(), l.ID)
	require.NoError(t, err)
	require.Len(t, alerts.lowAlerts, 1)
}

func TestRecomputeAlertFailureDoesNotFail(t *testing.T) {
	repo := newFakeRepo()
	stocks := &fakeStocks{quantities: map[int64]int{}}
	alerts := &fakeAlerts{err: errors.New("smtp down")}
	svc := newTestService(repo, stocks, alerts)
	l := seedListing(repo, 10, 100)

	stocks.quantities[l.ID] = 5
	_, err := svc.Recompute(context.Background(), l.ID)
	require.NoError(t, err)
}

func TestRecomputeReclassifiesStaleABC(t *testing.T) {
	repo := newFakeRepo()
	stocks := &fakeStocks{
		quantities: map[int64]int{},
		stats:      map[int64]MovementStats{},
	}
	svc := newTestService(repo, stocks, nil)
	l := seedListing(repo, 10, 100)

	stale := l
	stale.LastABCUpdate = time.Now().Add(-ABCMaxAge - time.Hour)
	require.NoError(t, repo.Update(context.Background(), stale))

	stocks.quantities[l.ID] = 50
	stocks.stats[l.ID] = MovementStats{RestockCount: 7, TotalQuantityMoved: 1500}

	updated, err := svc.Recompute(context.Background(), l.ID)
	require.NoError(t, err)
	require.Equal(t, ABCCategoryA, updated.ABCCategory)
}

func TestReclassifyUsesSixMonthWindow(t *testing.T) {
	repo := newFakeRepo()
	stocks := &fakeStocks{
		quantities: map[int64]int{},
		stats:      map[int64]MovementStats{},
	}
	svc := newTestService(repo, stocks, nil)
	l := seedListing(repo, 10, 100)

	stocks.stats[l.ID] = MovementStats{RestockCount: 4, TotalQuantityMoved: 600}
	category, err := svc.Reclassify(context.Background(), l.ID)
	require.NoError(t, err)
	require.Equal(t, ABCCategoryB, category)

	wantSince := time.Now().AddDate(0, -6, 0)
	require.WithinDuration(t, wantSince, stocks.statsSince, time.Minute)
}

func TestReclassifySkipsWriteWhenUnchanged(t *testing.T) {
	repo := newFakeRepo()
	stocks := &fakeStocks{
		quantities: map[int64]int{},
		stats:      map[int64]MovementStats{},
	}
	svc := newTestService(repo, stocks, nil)
	l := seedListing(repo, 10, 100)

	before := repo.listings[l.ID].LastABCUpdate
	stocks.stats[l.ID] = MovementStats{RestockCount: 1, TotalQuantityMoved: 10}

	category, err := svc.Reclassify(context.Background(), l.ID)
	require.NoError(t, err)
	require.Equal(t, ABCCategoryC, category)
	require.Equal(t, before, repo.listings[l.ID].LastABCUpdate)
}

func TestCalculatedDoesNotPersist(t *testing.T) {
	repo := newFakeRepo()
	stocks := &fakeStocks{quantities: map[int64]int{}}
	svc := newTestService(repo, stocks, nil)
	l := seedListing(repo, 10, 100)

	stocks.quantities[l.ID] = 90
	fields, err := svc.Calculated(context.Background(), l.ID)
	require.NoError(t, err)
	require.Equal(t, 90, fields.CurrentStock)
	require.Equal(t, StockLevelHigh, fields.StockLevelStatus)

	stored, err := svc.Get(context.Background(), l.ID)
	require.NoError(t, err)
	require.Zero(t, stored.CurrentStock)
}

func TestUpdateRecomputesAgainstNewThresholds(t *testing.T) {
	repo := newFakeRepo()
	stocks := &fakeStocks{quantities: map[int64]int{}}
	svc := newTestService(repo, stocks, nil)
	l := seedListing(repo, 10, 100)

	stocks.quantities[l.ID] = 55
	updated, err := svc.Update(context.Background(), l.ID, UpdateInput{
		MinStockLevel: intPtr(50),
		MaxStockLevel: intPtr(60),
	})
	require.NoError(t, err)
	require.Equal(t, StockLevelModerate, updated.StockLevelStatus)
	require.InDelta(t, 50.0, updated.StockLevelPercentage, 0.0001)
}

func TestUpdateKeepsThresholdsWhenOmitted(t *testing.T) {
	repo := newFakeRepo()
	stocks := &fakeStocks{quantities: map[int64]int{}}
	svc := newTestService(repo, stocks, nil)
	l := seedListing(repo, 10, 100)

	updated, err := svc.Update(context.Background(), l.ID, UpdateInput{Title: "Renamed"})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Title)
	require.Equal(t, 10, updated.MinStockLevel)
	require.Equal(t, 100, updated.MaxStockLevel)

	_, err = svc.Update(context.Background(), l.ID, UpdateInput{MinStockLevel: intPtr(-1)})
	require.ErrorIs(t, err, ErrValidation)
}

func intPtr(n int) *int { return &n }
