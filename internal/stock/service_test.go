package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medtrack/medtrack/internal/listing"
)

type fakeRepo struct {
	nextID  int64
	batches map[int64]Batch
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1, batches: make(map[int64]Batch)}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Mutations run on a copy and only apply on success, mirroring a
	// rolled-back transaction.
	staging := &fakeRepo{nextID: f.nextID, batches: make(map[int64]Batch, len(f.batches))}
	for id, b := range f.batches {
		staging.batches[id] = b
	}
	if err := fn(ctx, staging); err != nil {
		return err
	}
	f.nextID = staging.nextID
	f.batches = staging.batches
	return nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (Batch, error) {
	b, ok := f.batches[id]
	if !ok {
		return Batch{}, ErrNotFound
	}
	return b, nil
}

func (f *fakeRepo) List(_ context.Context) ([]Batch, error) {
	out := make([]Batch, 0, len(f.batches))
	for _, b := range f.batches {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeRepo) ListByListing(_ context.Context, listingID int64, status BatchStatus) ([]Batch, error) {
	var out []Batch
	for _, b := range f.batches {
		if b.ListingID != listingID {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeRepo) AvailableQuantityForUpdate(_ context.Context, listingID int64) (int, error) {
	total := 0
	for _, b := range f.batches {
		if b.ListingID == listingID && b.Status == BatchStatusAvailable {
			total += b.Quantity
		}
	}
	return total, nil
}

func (f *fakeRepo) Insert(_ context.Context, b Batch) (int64, error) {
	id := f.nextID
	f.nextID++
	b.ID = id
	f.batches[id] = b
	return id, nil
}

func (f *fakeRepo) Update(_ context.Context, b Batch) error {
	if _, ok := f.batches[b.ID]; !ok {
		return ErrNotFound
	}
	f.batches[b.ID] = b
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.batches[id]; !ok {
		return ErrNotFound
	}
	delete(f.batches, id)
	return nil
}

type fakeListings struct {
	listings   map[int64]listing.Listing
	recomputed []int64
	repo       *fakeRepo
}

func (f *fakeListings) Get(_ context.Context, id int64) (listing.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return listing.Listing{}, listing.ErrNotFound
	}
	return l, nil
}

func (f *fakeListings) Recompute(ctx context.Context, id int64) (listing.Listing, error) {
	f.recomputed = append(f.recomputed, id)
	l, ok := f.listings[id]
	if !ok {
		return listing.Listing{}, listing.ErrNotFound
	}
	current, _ := f.repo.AvailableQuantityForUpdate(ctx, id)
	l.CurrentStock = current
	l.StockLevelStatus = listing.ClassifyStockLevel(current, l.MinStockLevel, l.MaxStockLevel)
	f.listings[id] = l
	return l, nil
}

func setup() (*Service, *fakeRepo, *fakeListings) {
	repo := newFakeRepo()
	listings := &fakeListings{
		listings: map[int64]listing.Listing{
			1: {ID: 1, Title: "IV Catheter", MinStockLevel: 10, MaxStockLevel: 100},
		},
		repo: repo,
	}
	svc := NewService(repo, listings, nil, nil, nil, nil)
	return svc, repo, listings
}

func validInput(qty int) CreateInput {
	return CreateInput{
		ListingID:    1,
		Quantity:     qty,
		UnitCost:     2.5,
		Supplier:     Supplier{Name: "MedSupply Co"},
		Manufacturer: "Acme Medical",
	}
}

func TestCreateWithinBand(t *testing.T) {
	svc, repo, listings := setup()

	created, err := svc.Create(context.Background(), validInput(50))
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, BatchStatusAvailable, created.Status)
	require.Len(t, repo.batches, 1)
	require.Equal(t, []int64{1}, listings.recomputed)
}

func TestCreateRejectsAboveMaximum(t *testing.T) {
	svc, repo, listings := setup()

	_, err := svc.Create(context.Background(), validInput(60))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), validInput(50))
	require.ErrorIs(t, err, ErrThresholdViolation)
	require.Contains(t, err.Error(), "total quantity (110) would exceed maximum stock level (100)")
	require.Len(t, repo.batches, 1)
	require.Len(t, listings.recomputed, 1)
}

func TestCreateRejectsBelowMinimum(t *testing.T) {
	svc, repo, _ := setup()

	_, err := svc.Create(context.Background(), validInput(5))
	require.ErrorIs(t, err, ErrThresholdViolation)
	require.Contains(t, err.Error(), "total quantity (5) would be below minimum stock level (10)")
	require.Empty(t, repo.batches)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := setup()

	_, err := svc.Create(context.Background(), validInput(0))
	require.ErrorIs(t, err, ErrValidation)

	input := validInput(50)
	input.Supplier.Name = " "
	_, err = svc.Create(context.Background(), input)
	require.ErrorIs(t, err, ErrValidation)

	input = validInput(50)
	input.Manufacturer = ""
	_, err = svc.Create(context.Background(), input)
	require.ErrorIs(t, err, ErrValidation)

	input = validInput(50)
	input.Status = "vanished"
	_, err = svc.Create(context.Background(), input)
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateGuardsQuantityDelta(t *testing.T) {
	svc, _, _ := setup()

	created, err := svc.Create(context.Background(), validInput(50))
	require.NoError(t, err)

	// 50 -> 90 keeps the total at 90, inside the band.
	updated, err := svc.Update(context.Background(), created.ID, UpdateInput{
		Quantity:     90,
		UnitCost:     2.5,
		Supplier:     Supplier{Name: "MedSupply Co"},
		Manufacturer: "Acme Medical",
	})
	require.NoError(t, err)
	require.Equal(t, 90, updated.Quantity)

	// 90 -> 120 would take the total to 120, above max.
	_, err = svc.Update(context.Background(), created.ID, UpdateInput{
		Quantity:     120,
		Supplier:     Supplier{Name: "MedSupply Co"},
		Manufacturer: "Acme Medical",
	})
	require.ErrorIs(t, err, ErrThresholdViolation)

	// 90 -> 5 would take the total to 5, below min.
	_, err = svc.Update(context.Background(), created.ID, UpdateInput{
		Quantity:     5,
		Supplier:     Supplier{Name: "MedSupply Co"},
		Manufacturer: "Acme Medical",
	})
	require.ErrorIs(t, err, ErrThresholdViolation)
}

func TestDeleteBypassesThresholds(t *testing.T) {
	svc, repo, listings := setup()

	created, err := svc.Create(context.Background(), validInput(50))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID, 0))
	require.Empty(t, repo.batches)
	require.Equal(t, []int64{1, 1}, listings.recomputed)

	require.ErrorIs(t, svc.Delete(context.Background(), created.ID, 0), ErrNotFound)
}

func TestCreateUnknownListing(t *testing.T) {
	svc, _, _ := setup()
	input := validInput(50)
	input.ListingID = 99
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, listing.ErrNotFound)
}

func TestCreateDefaultsAcquisitionDate(t *testing.T) {
	svc, _, _ := setup()
	created, err := svc.Create(context.Background(), validInput(50))
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), created.AcquisitionDate, time.Minute)
}
