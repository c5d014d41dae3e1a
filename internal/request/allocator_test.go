package request

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medtrack/medtrack/internal/stock"
)

func datePtr(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestAllocateConsumesSoonestExpiryFirst(t *testing.T) {
	batches := []stock.Batch{
		{ID: 1, Quantity: 30, ExpirationDate: datePtr("2026-12-01"), Status: stock.BatchStatusAvailable},
		{ID: 2, Quantity: 30, ExpirationDate: datePtr("2026-09-01"), Status: stock.BatchStatusAvailable},
		{ID: 3, Quantity: 30, ExpirationDate: nil, Status: stock.BatchStatusAvailable},
	}
	plan, shortfall := Allocate(batches, 50)
	require.Zero(t, shortfall)
	require.Equal(t, []StockUsed{
		{StockBatchID: 2, Quantity: 30},
		{StockBatchID: 1, Quantity: 20},
	}, plan)
}

func TestAllocateNeverExpiringLast(t *testing.T) {
	batches := []stock.Batch{
		{ID: 1, Quantity: 10, ExpirationDate: nil, Status: stock.BatchStatusAvailable},
		{ID: 2, Quantity: 10, ExpirationDate: datePtr("2030-01-01"), Status: stock.BatchStatusAvailable},
	}
	plan, shortfall := Allocate(batches, 15)
	require.Zero(t, shortfall)
	require.Equal(t, []StockUsed{
		{StockBatchID: 2, Quantity: 10},
		{StockBatchID: 1, Quantity: 5},
	}, plan)
}

func TestAllocateTieBreaksOnID(t *testing.T) {
	exp := datePtr("2027-03-01")
	batches := []stock.Batch{
		{ID: 9, Quantity: 10, ExpirationDate: exp, Status: stock.BatchStatusAvailable},
		{ID: 4, Quantity: 10, ExpirationDate: exp, Status: stock.BatchStatusAvailable},
	}
	plan, shortfall := Allocate(batches, 12)
	require.Zero(t, shortfall)
	require.Equal(t, []StockUsed{
		{StockBatchID: 4, Quantity: 10},
		{StockBatchID: 9, Quantity: 2},
	}, plan)
}

func TestAllocateReportsShortfall(t *testing.T) {
	batches := []stock.Batch{
		{ID: 1, Quantity: 10, ExpirationDate: nil, Status: stock.BatchStatusAvailable},
	}
	plan, shortfall := Allocate(batches, 25)
	require.Equal(t, 15, shortfall)
	require.Equal(t, []StockUsed{{StockBatchID: 1, Quantity: 10}}, plan)
}

func TestAllocateIgnoresUnavailableBatches(t *testing.T) {
	batches := []stock.Batch{
		{ID: 1, Quantity: 10, Status: stock.BatchStatusExpired},
		{ID: 2, Quantity: 0, Status: stock.BatchStatusAvailable},
		{ID: 3, Quantity: 10, Status: stock.BatchStatusReserved},
	}
	plan, shortfall := Allocate(batches, 5)
	require.Equal(t, 5, shortfall)
	require.Empty(t, plan)
}

func TestAllocateZeroQuantity(t *testing.T) {
	plan, shortfall := Allocate(nil, 0)
	require.Zero(t, shortfall)
	require.Empty(t, plan)
}
