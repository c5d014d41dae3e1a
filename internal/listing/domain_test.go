package listing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyStockLevel(t *testing.T) {
	cases := []struct {
		name     string
		current  int
		min, max int
		want     StockLevel
	}{
		{name: "at minimum", current: 10, min: 10, max: 100, want: StockLevelLow},
		{name: "just inside low band", current: 40, min: 10, max: 100, want: StockLevelLow},
		{name: "middle band", current: 41, min: 10, max: 100, want: StockLevelModerate},
		{name: "upper edge of middle band", current: 70, min: 10, max: 100, want: StockLevelModerate},
		{name: "high band", current: 71, min: 10, max: 100, want: StockLevelHigh},
		{name: "above maximum", current: 150, min: 10, max: 100, want: StockLevelHigh},
		{name: "zero stock", current: 0, min: 10, max: 100, want: StockLevelLow},
		{name: "degenerate equal thresholds below", current: 4, min: 5, max: 5, want: StockLevelLow},
		{name: "degenerate equal thresholds above", current: 6, min: 5, max: 5, want: StockLevelHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyStockLevel(tc.current, tc.min, tc.max))
		})
	}
}

func TestStockLevelPercentage(t *testing.T) {
	require.InDelta(t, 50.0, StockLevelPercentage(55, 10, 100), 0.0001)
	require.Equal(t, 0.0, StockLevelPercentage(5, 10, 100))
	require.Equal(t, 100.0, StockLevelPercentage(200, 10, 100))
	require.Equal(t, 0.0, StockLevelPercentage(50, 100, 100))
	require.Equal(t, 0.0, StockLevelPercentage(50, 100, 40))
}

func TestClassifyABC(t *testing.T) {
	require.Equal(t, ABCCategoryA, ClassifyABC(MovementStats{RestockCount: 6, TotalQuantityMoved: 1001}))
	require.Equal(t, ABCCategoryB, ClassifyABC(MovementStats{RestockCount: 6, TotalQuantityMoved: 1000}))
	require.Equal(t, ABCCategoryB, ClassifyABC(MovementStats{RestockCount: 3, TotalQuantityMoved: 501}))
	require.Equal(t, ABCCategoryC, ClassifyABC(MovementStats{RestockCount: 3, TotalQuantityMoved: 500}))
	require.Equal(t, ABCCategoryC, ClassifyABC(MovementStats{RestockCount: 2, TotalQuantityMoved: 5000}))
	require.Equal(t, ABCCategoryC, ClassifyABC(MovementStats{}))
}
