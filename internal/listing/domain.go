package listing

import (
	"errors"
	"time"
)

// ABCCategory bands a listing by demand: A moves the most, C the least.
type ABCCategory string

const (
	ABCCategoryA ABCCategory = "A"
	ABCCategoryB ABCCategory = "B"
	ABCCategoryC ABCCategory = "C"
)

// StockLevel classifies current stock within the [min,max] policy band.
type StockLevel string

const (
	StockLevelLow      StockLevel = "low"
	StockLevelModerate StockLevel = "moderate"
	StockLevelHigh     StockLevel = "high"
)

// Status is the catalog lifecycle state of a listing.
type Status string

const (
	StatusActive       Status = "active"
	StatusDiscontinued Status = "discontinued"
	StatusOutOfStock   Status = "out-of-stock"
)

// Listing is a catalog entry for one inventory item.
// CurrentStock, StockLevelStatus and StockLevelPercentage are derived from
// the listing's stock batches and are never accepted from clients.
type Listing struct {
	ID                   int64
	ItemCode             string
	Title                string
	Description          string
	Category             string
	ABCCategory          ABCCategory
	MinStockLevel        int
	MaxStockLevel        int
	Status               Status
	CreatedBy            int64
	CurrentStock         int
	StockLevelStatus     StockLevel
	StockLevelPercentage float64
	LastStockUpdate      time.Time
	LastABCUpdate        time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CalculatedFields is the read-only derived view exposed to consumers.
type CalculatedFields struct {
	CurrentStock         int        `json:"current_stock"`
	StockLevelStatus     StockLevel `json:"stock_level_status"`
	StockLevelPercentage float64    `json:"stock_level_percentage"`
}

// MovementStats summarises batch activity inside the ABC window.
type MovementStats struct {
	RestockCount       int
	TotalQuantityMoved int
}

// ABCMaxAge is how long a stored ABC category stays fresh before a
// recompute triggers reclassification.
const ABCMaxAge = 30 * 24 * time.Hour

var (
	// ErrNotFound indicates the listing does not exist.
	ErrNotFound = errors.New("listing: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("listing: invalid input")
	// ErrDuplicateItemCode indicates the item code is already taken.
	ErrDuplicateItemCode = errors.New("listing: item code already exists")
)

// ClassifyStockLevel bands current stock into thirds of the [min,max] range.
// Degenerate thresholds (max <= min) still classify, they just stop being
// meaningful; schema-level ordering is deliberately not enforced.
func ClassifyStockLevel(current, min, max int) StockLevel {
	threshold := float64(max-min) / 3
	switch {
	case float64(current) <= float64(min)+threshold:
		return StockLevelLow
	case float64(current) <= float64(max)-threshold:
		return StockLevelModerate
	default:
		return StockLevelHigh
	}
}

// StockLevelPercentage places current stock inside [min,max] as 0-100.
func StockLevelPercentage(current, min, max int) float64 {
	span := max - min
	if span <= 0 {
		return 0
	}
	pct := float64(current-min) / float64(span) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// ClassifyABC applies the demand rule to trailing movement stats.
// First match wins.
func ClassifyABC(stats MovementStats) ABCCategory {
	switch {
	case stats.RestockCount >= 6 && stats.TotalQuantityMoved > 1000:
		return ABCCategoryA
	case stats.RestockCount >= 3 && stats.TotalQuantityMoved > 500:
		return ABCCategoryB
	default:
		return ABCCategoryC
	}
}
