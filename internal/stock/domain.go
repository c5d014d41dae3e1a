package stock

import (
	"errors"
	"fmt"
	"time"
)

// BatchStatus enumerates the lifecycle states of an acquisition lot.
type BatchStatus string

const (
	BatchStatusAvailable BatchStatus = "available"
	BatchStatusReserved  BatchStatus = "reserved"
	BatchStatusDispensed BatchStatus = "dispensed"
	BatchStatusExpired   BatchStatus = "expired"
	BatchStatusDamaged   BatchStatus = "damaged"
	BatchStatusRecalled  BatchStatus = "recalled"
)

// Valid reports whether s is a known batch status.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchStatusAvailable, BatchStatusReserved, BatchStatusDispensed,
		BatchStatusExpired, BatchStatusDamaged, BatchStatusRecalled:
		return true
	}
	return false
}

// Supplier identifies where a batch was sourced from.
type Supplier struct {
	Name          string
	ContactPerson string
	ContactNumber string
	Email         string
}

// Batch is one acquisition lot of a listing. Only available batches with
// positive quantity count toward current stock or FEFO allocation.
// A nil ExpirationDate means the lot never expires.
type Batch struct {
	ID              int64
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
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var (
	// ErrNotFound indicates the batch does not exist.
	ErrNotFound = errors.New("stock: batch not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("stock: invalid input")
	// ErrThresholdViolation marks any min/max stock policy breach.
	ErrThresholdViolation = errors.New("stock: threshold violation")
)

// ThresholdError reports a mutation that would push current stock outside
// the listing's [min,max] band. It carries the would-be total and the
// violated bound so callers can explain the rejection.
type ThresholdError struct {
	NewTotal int
	Bound    int
	Ceiling  bool
}

func (e *ThresholdError) Error() string {
	if e.Ceiling {
		return fmt.Sprintf("stock: total quantity (%d) would exceed maximum stock level (%d)", e.NewTotal, e.Bound)
	}
	return fmt.Sprintf("stock: total quantity (%d) would be below minimum stock level (%d)", e.NewTotal, e.Bound)
}

// Is lets errors.Is match against ErrThresholdViolation.
func (e *ThresholdError) Is(target error) bool {
	return target == ErrThresholdViolation
}
