package request

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the request lifecycle state. pending is the only initial state;
// fulfilled, rejected and cancelled are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusFulfilled Status = "fulfilled"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Priority ranks how urgently a department needs the item.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Department enumerates the hospital departments that may file requests.
type Department string

const (
	DepartmentEmergency   Department = "Emergency"
	DepartmentSurgery     Department = "Surgery"
	DepartmentICU         Department = "ICU"
	DepartmentPediatrics  Department = "Pediatrics"
	DepartmentLaboratory  Department = "Laboratory"
	DepartmentPharmacy    Department = "Pharmacy"
	DepartmentGeneralWard Department = "General Ward"
	DepartmentOBGYN       Department = "OB-GYN"
)

// Valid reports whether d is a known department.
func (d Department) Valid() bool {
	switch d {
	case DepartmentEmergency, DepartmentSurgery, DepartmentICU, DepartmentPediatrics,
		DepartmentLaboratory, DepartmentPharmacy, DepartmentGeneralWard, DepartmentOBGYN:
		return true
	}
	return false
}

// StockUsed records one batch consumed by a fulfilled request.
type StockUsed struct {
	StockBatchID int64 `json:"stock_batch_id"`
	Quantity     int   `json:"quantity"`
}

// Request is a department's ask for quantity of a listing. StocksUsed is
// populated only at the fulfilled transition and sums exactly to Quantity.
type Request struct {
	ID              int64
	ListingID       int64
	Department      Department
	RequestedBy     int64
	Quantity        int
	Priority        Priority
	Purpose         string
	Status          Status
	StocksUsed      []StockUsed
	ApprovedBy      int64
	ApprovalDate    *time.Time
	FulfilledBy     int64
	FulfillmentDate *time.Time
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var (
	// ErrNotFound indicates the request does not exist.
	ErrNotFound = errors.New("request: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("request: invalid input")
	// ErrInvalidTransition marks any lifecycle operation from a state that
	// does not permit it.
	ErrInvalidTransition = errors.New("request: invalid transition")
	// ErrInsufficientStock marks a fulfilment that could not be sourced.
	ErrInsufficientStock = errors.New("request: insufficient stock")
)

// TransitionError reports the state a request was in against the states the
// operation accepts.
type TransitionError struct {
	Current  Status
	Required []Status
}

func (e *TransitionError) Error() string {
	states := make([]string, len(e.Required))
	for i, s := range e.Required {
		states[i] = fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("request: transition requires status %s, current status is %q", strings.Join(states, " or "), e.Current)
}

// Is lets errors.Is match against ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// InsufficientStockError reports how far the available stock fell short.
type InsufficientStockError struct {
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("request: insufficient stock to fulfill request: need %d, available %d", e.Requested, e.Available)
}

// Is lets errors.Is match against ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
