package notify

import (
	"errors"
	"time"
)

// Type categorizes a notification for client filtering.
type Type string

const (
	TypeRequest Type = "request"
	TypeStock   Type = "stock"
	TypeSystem  Type = "system"
	TypeAlert   Type = "alert"
)

// Valid reports whether t is a known notification type.
func (t Type) Valid() bool {
	switch t {
	case TypeRequest, TypeStock, TypeSystem, TypeAlert:
		return true
	}
	return false
}

// ReferenceKind names the entity a notification points at.
type ReferenceKind string

const (
	RefRequest    ReferenceKind = "request"
	RefListing    ReferenceKind = "listing"
	RefStockBatch ReferenceKind = "stock_batch"
)

// Reference links a notification to the entity that caused it.
type Reference struct {
	Kind ReferenceKind `json:"kind"`
	ID   int64         `json:"id"`
}

// Notification is a message delivered to one recipient. A zero RecipientID
// addresses the broadcast feed.
type Notification struct {
	ID          int64
	RecipientID int64
	Title       string
	Message     string
	Type        Type
	Reference   *Reference
	IsRead      bool
	CreatedAt   time.Time
}

var (
	// ErrNotFound indicates the notification does not exist.
	ErrNotFound = errors.New("notify: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("notify: invalid input")
)
