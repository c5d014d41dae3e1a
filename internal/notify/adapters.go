package notify

import (
	"context"
	"fmt"

	"github.com/medtrack/medtrack/internal/listing"
	"github.com/medtrack/medtrack/internal/request"
)

// RequestNotifier adapts the emitter to the request lifecycle's notifier
// port.
type RequestNotifier struct {
	service *Service
}

// NewRequestNotifier builds RequestNotifier.
func NewRequestNotifier(service *Service) *RequestNotifier {
	return &RequestNotifier{service: service}
}

// RequestFulfilled notifies the requester that their request was sourced.
func (n *RequestNotifier) RequestFulfilled(ctx context.Context, req request.Request, listingTitle string) error {
	if listingTitle == "" {
		listingTitle = fmt.Sprintf("listing #%d", req.ListingID)
	}
	_, err := n.service.Emit(ctx, Notification{
		RecipientID: req.RequestedBy,
		Title:       "Request Fulfilled",
		Message:     fmt.Sprintf("Your request for %s has been fulfilled", listingTitle),
		Type:        TypeRequest,
		Reference:   &Reference{Kind: RefRequest, ID: req.ID},
	})
	return err
}

// StockAlerter adapts the emitter to the listing aggregate's alert port.
type StockAlerter struct {
	service *Service
}

// NewStockAlerter builds StockAlerter.
func NewStockAlerter(service *Service) *StockAlerter {
	return &StockAlerter{service: service}
}

// StockLevelLow broadcasts that a listing crossed into the low band.
func (a *StockAlerter) StockLevelLow(ctx context.Context, l listing.Listing, currentStock int) error {
	_, err := a.service.Emit(ctx, Notification{
		Title: "Low Stock Alert",
		Message: fmt.Sprintf("%s is low on stock: %d on hand, minimum is %d",
			l.Title, currentStock, l.MinStockLevel),
		Type:      TypeAlert,
		Reference: &Reference{Kind: RefListing, ID: l.ID},
	})
	return err
}
