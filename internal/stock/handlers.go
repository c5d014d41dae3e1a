package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medtrack/medtrack/internal/listing"
	"github.com/medtrack/medtrack/internal/platform/httpx"
)

// Handler wires HTTP endpoints for stock batches.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
}

type supplierPayload struct {
	Name          string `json:"name" validate:"required"`
	ContactPerson string `json:"contact_person"`
	ContactNumber string `json:"contact_number"`
	Email         string `json:"email" validate:"omitempty,email"`
}

type createPayload struct {
	ListingID       int64           `json:"listing_id" validate:"required"`
	Quantity        int             `json:"quantity" validate:"required"`
	UnitCost        float64         `json:"unit_cost" validate:"gte=0"`
	AcquisitionDate string          `json:"acquisition_date"`
	ExpirationDate  string          `json:"expiration_date"`
	Supplier        supplierPayload `json:"supplier"`
	Manufacturer    string          `json:"manufacturer" validate:"required"`
	Status          string          `json:"status"`
	StorageLocation string          `json:"storage_location"`
	Notes           string          `json:"notes"`
	ActorID         int64           `json:"actor_id"`
}

type updatePayload struct {
	Quantity        int             `json:"quantity" validate:"required"`
	UnitCost        float64         `json:"unit_cost" validate:"gte=0"`
	ExpirationDate  string          `json:"expiration_date"`
	Supplier        supplierPayload `json:"supplier"`
	Manufacturer    string          `json:"manufacturer"`
	Status          string          `json:"status"`
	StorageLocation string          `json:"storage_location"`
	Notes           string          `json:"notes"`
	ActorID         int64           `json:"actor_id"`
}

type batchResponse struct {
	ID              int64    `json:"id"`
	ListingID       int64    `json:"listing_id"`
	Quantity        int      `json:"quantity"`
	UnitCost        float64  `json:"unit_cost"`
	AcquisitionDate string   `json:"acquisition_date"`
	ExpirationDate  *string  `json:"expiration_date"`
	Supplier        Supplier `json:"supplier"`
	Manufacturer    string   `json:"manufacturer"`
	Status          string   `json:"status"`
	StorageLocation string   `json:"storage_location,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

func toResponse(b Batch) batchResponse {
	resp := batchResponse{
		ID:              b.ID,
		ListingID:       b.ListingID,
		Quantity:        b.Quantity,
		UnitCost:        b.UnitCost,
		AcquisitionDate: b.AcquisitionDate.Format(time.RFC3339),
		Supplier:        b.Supplier,
		Manufacturer:    b.Manufacturer,
		Status:          string(b.Status),
		StorageLocation: b.StorageLocation,
		Notes:           b.Notes,
	}
	if b.ExpirationDate != nil {
		formatted := b.ExpirationDate.Format(time.RFC3339)
		resp.ExpirationDate = &formatted
	}
	return resp
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	acquisition, err := parseDate(payload.AcquisitionDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid acquisition_date")
		return
	}
	expiration, err := parseOptionalDate(payload.ExpirationDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid expiration_date")
		return
	}
	created, err := h.service.Create(r.Context(), CreateInput{
		ListingID:       payload.ListingID,
		Quantity:        payload.Quantity,
		UnitCost:        payload.UnitCost,
		AcquisitionDate: acquisition,
		ExpirationDate:  expiration,
		Supplier: Supplier{
			Name:          payload.Supplier.Name,
			ContactPerson: payload.Supplier.ContactPerson,
			ContactNumber: payload.Supplier.ContactNumber,
			Email:         payload.Supplier.Email,
		},
		Manufacturer:    payload.Manufacturer,
		Status:          BatchStatus(payload.Status),
		StorageLocation: payload.StorageLocation,
		Notes:           payload.Notes,
		ActorID:         payload.ActorID,
	})
	if err != nil {
		h.respondError(w, "create stock batch", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var batches []Batch
	var err error
	if listingStr := r.URL.Query().Get("listing_id"); listingStr != "" {
		listingID, parseErr := strconv.ParseInt(listingStr, 10, 64)
		if parseErr != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invalid listing_id")
			return
		}
		batches, err = h.service.ListByListing(r.Context(), listingID, BatchStatus(r.URL.Query().Get("status")))
	} else {
		batches, err = h.service.List(r.Context())
	}
	if err != nil {
		h.respondError(w, "list stock batches", err)
		return
	}
	out := make([]batchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, toResponse(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stocks": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	b, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get stock batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(b))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var payload updatePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	expiration, err := parseOptionalDate(payload.ExpirationDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid expiration_date")
		return
	}
	updated, err := h.service.Update(r.Context(), id, UpdateInput{
		Quantity:       payload.Quantity,
		UnitCost:       payload.UnitCost,
		ExpirationDate: expiration,
		Supplier: Supplier{
			Name:          payload.Supplier.Name,
			ContactPerson: payload.Supplier.ContactPerson,
			ContactNumber: payload.Supplier.ContactNumber,
			Email:         payload.Supplier.Email,
		},
		Manufacturer:    payload.Manufacturer,
		Status:          BatchStatus(payload.Status),
		StorageLocation: payload.StorageLocation,
		Notes:           payload.Notes,
		ActorID:         payload.ActorID,
	})
	if err != nil {
		h.respondError(w, "update stock batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id, 0); err != nil {
		h.respondError(w, "delete stock batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "stock batch deleted"})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, listing.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrThresholdViolation):
		httpx.Problem(w, http.StatusBadRequest, "Threshold Violation", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func parseOptionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := parseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
