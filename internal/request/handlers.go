package request

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
	"github.com/medtrack/medtrack/internal/shared"
)

// Handler wires HTTP endpoints for procurement requests.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the request handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/approve", h.handleApprove)
	r.Post("/{id}/reject", h.handleReject)
	r.Post("/{id}/cancel", h.handleCancel)
	r.Post("/{id}/fulfill", h.handleFulfill)
}

type createPayload struct {
	ListingID   int64  `json:"listing_id" validate:"required"`
	Department  string `json:"department" validate:"required"`
	RequestedBy int64  `json:"requested_by"`
	Quantity    int    `json:"quantity" validate:"required,gte=1"`
	Priority    string `json:"priority"`
	Purpose     string `json:"purpose" validate:"required"`
	Notes       string `json:"notes"`
}

type actionPayload struct {
	ActorID int64  `json:"actor_id"`
	Reason  string `json:"reason"`
}

type requestResponse struct {
	ID              int64       `json:"id"`
	ListingID       int64       `json:"listing_id"`
	Department      string      `json:"department"`
	RequestedBy     int64       `json:"requested_by"`
	Quantity        int         `json:"quantity"`
	Priority        string      `json:"priority"`
	Purpose         string      `json:"purpose"`
	Status          string      `json:"status"`
	StocksUsed      []StockUsed `json:"stocks_used"`
	ApprovedBy      int64       `json:"approved_by,omitempty"`
	ApprovalDate    *string     `json:"approval_date,omitempty"`
	FulfilledBy     int64       `json:"fulfilled_by,omitempty"`
	FulfillmentDate *string     `json:"fulfillment_date,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	CreatedAt       string      `json:"created_at"`
}

func toResponse(req Request) requestResponse {
	resp := requestResponse{
		ID:          req.ID,
		ListingID:   req.ListingID,
		Department:  string(req.Department),
		RequestedBy: req.RequestedBy,
		Quantity:    req.Quantity,
		Priority:    string(req.Priority),
		Purpose:     req.Purpose,
		Status:      string(req.Status),
		StocksUsed:  req.StocksUsed,
		ApprovedBy:  req.ApprovedBy,
		FulfilledBy: req.FulfilledBy,
		Notes:       req.Notes,
		CreatedAt:   req.CreatedAt.Format(time.RFC3339),
	}
	if resp.StocksUsed == nil {
		resp.StocksUsed = []StockUsed{}
	}
	if req.ApprovalDate != nil {
		formatted := req.ApprovalDate.Format(time.RFC3339)
		resp.ApprovalDate = &formatted
	}
	if req.FulfillmentDate != nil {
		formatted := req.FulfillmentDate.Format(time.RFC3339)
		resp.FulfillmentDate = &formatted
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
	created, err := h.service.Create(r.Context(), CreateInput{
		ListingID:   payload.ListingID,
		Department:  Department(payload.Department),
		RequestedBy: payload.RequestedBy,
		Quantity:    payload.Quantity,
		Priority:    Priority(payload.Priority),
		Purpose:     payload.Purpose,
		Notes:       payload.Notes,
	})
	if err != nil {
		h.respondError(w, "create request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Status:     Status(r.URL.Query().Get("status")),
		Department: Department(r.URL.Query().Get("department")),
	}
	if listingStr := r.URL.Query().Get("listing_id"); listingStr != "" {
		listingID, err := strconv.ParseInt(listingStr, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invalid listing_id")
			return
		}
		filter.ListingID = listingID
	}
	requests, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list requests", err)
		return
	}
	out := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, toResponse(req))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"requests": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(req))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, "approve request", func(id int64, payload actionPayload) (Request, error) {
		return h.service.Approve(r.Context(), id, payload.ActorID)
	})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, "reject request", func(id int64, payload actionPayload) (Request, error) {
		return h.service.Reject(r.Context(), id, payload.ActorID, payload.Reason)
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, "cancel request", func(id int64, payload actionPayload) (Request, error) {
		return h.service.Cancel(r.Context(), id, payload.ActorID, payload.Reason)
	})
}

func (h *Handler) handleFulfill(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, "fulfill request", func(id int64, payload actionPayload) (Request, error) {
		return h.service.Fulfill(r.Context(), id, payload.ActorID)
	})
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request, op string, fn func(int64, actionPayload) (Request, error)) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var payload actionPayload
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &payload); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
			return
		}
	}
	req, err := fn(id, payload)
	if err != nil {
		h.respondError(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(req))
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, listing.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Already Processed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
