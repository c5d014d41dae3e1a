package listing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medtrack/medtrack/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the listing catalog.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the listing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers listing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/export.csv", h.handleExport)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
	r.Get("/{id}/calculated", h.handleCalculated)
}

type createPayload struct {
	ItemCode      string `json:"item_code" validate:"required"`
	Title         string `json:"title" validate:"required"`
	Description   string `json:"description" validate:"required"`
	Category      string `json:"category" validate:"required"`
	MinStockLevel int    `json:"min_stock_level" validate:"gte=0"`
	MaxStockLevel int    `json:"max_stock_level" validate:"gte=0"`
	CreatedBy     int64  `json:"created_by"`
}

type updatePayload struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	MinStockLevel *int   `json:"min_stock_level" validate:"omitempty,gte=0"`
	MaxStockLevel *int   `json:"max_stock_level" validate:"omitempty,gte=0"`
	Status        string `json:"status"`
	ActorID       int64  `json:"actor_id"`
}

type listingResponse struct {
	ID                   int64   `json:"id"`
	ItemCode             string  `json:"item_code"`
	Title                string  `json:"title"`
	Description          string  `json:"description"`
	Category             string  `json:"category"`
	ABCCategory          string  `json:"abc_category"`
	MinStockLevel        int     `json:"min_stock_level"`
	MaxStockLevel        int     `json:"max_stock_level"`
	Status               string  `json:"status"`
	CurrentStock         int     `json:"current_stock"`
	StockLevelStatus     string  `json:"stock_level_status"`
	StockLevelPercentage float64 `json:"stock_level_percentage"`
	LastStockUpdate      string  `json:"last_stock_update"`
	LastABCUpdate        string  `json:"last_abc_update"`
}

func toResponse(l Listing) listingResponse {
	return listingResponse{
		ID:                   l.ID,
		ItemCode:             l.ItemCode,
		Title:                l.Title,
		Description:          l.Description,
		Category:             l.Category,
		ABCCategory:          string(l.ABCCategory),
		MinStockLevel:        l.MinStockLevel,
		MaxStockLevel:        l.MaxStockLevel,
		Status:               string(l.Status),
		CurrentStock:         l.CurrentStock,
		StockLevelStatus:     string(l.StockLevelStatus),
		StockLevelPercentage: l.StockLevelPercentage,
		LastStockUpdate:      l.LastStockUpdate.Format(time.RFC3339),
		LastABCUpdate:        l.LastABCUpdate.Format(time.RFC3339),
	}
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
		ItemCode:      payload.ItemCode,
		Title:         payload.Title,
		Description:   payload.Description,
		Category:      payload.Category,
		MinStockLevel: payload.MinStockLevel,
		MaxStockLevel: payload.MaxStockLevel,
		CreatedBy:     payload.CreatedBy,
	})
	if err != nil {
		h.respondError(w, "create listing", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, "list listings", err)
		return
	}
	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, toResponse(l))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"listings": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	l, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get listing", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(l))
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
	updated, err := h.service.Update(r.Context(), id, UpdateInput{
		Title:         payload.Title,
		Description:   payload.Description,
		Category:      payload.Category,
		MinStockLevel: payload.MinStockLevel,
		MaxStockLevel: payload.MaxStockLevel,
		Status:        Status(payload.Status),
		ActorID:       payload.ActorID,
	})
	if err != nil {
		h.respondError(w, "update listing", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) handleCalculated(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	fields, err := h.service.Calculated(r.Context(), id)
	if err != nil {
		h.respondError(w, "calculated fields", err)
		return
	}
	httpx.JSON(w, http.StatusOK, fields)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.ExportCSV(r.Context())
	if err != nil {
		h.respondError(w, "export listings", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="listings.csv"`)
	_, _ = w.Write(data)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicateItemCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
