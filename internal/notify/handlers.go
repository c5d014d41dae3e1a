package notify

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/medtrack/medtrack/internal/platform/httpx"
)

// Handler wires HTTP endpoints for notifications.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the notification handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/unread-count", h.handleUnreadCount)
	r.Post("/{id}/read", h.handleMarkRead)
	r.Post("/read-all", h.handleMarkAllRead)
}

type notificationResponse struct {
	ID          int64      `json:"id"`
	RecipientID int64      `json:"recipient_id"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Type        string     `json:"type"`
	Reference   *Reference `json:"reference,omitempty"`
	IsRead      bool       `json:"is_read"`
	CreatedAt   string     `json:"created_at"`
}

func toResponse(n Notification) notificationResponse {
	return notificationResponse{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Title:       n.Title,
		Message:     n.Message,
		Type:        string(n.Type),
		Reference:   n.Reference,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	recipientID := queryInt64(r, "recipient_id")
	page := queryInt(r, "page")
	perPage := queryInt(r, "per_page")
	unreadOnly := r.URL.Query().Get("unread") == "true"

	items, pagination, err := h.service.List(r.Context(), recipientID, unreadOnly, page, perPage)
	if err != nil {
		h.respondError(w, "list notifications", err)
		return
	}
	out := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, toResponse(n))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"notifications": out,
		"pagination": map[string]any{
			"page":        pagination.Page,
			"per_page":    pagination.PerPage,
			"total":       pagination.Total,
			"total_pages": pagination.TotalPages,
		},
	})
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.UnreadCount(r.Context(), queryInt64(r, "recipient_id"))
	if err != nil {
		h.respondError(w, "unread count", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"unread": count})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.MarkRead(r.Context(), id); err != nil {
		h.respondError(w, "mark read", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "notification marked read"})
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.service.MarkAllRead(r.Context(), queryInt64(r, "recipient_id")); err != nil {
		h.respondError(w, "mark all read", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "notifications marked read"})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func queryInt64(r *http.Request, key string) int64 {
	v, _ := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return v
}

func queryInt(r *http.Request, key string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(key))
	return v
}
