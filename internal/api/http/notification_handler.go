package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"storhub-backend/internal/domain"
	"storhub-backend/internal/service"
)

// NotificationHandler serves the in-app notification feed for the
// authenticated user.
type NotificationHandler struct {
	notes service.NotificationService
}

func NewNotificationHandler(notes service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notes: notes}
}

type notificationListResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Total         int32                 `json:"total"`
	Page          int32                 `json:"page"`
	PageSize      int32                 `json:"page_size"`
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	page := int32(1)
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = int32(n)
		}
	}
	pageSize := int32(20)
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			pageSize = int32(n)
		}
	}

	claims := ClaimsFromContext(r.Context())
	notes, total, err := h.notes.GetNotifications(r.Context(), claims.UserID, page, pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, notificationListResponse{
		Notifications: notes,
		Total:         total,
		Page:          page,
		PageSize:      pageSize,
	})
}

// MarkAsRead handles POST /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid notification id")
		return
	}

	claims := ClaimsFromContext(r.Context())
	if err := h.notes.MarkAsRead(r.Context(), claims.UserID, id); err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]bool{"read": true})
}
