package handlers

import (
	"net/http"
	"strconv"

	"github.com/meetassist/backend/internal/api/middleware"
	"github.com/meetassist/backend/internal/storage"
)

const maxNotificationLimit = 500

// ListNotifications returns the most recent notifications, newest first.
func ListNotifications(notifications *storage.NotificationRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := storage.DefaultNotificationLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "limit must be a positive integer")
				return
			}
			limit = min(n, maxNotificationLimit)
		}

		list, err := notifications.List(r.Context(), limit)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query notifications")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, list)
	}
}
