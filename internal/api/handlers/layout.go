package handlers

import (
	"net/http"
	"time"

	"github.com/meetassist/backend/internal/api/middleware"
	"github.com/meetassist/backend/internal/calendar"
	"github.com/meetassist/backend/internal/storage/models"
)

// WeekLayout lays out the session's cached events for the seven days from
// ?start=YYYY-MM-DD, defaulting to today in the session's zone.
func WeekLayout(session *calendar.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc := session.Location()

		start := time.Now().In(loc)
		if raw := r.URL.Query().Get("start"); raw != "" {
			parsed, err := time.ParseInLocation(models.DateLayout, raw, loc)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "start must be a YYYY-MM-DD date")
				return
			}
			start = parsed
		}

		middleware.WriteJSON(w, http.StatusOK, session.WeekLayout(start))
	}
}
