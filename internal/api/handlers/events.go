package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/meetassist/backend/internal/api/middleware"
	"github.com/meetassist/backend/internal/storage"
	"github.com/meetassist/backend/internal/storage/models"
)

// SourceAPI tags events written through the REST API.
const SourceAPI = "api"

// ListEvents returns the full snapshot, or with ?updated_since= the delta
// since that stamp.
func ListEvents(events *storage.EventRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if raw := r.URL.Query().Get("updated_since"); raw != "" {
			since, err := models.ParseTime(raw)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid updated_since timestamp")
				return
			}

			d, err := events.Since(ctx, since)
			if err != nil {
				middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query event changes")
				return
			}
			middleware.WriteJSON(w, http.StatusOK, models.NewDeltaPayload(d))
			return
		}

		snap, err := events.Snapshot(ctx)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query events")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, models.NewSnapshotPayload(snap))
	}
}

// GetEvent returns a single live event by ID.
func GetEvent(events *storage.EventRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := events.GetByID(r.Context(), mux.Vars(r)["id"])
		if errors.Is(err, storage.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
			return
		}
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query event")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, models.NewEventPayload(*e))
	}
}

// CreateEvent stores a new event. A missing id is generated.
func CreateEvent(events *storage.EventRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.EventPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.ID) == "" {
			req.ID = storage.GenerateID()
		}

		saveEvent(w, r, events, req, http.StatusCreated)
	}
}

// PutEvent creates or replaces the event named in the path.
func PutEvent(events *storage.EventRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.EventPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		req.ID = mux.Vars(r)["id"]

		saveEvent(w, r, events, req, http.StatusOK)
	}
}

// DeleteEvent tombstones an event so delta readers see it in deletedIds.
func DeleteEvent(events *storage.EventRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := events.Delete(r.Context(), mux.Vars(r)["id"])
		if errors.Is(err, storage.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
			return
		}
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete event")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func saveEvent(w http.ResponseWriter, r *http.Request, events *storage.EventRepository, req models.EventPayload, status int) {
	e, err := req.Event()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
		return
	}
	if e.Source == "" {
		e.Source = SourceAPI
	}

	if err := events.Upsert(r.Context(), &e); err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to save event")
		return
	}
	middleware.WriteJSON(w, status, models.NewEventPayload(e))
}
