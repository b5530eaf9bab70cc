package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/meetassist/backend/internal/api/middleware"
	"github.com/meetassist/backend/internal/storage"
	"github.com/meetassist/backend/internal/storage/models"
)

// ListPlanner returns the planner snapshot for ?from=&to=, or the delta
// since ?updated_since= as seen from that range.
func ListPlanner(planner *storage.PlannerRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		rng := models.PlannerRange{From: query.Get("from"), To: query.Get("to")}

		from, fromErr := time.Parse(models.DateLayout, rng.From)
		to, toErr := time.Parse(models.DateLayout, rng.To)
		if fromErr != nil || toErr != nil || to.Before(from) {
			middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation,
				"from and to must be YYYY-MM-DD dates with from <= to", rng)
			return
		}

		if raw := query.Get("updated_since"); raw != "" {
			since, err := models.ParseTime(raw)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid updated_since timestamp")
				return
			}

			d, err := planner.Since(r.Context(), rng, since)
			if err != nil {
				middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query planner changes")
				return
			}
			middleware.WriteJSON(w, http.StatusOK, d)
			return
		}

		snap, err := planner.Snapshot(r.Context(), rng)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query planner")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, snap)
	}
}

// PutPlannerEntry creates or replaces the planner entry named in the path.
func PutPlannerEntry(planner *storage.PlannerRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Date  string  `json:"date"`
			Title string  `json:"title"`
			Hours float64 `json:"hours"`
			Notes string  `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if req.Hours < 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "hours must not be negative")
			return
		}

		entry := models.PlannerEntry{
			ID:    mux.Vars(r)["id"],
			Date:  req.Date,
			Title: req.Title,
			Hours: req.Hours,
			Notes: req.Notes,
		}
		err := planner.Upsert(r.Context(), &entry)
		if errors.Is(err, models.ErrInvalidEntry) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to save planner entry")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, entry)
	}
}

// DeletePlannerEntry tombstones a planner entry.
func DeletePlannerEntry(planner *storage.PlannerRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := planner.Delete(r.Context(), mux.Vars(r)["id"])
		if errors.Is(err, storage.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Planner entry not found")
			return
		}
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete planner entry")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
