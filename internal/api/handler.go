// Package api provides the admin HTTP endpoints for the bridge.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/deskbridge/deskbridge/internal/health"
	"github.com/deskbridge/deskbridge/internal/monitor"
	"github.com/deskbridge/deskbridge/internal/store"
)

const defaultRecentLimit = 20

// Handler provides common handler utilities.
type Handler struct {
	repo     store.Repository
	tracker  *health.Tracker
	registry *monitor.Registry
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, tracker *health.Tracker, registry *monitor.Registry) *Handler {
	return &Handler{repo: repo, tracker: tracker, registry: registry}
}

// Routes mounts all admin endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/health/status", h.healthStatus)
	r.Post("/api/health/check", h.healthCheck)
	r.Get("/api/sessions/active", h.activeSessions)
	r.Get("/api/sessions/recent", h.recentSessions)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

type healthStatusResponse struct {
	Healthy    bool            `json:"healthy"`
	Components health.Snapshot `json:"components"`
}

func (h *Handler) healthStatus(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, healthStatusResponse{
		Healthy:    h.tracker.Healthy(),
		Components: h.tracker.Status(),
	})
}

// healthCheck runs a synchronous check cycle and returns the fresh snapshot.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	snap := h.tracker.ForceCheck(r.Context())
	JSON(w, http.StatusOK, healthStatusResponse{
		Healthy:    h.tracker.Healthy(),
		Components: snap,
	})
}

func (h *Handler) activeSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.registry.Active()
	JSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

func (h *Handler) recentSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			Error(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	sessions, err := h.repo.RecentSessions(r.Context(), limit)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load sessions")
		return
	}

	out := make([]map[string]interface{}, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, map[string]interface{}{
			"anchor":         s.Anchor,
			"channel_id":     s.ChannelID,
			"outcome":        string(s.Outcome),
			"content_length": s.ContentLength,
			"paragraphs":     s.Paragraphs,
			"started_at":     s.StartedAt,
			"finished_at":    s.FinishedAt,
		})
	}
	JSON(w, http.StatusOK, map[string]interface{}{"sessions": out})
}
