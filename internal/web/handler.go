package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/screentime/screentime/internal/config"
	"github.com/screentime/screentime/internal/models"
	"github.com/screentime/screentime/internal/refresh"
	"github.com/screentime/screentime/internal/reporter"
	"github.com/screentime/screentime/pkg/usage"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const defaultEventLimit = 100

// EventStore is the read side of database.Repository used by the API.
type EventStore interface {
	ListEvents(ctx context.Context, w usage.Window, limit int) ([]models.UsageEvent, error)
	LatestEvent(ctx context.Context) (*models.UsageEvent, error)
}

// PermissionHinter is implemented by tracker.Permission.
type PermissionHinter interface {
	refresh.Permission
	RequestPermission() string
}

type Handler struct {
	config     *config.Config
	store      EventStore
	reporter   *reporter.Reporter
	controller *refresh.Controller
	permission PermissionHinter
	logger     zerolog.Logger
}

// NewHandler wires the API. The controller serves the default report (today,
// configured mode) so its last good result can stand in when the source fails.
func NewHandler(cfg *config.Config, store EventStore, rep *reporter.Reporter, controller *refresh.Controller, permission PermissionHinter, logger zerolog.Logger) *Handler {
	return &Handler{
		config:     cfg,
		store:      store,
		reporter:   rep,
		controller: controller,
		permission: permission,
		logger:     logger.With().Str("component", "web").Logger(),
	}
}

func (h *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/report", h.handleReport).Methods(http.MethodGet)
	router.HandleFunc("/api/events", h.handleEvents).Methods(http.MethodGet)
	router.HandleFunc("/api/events/latest", h.handleLatestEvent).Methods(http.MethodGet)
	router.HandleFunc("/api/status", h.handleStatus).Methods(http.MethodGet)

	router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	periodType := query.Get("period")
	if periodType == "" || periodType == "today" {
		periodType = "day"
	}
	if _, err := h.reporter.Period(periodType); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	mode := h.config.Report.AggregationMode()
	if m := query.Get("mode"); m != "" {
		parsed, err := usage.ParseMode(m)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		mode = parsed
	}

	var (
		report *models.Report
		err    error
	)
	useController := periodType == "day" && mode == h.config.Report.AggregationMode()
	switch {
	case useController:
		report, err = h.controller.Refresh(r.Context())
	case !h.permission.HasPermission():
		err = refresh.ErrPermissionDenied
	default:
		report, err = h.reporter.GenerateReport(r.Context(), periodType, mode)
	}

	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, report)

	case errors.Is(err, refresh.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, err.Error(), map[string]any{
			"hint": h.permission.RequestPermission(),
		})

	case errors.Is(err, usage.ErrSourceUnavailable):
		h.logger.Error().Err(err).Str("period", periodType).Msg("Report source unavailable")
		extra := map[string]any{}
		if last, ok := h.controller.Last(); ok && useController {
			extra["last_report"] = last
		}
		respondError(w, http.StatusServiceUnavailable, err.Error(), extra)

	default:
		h.logger.Error().Err(err).Str("period", periodType).Msg("Failed to generate report")
		respondError(w, http.StatusInternalServerError, "failed to generate report", nil)
	}
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	periodType := query.Get("period")
	if periodType == "" {
		periodType = "day"
	}
	period, err := h.reporter.Period(periodType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	limit := defaultEventLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = l
	}

	events, err := h.store.ListEvents(r.Context(), h.reporter.Window(period), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to fetch events")
		respondError(w, http.StatusInternalServerError, "failed to fetch events", nil)
		return
	}

	respondJSON(w, http.StatusOK, events)
}

func (h *Handler) handleLatestEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.store.LatestEvent(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to fetch latest event")
		respondError(w, http.StatusInternalServerError, "failed to fetch latest event", nil)
		return
	}

	if event == nil {
		respondError(w, http.StatusNotFound, "no events found", nil)
		return
	}

	respondJSON(w, http.StatusOK, event)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"running":        true,
		"permission":     h.permission.HasPermission(),
		"poll_interval":  h.config.Tracker.PollInterval.String(),
		"database_path":  h.config.Database.Path,
		"report_mode":    h.config.Report.AggregationMode().String(),
		"idle_threshold": h.config.Tracker.IdleThreshold.String(),
	}

	if last, ok := h.controller.Last(); ok {
		status["last_report_at"] = last.GeneratedAt
	}

	if latest, err := h.store.LatestEvent(r.Context()); err == nil && latest != nil {
		status["latest_event"] = map[string]any{
			"app_id":         latest.AppID,
			"kind":           latest.Kind,
			"window_title":   latest.WindowTitle,
			"timestamp":      latest.Timestamp,
			"display_server": latest.DisplayServer,
		}
	}

	respondJSON(w, http.StatusOK, status)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func respondError(w http.ResponseWriter, status int, msg string, extra map[string]any) {
	body := map[string]any{"error": msg}
	for k, v := range extra {
		body[k] = v
	}
	respondJSON(w, status, body)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
