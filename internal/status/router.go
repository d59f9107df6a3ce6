// Package status serves the monitor's health, live state and metrics over
// HTTP.
package status

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ipal-monitor/internal/aggregate"
	"ipal-monitor/internal/auth"
	"ipal-monitor/internal/counter"
	"ipal-monitor/internal/facility"
	"ipal-monitor/internal/models"
	"ipal-monitor/internal/watcher"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Monitor is the part of the monitor service the router reads.
type Monitor interface {
	SelectedFacility() (models.Facility, bool)
	SelectFacility(id any) (models.Facility, error)
	Refresh() error
	AlertState() watcher.State
	ReadingState() watcher.State
	AlertCounts() (counter.Counts, error)
	ExportAlerts() ([]byte, error)
}

// Response is the body of GET /status.
type Response struct {
	Facility *models.Facility `json:"facility"`
	Alerts   AlertView        `json:"alerts"`
	Reading  ReadingView      `json:"reading"`
	Counts   CountsView       `json:"counts"`
}

type AlertView struct {
	Conn        string        `json:"conn"`
	Total       int           `json:"total"`
	Aggregates  aggregate.Set `json:"aggregates"`
	NewAlertIDs []string      `json:"new_alert_ids,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type ReadingView struct {
	Conn      string                   `json:"conn"`
	Summary   aggregate.ReadingSummary `json:"summary"`
	LastError string                   `json:"last_error,omitempty"`
}

type CountsView struct {
	counter.Counts
	Error string `json:"error,omitempty"`
}

type handler struct {
	monitor Monitor
	logger  *zap.Logger
}

// NewRouter builds the status router.
func NewRouter(m Monitor, logger *zap.Logger) http.Handler {
	h := &handler{monitor: m, logger: logger.With(zap.String("component", "status"))}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Get("/status", h.status)
	r.Post("/facility/{id}", h.selectFacility)
	r.Post("/refresh", h.refresh)
	r.Get("/alerts.xlsx", h.exportAlerts)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot())
}

func (h *handler) snapshot() Response {
	var resp Response
	if f, ok := h.monitor.SelectedFacility(); ok {
		resp.Facility = &f
	}

	as := h.monitor.AlertState()
	resp.Alerts = AlertView{
		Conn:        as.Conn.String(),
		Total:       as.Aggregates.Total,
		Aggregates:  as.Aggregates,
		NewAlertIDs: as.NewAlertIDs,
		LastError:   errString(as.LastError),
		UpdatedAt:   as.UpdatedAt,
	}

	rs := h.monitor.ReadingState()
	resp.Reading = ReadingView{
		Conn:      rs.Conn.String(),
		Summary:   rs.Reading,
		LastError: errString(rs.LastError),
	}

	counts, err := h.monitor.AlertCounts()
	resp.Counts = CountsView{Counts: counts, Error: errString(err)}
	return resp
}

func (h *handler) selectFacility(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid facility id")
		return
	}
	f, err := h.monitor.SelectFacility(id)
	switch {
	case errors.Is(err, facility.ErrUnknownFacility):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		h.logger.Error("Failed to select facility", zap.Int("ipal_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, f)
	}
}

func (h *handler) refresh(w http.ResponseWriter, _ *http.Request) {
	err := h.monitor.Refresh()
	switch {
	case auth.IsSessionExpired(err), errors.Is(err, auth.ErrNotAuthenticated), errors.Is(err, auth.ErrLoggedOut):
		writeError(w, http.StatusUnauthorized, err.Error())
	case err != nil:
		h.logger.Error("Failed to refresh monitor", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, h.snapshot())
	}
}

func (h *handler) exportAlerts(w http.ResponseWriter, _ *http.Request) {
	if st := h.monitor.AlertState(); st.Conn != watcher.Live {
		writeError(w, http.StatusServiceUnavailable, "alert subscription is "+st.Conn.String())
		return
	}
	data, err := h.monitor.ExportAlerts()
	if err != nil {
		h.logger.Error("Failed to export alerts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="alerts.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
