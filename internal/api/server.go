package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/opsfin/disbursewatch/internal/database"
	"github.com/opsfin/disbursewatch/internal/jobs"
	"github.com/opsfin/disbursewatch/internal/monitor"
	"github.com/opsfin/disbursewatch/pkg/models"
)

// ConnectivityReporter reports mail source connectivity for health checks.
type ConnectivityReporter interface {
	IsConnected() bool
}

// Server exposes the control surface: live session management, historical
// jobs, and read access to persisted disbursements. Request fields left unset
// fall back to the environment-configured monitoring defaults.
type Server struct {
	monitor  *monitor.Monitor
	jobs     *jobs.Manager
	db       *database.DB
	imap     ConnectivityReporter
	defaults models.MonitorConfig
	logger   *slog.Logger
	http     *http.Server
}

// New creates the API server. imap may be nil; the health check then reports
// only database reachability.
func New(addr string, mon *monitor.Monitor, mgr *jobs.Manager, db *database.DB, imap ConnectivityReporter, defaults models.MonitorConfig, logger *slog.Logger) *Server {
	s := &Server{
		monitor:  mon,
		jobs:     mgr,
		db:       db,
		imap:     imap,
		defaults: defaults,
		logger:   logger.With("component", "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/live/start", s.handleLiveStart)
	mux.HandleFunc("POST /api/v1/live/stop", s.handleLiveStop)
	mux.HandleFunc("GET /api/v1/live/status", s.handleLiveStatus)
	mux.HandleFunc("POST /api/v1/jobs", s.handleJobStart)
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("POST /api/v1/jobs/{id}/cancel", s.handleJobCancel)
	mux.HandleFunc("GET /api/v1/disbursements", s.handleDisbursements)
	mux.HandleFunc("GET /api/v1/disbursements/stats", s.handleDisbursementStats)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe runs the HTTP server until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("api server listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// startLiveRequest is the live-start request body. Durations are given in
// seconds to keep the JSON surface client-friendly.
type startLiveRequest struct {
	PollIntervalSeconds int      `json:"polling_interval_seconds"`
	CheckPeriodSeconds  int      `json:"check_period_seconds"`
	Folders             []string `json:"email_folders"`
	SubjectFilter       string   `json:"subject_filter"`
	SenderFilter        string   `json:"sender_filter"`
	ForceSave           bool     `json:"force_save"`
}

func (s *Server) handleLiveStart(w http.ResponseWriter, r *http.Request) {
	var req startLiveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Unset request fields inherit the environment-configured defaults
	cfg := s.defaults
	if req.PollIntervalSeconds > 0 {
		cfg.PollInterval = time.Duration(req.PollIntervalSeconds) * time.Second
	}
	if req.CheckPeriodSeconds > 0 {
		cfg.Lookback = time.Duration(req.CheckPeriodSeconds) * time.Second
	}
	if len(req.Folders) > 0 {
		cfg.Folders = req.Folders
	}
	if req.SubjectFilter != "" {
		cfg.SubjectFilter = req.SubjectFilter
	}
	if req.SenderFilter != "" {
		cfg.SenderFilter = req.SenderFilter
	}
	cfg.ForceSave = req.ForceSave

	startedAt, err := s.monitor.Start(cfg)
	if err != nil {
		if errors.Is(err, monitor.ErrAlreadyRunning) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     models.SessionRunning,
		"started_at": startedAt,
	})
}

func (s *Server) handleLiveStop(w http.ResponseWriter, r *http.Request) {
	summary, err := s.monitor.Stop()
	if err != nil {
		if errors.Is(err, monitor.ErrNotRunning) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleLiveStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.monitor.Status()
	if r.URL.Query().Get("include_records") == "true" {
		snap.Records = s.monitor.SessionRecords()
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleJobStart(w http.ResponseWriter, r *http.Request) {
	var params models.JobParams
	if err := decodeJSON(r, &params); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(params.Folders) == 0 {
		params.Folders = s.defaults.Folders
	}
	if params.SubjectFilter == "" {
		params.SubjectFilter = s.defaults.SubjectFilter
	}
	if params.SenderFilter == "" {
		params.SenderFilter = s.defaults.SenderFilter
	}

	id := s.jobs.Start(params)
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": id,
		"status": models.JobQueued,
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.jobs.Status(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.jobs.Cancel(id); err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, jobs.ErrInvalidJobState):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"job_id": id,
		"status": models.JobCancelled,
	})
}

func (s *Server) handleDisbursements(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	records, err := s.db.RecentDisbursements(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("failed to list disbursements", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list disbursements")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleDisbursementStats(w http.ResponseWriter, r *http.Request) {
	totals, err := s.db.DisbursementStats(r.Context())
	if err != nil {
		s.logger.Error("failed to compute stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	s.writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}

	body := map[string]any{"status": "ok"}
	if s.imap != nil {
		// Informational only; the client connects on demand, so a currently
		// closed connection is not unhealthy
		body["imap_connected"] = s.imap.IsConnected()
	}
	s.writeJSON(w, http.StatusOK, body)
}

// decodeJSON decodes an optional JSON body; an empty body yields the zero
// value so every POST accepts defaults.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
