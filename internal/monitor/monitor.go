package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opsfin/disbursewatch/internal/pipeline"
	"github.com/opsfin/disbursewatch/pkg/models"
)

// ErrAlreadyRunning is returned by Start while a session is running.
var ErrAlreadyRunning = errors.New("live monitoring is already running")

// ErrNotRunning is returned by Stop when no session is running.
var ErrNotRunning = errors.New("live monitoring is not running")

// stopTimeout bounds how long Stop waits for the in-flight cycle to finish.
const stopTimeout = 5 * time.Second

// Monitor owns the live monitoring session: a single background worker that
// repeatedly acquires and processes new emails, with cooperative stop. At
// most one session runs per process; session state (seen ids, stats, records)
// is reset on every Start.
type Monitor struct {
	acquirer  *pipeline.Acquirer
	processor *pipeline.Processor
	logger    *slog.Logger

	mu        sync.Mutex
	status    models.SessionStatus
	startedAt time.Time
	lastCheck time.Time
	cfg       models.MonitorConfig
	seen      map[string]struct{}
	stats     models.RunStats
	records   []models.Disbursement
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a stopped monitor
func New(acquirer *pipeline.Acquirer, processor *pipeline.Processor, logger *slog.Logger) *Monitor {
	return &Monitor{
		acquirer:  acquirer,
		processor: processor,
		logger:    logger.With("component", "monitor"),
		status:    models.SessionStopped,
	}
}

// Start begins a new monitoring session. It fails with ErrAlreadyRunning
// unless the previous session has fully stopped.
func (m *Monitor) Start(cfg models.MonitorConfig) (time.Time, error) {
	cfg.Defaults()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != models.SessionStopped {
		return time.Time{}, ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.status = models.SessionRunning
	m.startedAt = time.Now()
	m.lastCheck = time.Time{}
	m.cfg = cfg
	m.seen = make(map[string]struct{})
	m.stats = models.RunStats{}
	m.records = nil
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx, cfg, m.seen, m.done)

	m.logger.Info("live monitoring started",
		"poll_interval", cfg.PollInterval,
		"folders", cfg.Folders,
		"lookback", cfg.Lookback)

	return m.startedAt, nil
}

// Stop requests a cooperative stop and waits up to stopTimeout for the
// in-flight cycle to finish. The status becomes Stopped only once the worker
// actually exits; on timeout the summary is returned while the worker winds
// down in Stopping state.
func (m *Monitor) Stop() (*models.SessionSummary, error) {
	m.mu.Lock()
	if m.status != models.SessionRunning {
		m.mu.Unlock()
		return nil, ErrNotRunning
	}
	m.status = models.SessionStopping
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		m.logger.Warn("stop requested but worker has not exited yet")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	summary := &models.SessionSummary{
		EmailsProcessed:    m.stats.EmailsProcessed,
		DisbursementsFound: m.stats.NewRecords,
		UptimeSeconds:      int(time.Since(m.startedAt).Seconds()),
	}

	m.logger.Info("live monitoring stopped",
		"emails_processed", summary.EmailsProcessed,
		"disbursements_found", summary.DisbursementsFound,
		"uptime_seconds", summary.UptimeSeconds)

	return summary, nil
}

// Status returns a snapshot of the session. It never fails, even before the
// first Start.
func (m *Monitor) Status() models.SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := models.SessionSnapshot{
		Status:      m.status,
		StartedAt:   m.startedAt,
		LastCheckAt: m.lastCheck,
		Stats:       m.stats,
		Config:      m.cfg,
		RecordCount: len(m.records),
	}
	if !m.startedAt.IsZero() && m.status != models.SessionStopped {
		snap.UptimeSeconds = int(time.Since(m.startedAt).Seconds())
	}
	return snap
}

// SessionRecords returns the disbursements persisted since the session
// started.
func (m *Monitor) SessionRecords() []models.Disbursement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Disbursement, len(m.records))
	copy(out, m.records)
	return out
}

// run is the worker loop: one cycle, then sleep until the poll interval
// elapses or the stop signal arrives, whichever is first.
func (m *Monitor) run(ctx context.Context, cfg models.MonitorConfig, seen map[string]struct{}, done chan struct{}) {
	defer func() {
		m.mu.Lock()
		m.status = models.SessionStopped
		m.mu.Unlock()
		close(done)
		m.logger.Info("monitoring worker exited")
	}()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		m.cycle(ctx, cfg, seen)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cycle performs one acquisition and processing pass. Faults are recorded in
// the session stats and never terminate the session.
func (m *Monitor) cycle(ctx context.Context, cfg models.MonitorConfig, seen map[string]struct{}) {
	checkStart := time.Now()
	var stats models.RunStats
	var persisted []models.Disbursement

	emails := m.acquirer.Acquire(ctx, pipeline.AcquireParams{
		Folders:       cfg.Folders,
		Since:         checkStart.Add(-cfg.Lookback),
		Until:         checkStart,
		SubjectFilter: cfg.SubjectFilter,
		SenderFilter:  cfg.SenderFilter,
	}, seen, &stats)

	for _, raw := range emails {
		if ctx.Err() != nil {
			break
		}
		persisted = append(persisted, m.processor.ProcessEmail(ctx, raw, cfg.ForceSave, &stats)...)
	}

	m.mu.Lock()
	m.lastCheck = checkStart
	m.stats.Merge(&stats)
	m.records = append(m.records, persisted...)
	m.mu.Unlock()

	if stats.EmailsProcessed > 0 || stats.Errors > 0 {
		m.logger.Info("cycle completed",
			"emails_processed", stats.EmailsProcessed,
			"new_records", stats.NewRecords,
			"duplicates_skipped", stats.DuplicatesSkipped,
			"filtered_out", stats.FilteredOut,
			"duration", time.Since(checkStart))
	}
}
