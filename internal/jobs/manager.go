package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsfin/disbursewatch/internal/pipeline"
	"github.com/opsfin/disbursewatch/pkg/models"
)

// ErrNotFound is returned for an unknown job id.
var ErrNotFound = errors.New("job not found")

// ErrInvalidJobState is returned when cancelling a job that already reached a
// terminal state.
var ErrInvalidJobState = errors.New("job is in a terminal state")

// job is one historical processing run. Jobs are retained after completion
// so status polling keeps working.
type job struct {
	id     string
	params models.JobParams
	cancel context.CancelFunc

	mu          sync.Mutex
	status      models.JobState
	progress    float64
	message     string
	stats       models.RunStats
	startedAt   time.Time
	completedAt time.Time
}

// setProgress advances the progress, never backwards.
func (j *job) setProgress(p float64, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if p > j.progress {
		j.progress = p
	}
	if msg != "" {
		j.message = msg
	}
}

func (j *job) snapshot() models.JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return models.JobSnapshot{
		ID:          j.id,
		Status:      j.status,
		Progress:    j.progress,
		Message:     j.message,
		Stats:       j.stats,
		StartedAt:   j.startedAt,
		CompletedAt: j.completedAt,
	}
}

// Manager runs historical batch jobs. Each job gets its own worker; distinct
// jobs may run concurrently with each other and with the live session, since
// they share only the persisted store.
type Manager struct {
	acquirer  *pipeline.Acquirer
	processor *pipeline.Processor
	logger    *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*job
}

// NewManager creates a new historical job manager
func NewManager(acquirer *pipeline.Acquirer, processor *pipeline.Processor, logger *slog.Logger) *Manager {
	return &Manager{
		acquirer:  acquirer,
		processor: processor,
		logger:    logger.With("component", "jobs"),
		jobs:      make(map[string]*job),
	}
}

// Start queues a new historical job and returns its id.
func (m *Manager) Start(params models.JobParams) string {
	params.Defaults()

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:        uuid.NewString(),
		params:    params,
		cancel:    cancel,
		status:    models.JobQueued,
		message:   "job queued for processing",
		startedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[j.id] = j
	m.mu.Unlock()

	go m.run(ctx, j)

	m.logger.Info("started historical job", "job_id", j.id, "days_back", params.DaysBack)
	return j.id
}

// Cancel cancels a queued or processing job. Terminal jobs cannot be
// cancelled.
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidJobState, j.status)
	}
	j.status = models.JobCancelled
	j.message = "job cancelled by user"
	j.completedAt = time.Now()
	j.mu.Unlock()

	j.cancel()
	m.logger.Info("cancelled historical job", "job_id", id)
	return nil
}

// Status returns a snapshot of the job.
func (m *Manager) Status(id string) (models.JobSnapshot, error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return models.JobSnapshot{}, ErrNotFound
	}
	return j.snapshot(), nil
}

// run executes one job: fetch the window once, then process every email with
// a cancellation check in between, so a long job stops promptly without
// losing already-committed records.
func (m *Manager) run(ctx context.Context, j *job) {
	defer func() {
		if r := recover(); r != nil {
			m.fail(j, fmt.Sprintf("job panicked: %v", r))
		}
	}()

	// Dequeue; a job cancelled while queued never starts processing
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return
	}
	j.status = models.JobProcessing
	j.message = "fetching emails"
	j.mu.Unlock()

	until := time.Now()
	since := until.AddDate(0, 0, -j.params.DaysBack)

	var stats models.RunStats
	seen := make(map[string]struct{})

	emails := m.acquirer.Acquire(ctx, pipeline.AcquireParams{
		Folders:       j.params.Folders,
		Since:         since,
		Until:         until,
		SubjectFilter: j.params.SubjectFilter,
		SenderFilter:  j.params.SenderFilter,
	}, seen, &stats)

	total := len(emails)
	j.setProgress(10, fmt.Sprintf("processing %d emails", total))
	m.mergeStats(j, &stats)

	for i, raw := range emails {
		if ctx.Err() != nil {
			// Cancel already set the terminal state; keep committed records
			return
		}

		var emailStats models.RunStats
		m.processor.ProcessEmail(ctx, raw, j.params.ForceSave, &emailStats)
		m.mergeStats(j, &emailStats)

		progress := 20 + 60*float64(i+1)/float64(total)
		j.setProgress(progress, fmt.Sprintf("processed %d/%d emails", i+1, total))
	}

	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return
	}
	j.status = models.JobCompleted
	j.progress = 100
	j.message = fmt.Sprintf("completed: %d emails processed, %d disbursements found",
		j.stats.EmailsProcessed, j.stats.NewRecords)
	j.completedAt = time.Now()
	emailsProcessed := j.stats.EmailsProcessed
	found := j.stats.NewRecords
	j.mu.Unlock()

	m.logger.Info("historical job completed",
		"job_id", j.id,
		"emails_processed", emailsProcessed,
		"disbursements_found", found)
}

func (m *Manager) mergeStats(j *job, stats *models.RunStats) {
	j.mu.Lock()
	j.stats.Merge(stats)
	j.mu.Unlock()
}

// fail transitions a non-terminal job to Failed, retaining the message.
func (m *Manager) fail(j *job, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = models.JobFailed
	j.message = msg
	j.completedAt = time.Now()
	m.logger.Error("historical job failed", "job_id", j.id, "error", msg)
}
