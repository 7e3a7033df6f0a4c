package monitor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsfin/disbursewatch/internal/pipeline"
	"github.com/opsfin/disbursewatch/pkg/models"
)

type fakeSource struct {
	mu     sync.Mutex
	emails []models.RawEmail
}

func (s *fakeSource) Fetch(_ context.Context, _ string, _, _ time.Time) ([]models.RawEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emails, nil
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(_ context.Context, raw models.RawEmail) ([]models.CandidateRecord, error) {
	return []models.CandidateRecord{{
		LoanAccountNumber:  "LN-" + raw.ID,
		DisbursementStage:  "Disbursed",
		DisbursementAmount: "100000.00",
		DisbursedOn:        "2026-08-20",
		EmailSubject:       raw.Subject,
		EmailDate:          "2026-08-20T10:00:00Z",
	}}, nil
}

type memStore struct {
	mu      sync.Mutex
	records []models.Disbursement
}

func (s *memStore) QueryByIdentifier(_ context.Context, loan, bankAppID string) ([]models.Disbursement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Disbursement
	for _, r := range s.records {
		if (loan != "" && r.LoanAccountNumber == loan) || (bankAppID != "" && r.BankAppID == bankAppID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) InsertDisbursement(_ context.Context, d *models.Disbursement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = int64(len(s.records) + 1)
	s.records = append(s.records, *d)
	return d.ID, nil
}

func newTestMonitor(src *fakeSource) *Monitor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	acquirer := pipeline.NewAcquirer(src, logger)
	processor := pipeline.NewProcessor(fakeExtractor{}, &memStore{}, nil, logger)
	return New(acquirer, processor, logger)
}

func testConfig() models.MonitorConfig {
	return models.MonitorConfig{PollInterval: 20 * time.Millisecond, Folders: []string{"INBOX"}}
}

func TestStartStopLifecycle(t *testing.T) {
	src := &fakeSource{emails: []models.RawEmail{{ID: "m1", Subject: "Loan Disbursed", Date: time.Now()}}}
	m := newTestMonitor(src)

	assert.Equal(t, models.SessionStopped, m.Status().Status)

	_, err := m.Start(testConfig())
	require.NoError(t, err)
	assert.Equal(t, models.SessionRunning, m.Status().Status)

	require.Eventually(t, func() bool {
		return m.Status().Stats.EmailsProcessed >= 1
	}, time.Second, 10*time.Millisecond)

	summary, err := m.Stop()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DisbursementsFound)
	assert.Equal(t, models.SessionStopped, m.Status().Status)
}

func TestStartWhileRunningFails(t *testing.T) {
	m := newTestMonitor(&fakeSource{})

	_, err := m.Start(testConfig())
	require.NoError(t, err)
	defer m.Stop()

	_, err = m.Start(testConfig())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestStopWhileStoppedFails(t *testing.T) {
	m := newTestMonitor(&fakeSource{})
	_, err := m.Stop()
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestSeenEmailsNotReprocessedWithinSession(t *testing.T) {
	src := &fakeSource{emails: []models.RawEmail{{ID: "m1", Subject: "Loan Disbursed", Date: time.Now()}}}
	m := newTestMonitor(src)

	_, err := m.Start(testConfig())
	require.NoError(t, err)

	// Wait long enough for several poll cycles over the same mailbox
	require.Eventually(t, func() bool {
		return !m.Status().LastCheckAt.IsZero()
	}, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	_, err = m.Stop()
	require.NoError(t, err)
	assert.Equal(t, 1, m.Status().Stats.EmailsProcessed)
}

func TestRestartResetsSessionState(t *testing.T) {
	src := &fakeSource{emails: []models.RawEmail{{ID: "m1", Subject: "Loan Disbursed", Date: time.Now()}}}
	m := newTestMonitor(src)

	_, err := m.Start(testConfig())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return m.Status().Stats.EmailsProcessed >= 1
	}, time.Second, 10*time.Millisecond)
	_, err = m.Stop()
	require.NoError(t, err)

	// A new session starts from an empty seen set and zeroed stats
	_, err = m.Start(testConfig())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return m.Status().Stats.EmailsProcessed >= 1
	}, time.Second, 10*time.Millisecond)

	summary, err := m.Stop()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EmailsProcessed)
}

func TestSessionRecordsCopied(t *testing.T) {
	src := &fakeSource{emails: []models.RawEmail{{ID: "m1", Subject: "Loan Disbursed", Date: time.Now()}}}
	m := newTestMonitor(src)

	_, err := m.Start(testConfig())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return m.Status().RecordCount == 1
	}, time.Second, 10*time.Millisecond)

	records := m.SessionRecords()
	require.Len(t, records, 1)
	assert.Equal(t, "LN-m1", records[0].LoanAccountNumber)

	_, err = m.Stop()
	require.NoError(t, err)
}
