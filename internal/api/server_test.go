package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsfin/disbursewatch/internal/database"
	"github.com/opsfin/disbursewatch/internal/jobs"
	"github.com/opsfin/disbursewatch/internal/monitor"
	"github.com/opsfin/disbursewatch/internal/pipeline"
	"github.com/opsfin/disbursewatch/pkg/models"
)

type fakeSource struct {
	emails []models.RawEmail

	mu      sync.Mutex
	folders []string
}

func (s *fakeSource) Fetch(_ context.Context, folder string, _, _ time.Time) ([]models.RawEmail, error) {
	s.mu.Lock()
	s.folders = append(s.folders, folder)
	s.mu.Unlock()
	return s.emails, nil
}

func (s *fakeSource) fetchedFolders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.folders...)
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(_ context.Context, raw models.RawEmail) ([]models.CandidateRecord, error) {
	return []models.CandidateRecord{{
		LoanAccountNumber:  "LN-" + raw.ID,
		DisbursementStage:  "Disbursed",
		DisbursementAmount: "250000.00",
		DisbursedOn:        "2026-08-20",
		EmailSubject:       raw.Subject,
		EmailDate:          "2026-08-20T10:00:00Z",
	}}, nil
}

type fakeConnectivity struct {
	connected bool
}

func (f fakeConnectivity) IsConnected() bool { return f.connected }

func newTestServerWithDefaults(t *testing.T, src *fakeSource, defaults models.MonitorConfig) *httptest.Server {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	acquirer := pipeline.NewAcquirer(src, logger)
	processor := pipeline.NewProcessor(fakeExtractor{}, db, nil, logger)

	mon := monitor.New(acquirer, processor, logger)
	t.Cleanup(func() { mon.Stop() })
	mgr := jobs.NewManager(acquirer, processor, logger)

	s := New(":0", mon, mgr, db, fakeConnectivity{connected: true}, defaults, logger)
	srv := httptest.NewServer(s.http.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, src *fakeSource) *httptest.Server {
	t.Helper()
	return newTestServerWithDefaults(t, src, models.MonitorConfig{})
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestLiveLifecycleEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeSource{emails: []models.RawEmail{
		{ID: "m1", Subject: "Loan Disbursed", Date: time.Now()},
	}})

	// Stopping before starting conflicts
	resp := postJSON(t, srv.URL+"/api/v1/live/stop", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/v1/live/start", map[string]any{
		"polling_interval_seconds": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Double start conflicts
	resp = postJSON(t, srv.URL+"/api/v1/live/start", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/api/v1/live/status")
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var snap models.SessionSnapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			return false
		}
		return snap.Stats.EmailsProcessed >= 1
	}, 2*time.Second, 20*time.Millisecond)

	resp = postJSON(t, srv.URL+"/api/v1/live/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary models.SessionSummary
	decodeBody(t, resp, &summary)
	assert.Equal(t, 1, summary.DisbursementsFound)
}

func TestJobEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeSource{emails: []models.RawEmail{
		{ID: "m1", Subject: "Loan Disbursed", Date: time.Now()},
	}})

	resp := postJSON(t, srv.URL+"/api/v1/jobs", models.JobParams{DaysBack: 3})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var started struct {
		JobID string `json:"job_id"`
	}
	decodeBody(t, resp, &started)
	require.NotEmpty(t, started.JobID)

	var snap models.JobSnapshot
	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/api/v1/jobs/" + started.JobID)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			return false
		}
		return snap.Status.Terminal()
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, models.JobCompleted, snap.Status)
	assert.Equal(t, float64(100), snap.Progress)

	// Cancelling a completed job is invalid
	resp = postJSON(t, srv.URL+"/api/v1/jobs/"+started.JobID+"/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Unknown job ids are 404
	r, err := http.Get(srv.URL + "/api/v1/jobs/unknown")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, r.StatusCode)
	r.Body.Close()
}

func TestDisbursementEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeSource{emails: []models.RawEmail{
		{ID: "m1", Subject: "Loan Disbursed", Date: time.Now()},
	}})

	// Run one job to populate the store
	resp := postJSON(t, srv.URL+"/api/v1/jobs", nil)
	var started struct {
		JobID string `json:"job_id"`
	}
	decodeBody(t, resp, &started)

	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/api/v1/jobs/" + started.JobID)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var snap models.JobSnapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			return false
		}
		return snap.Status == models.JobCompleted
	}, 2*time.Second, 20*time.Millisecond)

	r, err := http.Get(srv.URL + "/api/v1/disbursements")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, r.StatusCode)
	var listing struct {
		Count int `json:"count"`
	}
	decodeBody(t, r, &listing)
	assert.Equal(t, 1, listing.Count)

	r, err = http.Get(srv.URL + "/api/v1/disbursements/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, r.StatusCode)
	var totals database.DisbursementTotals
	decodeBody(t, r, &totals)
	assert.Equal(t, 1, totals.TotalRecords)
	assert.Equal(t, 250000.00, totals.TotalAmount)
}

func TestLiveStartUsesConfiguredDefaults(t *testing.T) {
	defaults := models.MonitorConfig{
		PollInterval:  45 * time.Second,
		Folders:       []string{"INBOX", "Disbursals"},
		SubjectFilter: "loan disbursement",
		Lookback:      10 * time.Minute,
	}
	srv := newTestServerWithDefaults(t, &fakeSource{}, defaults)

	// Empty start request inherits every environment default
	resp := postJSON(t, srv.URL+"/api/v1/live/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	r, err := http.Get(srv.URL + "/api/v1/live/status")
	require.NoError(t, err)
	var snap models.SessionSnapshot
	decodeBody(t, r, &snap)

	assert.Equal(t, 45*time.Second, snap.Config.PollInterval)
	assert.Equal(t, []string{"INBOX", "Disbursals"}, snap.Config.Folders)
	assert.Equal(t, "loan disbursement", snap.Config.SubjectFilter)
	assert.Equal(t, 10*time.Minute, snap.Config.Lookback)

	resp = postJSON(t, srv.URL+"/api/v1/live/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Request fields still override the defaults
	resp = postJSON(t, srv.URL+"/api/v1/live/start", map[string]any{
		"polling_interval_seconds": 90,
		"email_folders":            []string{"Archive"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	r, err = http.Get(srv.URL + "/api/v1/live/status")
	require.NoError(t, err)
	decodeBody(t, r, &snap)
	assert.Equal(t, 90*time.Second, snap.Config.PollInterval)
	assert.Equal(t, []string{"Archive"}, snap.Config.Folders)
	assert.Equal(t, "loan disbursement", snap.Config.SubjectFilter)
}

func TestJobStartUsesConfiguredFolders(t *testing.T) {
	src := &fakeSource{}
	srv := newTestServerWithDefaults(t, src, models.MonitorConfig{
		Folders: []string{"INBOX", "Disbursals"},
	})

	resp := postJSON(t, srv.URL+"/api/v1/jobs", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var started struct {
		JobID string `json:"job_id"`
	}
	decodeBody(t, resp, &started)

	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/api/v1/jobs/" + started.JobID)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var snap models.JobSnapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			return false
		}
		return snap.Status.Terminal()
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, []string{"INBOX", "Disbursals"}, src.fetchedFolders())
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeSource{})

	r, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, r.StatusCode)

	var body map[string]any
	decodeBody(t, r, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["imap_connected"])
}

func TestStartLiveRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakeSource{})

	resp, err := http.Post(srv.URL+"/api/v1/live/start", "application/json",
		bytes.NewBufferString(`{"polling_interval_seconds": "fast"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
