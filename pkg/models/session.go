package models

import "time"

// SessionStatus is the lifecycle state of the live monitoring session.
type SessionStatus string

const (
	SessionStopped  SessionStatus = "stopped"
	SessionRunning  SessionStatus = "running"
	SessionStopping SessionStatus = "stopping"
)

// MonitorConfig configures the live monitoring session.
type MonitorConfig struct {
	PollInterval  time.Duration `json:"polling_interval"`
	Folders       []string      `json:"email_folders"`
	SubjectFilter string        `json:"subject_filter,omitempty"`
	SenderFilter  string        `json:"sender_filter,omitempty"`
	Lookback      time.Duration `json:"check_period"`
	ForceSave     bool          `json:"force_save,omitempty"`
}

// Defaults fills unset fields with sane values.
func (c *MonitorConfig) Defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	if len(c.Folders) == 0 {
		c.Folders = []string{"INBOX"}
	}
	if c.Lookback <= 0 {
		c.Lookback = 5 * time.Minute
	}
}

// SessionSnapshot is a point-in-time view of the live session state.
type SessionSnapshot struct {
	Status        SessionStatus  `json:"status"`
	StartedAt     time.Time      `json:"started_at,omitempty"`
	LastCheckAt   time.Time      `json:"last_check_at,omitempty"`
	UptimeSeconds int            `json:"uptime_seconds"`
	Stats         RunStats       `json:"stats"`
	Config        MonitorConfig  `json:"config"`
	RecordCount   int            `json:"session_record_count"`
	Records       []Disbursement `json:"session_records,omitempty"`
}

// SessionSummary is returned by StopSession.
type SessionSummary struct {
	EmailsProcessed    int `json:"emails_processed"`
	DisbursementsFound int `json:"disbursements_found"`
	UptimeSeconds      int `json:"uptime_seconds"`
}
