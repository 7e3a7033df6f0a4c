package models

import "time"

// JobState is the lifecycle state of a historical processing job.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
	JobCancelled  JobState = "cancelled"
)

// Terminal reports whether no further transitions are allowed out of s.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// JobParams configures a historical processing job.
type JobParams struct {
	DaysBack      int      `json:"days_back"`
	Folders       []string `json:"email_folders"`
	SubjectFilter string   `json:"subject_filter,omitempty"`
	SenderFilter  string   `json:"sender_filter,omitempty"`
	ForceSave     bool     `json:"force_save,omitempty"`
}

// Defaults fills unset fields with sane values.
func (p *JobParams) Defaults() {
	if p.DaysBack <= 0 {
		p.DaysBack = 7
	}
	if len(p.Folders) == 0 {
		p.Folders = []string{"INBOX"}
	}
}

// JobSnapshot is a point-in-time view of a historical job.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Status      JobState  `json:"status"`
	Progress    float64   `json:"progress"`
	Message     string    `json:"message"`
	Stats       RunStats  `json:"stats"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}
