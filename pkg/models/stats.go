package models

import "time"

// MaxErrorEntries bounds the per-run error list so a pathological run cannot
// grow memory without limit.
const MaxErrorEntries = 50

// ErrorEntry is one recorded non-fatal error.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// RunStats accumulates counters for one monitoring session or historical job.
// Every processed candidate increments exactly one of NewRecords,
// DuplicatesSkipped, FilteredOut or Errors, so those four always sum to
// TotalProcessed.
type RunStats struct {
	EmailsProcessed   int          `json:"emails_processed"`
	TotalProcessed    int          `json:"total_processed"`
	NewRecords        int          `json:"new_records"`
	DuplicatesSkipped int          `json:"duplicates_skipped"`
	FilteredOut       int          `json:"filtered_out"`
	Errors            int          `json:"errors"`
	ErrorList         []ErrorEntry `json:"error_list,omitempty"`
}

// RecordError appends an error entry, most recent first, capped at
// MaxErrorEntries. It does not touch the Errors counter; callers increment
// that only for per-candidate outcomes.
func (s *RunStats) RecordError(msg string) {
	entry := ErrorEntry{Timestamp: time.Now(), Message: msg}
	s.ErrorList = append([]ErrorEntry{entry}, s.ErrorList...)
	if len(s.ErrorList) > MaxErrorEntries {
		s.ErrorList = s.ErrorList[:MaxErrorEntries]
	}
}

// Consistent reports whether the outcome counters sum to TotalProcessed.
func (s *RunStats) Consistent() bool {
	return s.NewRecords+s.DuplicatesSkipped+s.FilteredOut+s.Errors == s.TotalProcessed
}

// Merge adds the counters of other into s. The error list is copied, never
// aliased, so other stays usable after the merge.
func (s *RunStats) Merge(other *RunStats) {
	s.EmailsProcessed += other.EmailsProcessed
	s.TotalProcessed += other.TotalProcessed
	s.NewRecords += other.NewRecords
	s.DuplicatesSkipped += other.DuplicatesSkipped
	s.FilteredOut += other.FilteredOut
	s.Errors += other.Errors
	merged := make([]ErrorEntry, 0, len(other.ErrorList)+len(s.ErrorList))
	merged = append(merged, other.ErrorList...)
	merged = append(merged, s.ErrorList...)
	if len(merged) > MaxErrorEntries {
		merged = merged[:MaxErrorEntries]
	}
	s.ErrorList = merged
}
