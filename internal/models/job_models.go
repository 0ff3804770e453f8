package models

import (
	"fmt"
	"time"
)

// AnalyzeRequest is the body of the backend submission endpoint.
type AnalyzeRequest struct {
	Brand          string `json:"brand"`
	Limit          int    `json:"limit"`
	IncludeReddit  bool   `json:"include_reddit"`
	IncludeTwitter bool   `json:"include_twitter"`
}

type JobStatus int

const (
	JobIdle JobStatus = iota
	JobSubmitting
	JobSubmitted
	JobFailed
)

func (s JobStatus) String() string {
	switch s {
	case JobIdle:
		return "idle"
	case JobSubmitting:
		return "submitting"
	case JobSubmitted:
		return "submitted"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status ends a submission invocation.
func (s JobStatus) Terminal() bool {
	return s == JobSubmitted || s == JobFailed
}

func (s JobStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *JobStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = JobIdle
	case "submitting":
		*s = JobSubmitting
	case "submitted":
		*s = JobSubmitted
	case "failed":
		*s = JobFailed
	default:
		return fmt.Errorf("unknown job status %q", text)
	}
	return nil
}

// Job is one brand analysis request. Submitted means the backend accepted the
// request for processing, not that analysis finished.
type Job struct {
	ID         string     `json:"id,omitempty"`
	Brand      string     `json:"brand"`
	Status     JobStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobEvent is emitted on every job status transition.
type JobEvent struct {
	JobID     string    `json:"job_id"`
	Brand     string    `json:"brand"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
