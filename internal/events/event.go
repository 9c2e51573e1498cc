package events

import (
	"time"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/domain"
)

// Type discriminates the wire messages pushed to clients.
type Type string

const (
	TypeConnectionEstablished Type = "connection_established"
	TypeJobStatusUpdate       Type = "job_status_update"
	TypeJobProgressUpdate     Type = "job_progress_update"
)

// JobSnapshot is the client-facing view of a job at one point in time.
// Artifact values are URLs issued by the object store, not raw keys.
type JobSnapshot struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	Region       string            `json:"region"`
	Scenario     string            `json:"scenario"`
	Views        []string          `json:"views"`
	Message      string            `json:"message,omitempty"`
	Status       domain.JobStatus  `json:"status"`
	SourceURL    string            `json:"source_url,omitempty"`
	Artifacts    map[string]string `json:"artifacts"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Favorite     bool              `json:"favorite"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Progress reports one backend step for one view of a job.
type Progress struct {
	View       string  `json:"view"`
	Step       int     `json:"step"`
	TotalSteps int     `json:"total_steps"`
	Percentage float64 `json:"percentage"`
}

// Event is an immutable message describing a job-lifecycle fact. Delivery is
// best-effort while a subscription is open; clients re-fetch job state on
// reconnect to cover gaps.
type Event struct {
	Type     Type         `json:"type"`
	Message  string       `json:"message,omitempty"`
	Job      *JobSnapshot `json:"job,omitempty"`
	JobID    string       `json:"job_id,omitempty"`
	Progress *Progress    `json:"progress,omitempty"`
}

// NewConnected builds the greeting sent once per accepted connection.
func NewConnected() Event {
	return Event{
		Type:    TypeConnectionEstablished,
		Message: "Connected to job updates",
	}
}

// NewJobStatus builds a status event carrying a full job snapshot.
func NewJobStatus(snap *JobSnapshot) Event {
	return Event{
		Type: TypeJobStatusUpdate,
		Job:  snap,
	}
}

// NewJobProgress builds a progress event for one view of a job.
func NewJobProgress(jobID, view string, step, totalSteps int) Event {
	pct := 0.0
	if totalSteps > 0 {
		pct = float64(step) / float64(totalSteps) * 100
	}
	return Event{
		Type:  TypeJobProgressUpdate,
		JobID: jobID,
		Progress: &Progress{
			View:       view,
			Step:       step,
			TotalSteps: totalSteps,
			Percentage: pct,
		},
	}
}
