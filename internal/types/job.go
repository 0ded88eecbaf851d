package types

import "time"

// JobStatus is the closed set of states a queued pipeline invocation
// passes through, mirrored in internal/store/jobstore's schema.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobRequest is what a caller submits to create a job: the same
// transcript, URLs, and config the core pipeline accepts, and nothing
// else. The HTTP and queue layers add no fields of their own.
type JobRequest struct {
	Transcript   string   `json:"transcript"`
	KnowledgeURLs []string `json:"knowledge_urls"`
	Config       *Config  `json:"config,omitempty"`
}

// JobRecord is one row of the job metadata store: identity, status,
// the submitted request, and an error message if the job failed. The
// pipeline's actual result and any rendered artifact live in the blob
// store, keyed by the same job ID — JobRecord never embeds them.
type JobRecord struct {
	ID          string
	Status      JobStatus
	Request     JobRequest
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}
