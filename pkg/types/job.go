// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// JobStatus is the lifecycle state of a parse job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobSnapshot is a read-only copy of a parse job's state. Content is set only
// when Status is completed; Error only when it is failed.
type JobSnapshot struct {
	JobID      string    `json:"job_id" yaml:"job_id"`
	DocumentID string    `json:"arxiv_id" yaml:"arxiv_id"`
	SourceURL  string    `json:"pdf_url" yaml:"pdf_url"`
	Status     JobStatus `json:"status" yaml:"status"`
	Progress   int       `json:"progress" yaml:"progress"`
	Content    string    `json:"content,omitempty" yaml:"content,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

// SubmitResult is returned by a parse submission. When Cached is true the
// document was already extracted, JobID is empty and Content holds the text.
type SubmitResult struct {
	JobID      string    `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	DocumentID string    `json:"arxiv_id" yaml:"arxiv_id"`
	Status     JobStatus `json:"status" yaml:"status"`
	Progress   int       `json:"progress" yaml:"progress"`
	Cached     bool      `json:"cached" yaml:"cached"`
	Content    string    `json:"content,omitempty" yaml:"content,omitempty"`
}
