// Package download contains Selene's job orchestration: the in-memory job
// registry, the state machine that drives a single download from submission
// to a terminal state, and the service tying them to the extraction engine.
package download

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type JobStatus int

const (
	StatusPending JobStatus = iota
	StatusDownloading
	StatusProcessing
	StatusCompleted
	StatusError
)

func (s JobStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDownloading:
		return "downloading"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	}

	return fmt.Sprintf("JobStatus(%d)", int(s))
}

// Terminal reports whether no further transitions may leave this status.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Job is a snapshot of one tracked unit of asynchronous work. Readers always
// receive a copy; the registry owns the canonical record.
type Job struct {
	ID       uuid.UUID `json:"job_id"`
	URL      string    `json:"-"`
	Status   JobStatus `json:"status"`
	Progress float64   `json:"progress"`
	Filename string    `json:"filename,omitempty"`
	Error    string    `json:"error,omitempty"`
}
