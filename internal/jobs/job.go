// Package jobs runs expensive side-work off the request path: a priority queue
// feeding a bounded set of workers, with per-attempt timeouts, linear retry
// backoff and cancellation.
package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTimeout is recorded when an attempt exceeds its budget.
	ErrTimeout = errors.New("job timed out")
	// ErrJobNotFound is returned for unknown or already swept job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueFull is returned by Enqueue when the queue is at capacity.
	ErrQueueFull = errors.New("job queue full")
	// ErrUnknownType is returned by Enqueue when no handler is registered for the type.
	ErrUnknownType = errors.New("unknown job type")
	// ErrJobFinished is returned when cancelling a job that already reached a terminal state.
	ErrJobFinished = errors.New("job already finished")
	// ErrStopped is returned by Enqueue after shutdown and recorded as the last
	// error of jobs whose attempt was interrupted by it.
	ErrStopped = errors.New("processor stopped")
)

// Priority orders dispatch: high before normal before low.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// ParsePriority maps a name to a Priority; unknown names yield normal.
func ParsePriority(s string) Priority {
	switch strings.ToLower(s) {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is a unit of side-work. Handlers receive a copy.
type Job struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Priority      Priority        `json:"priority"`
	Attempts      int             `json:"attempts"`
	MaxAttempts   int             `json:"maxAttempts"`
	Timeout       time.Duration   `json:"timeout"`
	Status        Status          `json:"status"`
	LastError     string          `json:"lastError,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	StartedAt     *time.Time      `json:"startedAt,omitempty"`
	FinishedAt    *time.Time      `json:"finishedAt,omitempty"`
	NextAttemptAt *time.Time      `json:"nextAttemptAt,omitempty"`
}

// Decode unmarshals the payload into v.
func (j Job) Decode(v any) error {
	if len(j.Payload) == 0 {
		return fmt.Errorf("job %s: empty payload", j.ID)
	}
	return json.Unmarshal(j.Payload, v)
}

func (j *Job) clone() Job {
	c := *j
	c.Payload = append(json.RawMessage(nil), j.Payload...)
	c.Result = append(json.RawMessage(nil), j.Result...)
	return c
}

// Options tune a single Enqueue call. Zero values take the processor defaults.
type Options struct {
	Priority    Priority
	Timeout     time.Duration
	MaxAttempts int
}
