package model

import "time"

// UpdateStatus is the lifecycle state of an optimistic update.
type UpdateStatus string

const (
	UpdatePending    UpdateStatus = "pending"
	UpdateCommitted  UpdateStatus = "committed"
	UpdateRolledBack UpdateStatus = "rolled_back"
)

// Terminal reports whether no further transition is allowed.
func (s UpdateStatus) Terminal() bool {
	return s == UpdateCommitted || s == UpdateRolledBack
}

// PendingUpdate is the process-local record of an in-flight optimistic edit.
// It is never persisted.
type PendingUpdate struct {
	UpdateID      string       `json:"updateId"`
	ContentType   string       `json:"contentType"`
	ContentID     string       `json:"contentId"`
	Changes       []Change     `json:"changes"`
	AuthorID      string       `json:"authorId"`
	SubmittedAt   time.Time    `json:"submittedAt"`
	ResolvedAt    *time.Time   `json:"resolvedAt,omitempty"`
	Status        UpdateStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	VersionNumber int          `json:"versionNumber,omitempty"`
}
