package model

import "time"

// Change is one field-level diff entry. Field is a dotted path such as "title.ar".
type Change struct {
	Field     string    `json:"field"`
	OldValue  any       `json:"oldValue"`
	NewValue  any       `json:"newValue"`
	Timestamp time.Time `json:"timestamp"`
}

// Version is an immutable snapshot of a document.
type Version struct {
	ID            string         `json:"id"`
	ContentType   string         `json:"contentType"`
	ContentID     string         `json:"contentId"`
	VersionNumber int            `json:"versionNumber"`
	Payload       map[string]any `json:"payload,omitempty"`
	Changes       []Change       `json:"changes"`
	AuthorID      string         `json:"authorId"`
	CreatedAt     time.Time      `json:"createdAt"`
	IsActive      bool           `json:"isActive"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Key returns the identity of the versioned document.
func (v *Version) Key() ContentKey {
	return ContentKey{ContentType: v.ContentType, ContentID: v.ContentID}
}

// VersionSummary is a listing row; Payload is nil unless explicitly requested.
type VersionSummary = Version

// VersionComparison is the result of comparing two versions of one document.
type VersionComparison struct {
	A       *Version `json:"a"`
	B       *Version `json:"b"`
	Changes []Change `json:"changes"`
}
