package model

import (
	"fmt"
	"time"
)

// ContentKey is the stable identity of an editable document.
type ContentKey struct {
	ContentType string `json:"contentType"`
	ContentID   string `json:"contentId"`
}

// Room returns the broadcast room name for the document, "{contentType}:{contentId}".
func (k ContentKey) Room() string {
	return fmt.Sprintf("%s:%s", k.ContentType, k.ContentID)
}

// Valid reports whether both identity parts are present.
func (k ContentKey) Valid() bool {
	return k.ContentType != "" && k.ContentID != ""
}

// ContentDocument is the mutable business entity being edited.
// The payload is opaque structured data owned by the business layer.
type ContentDocument struct {
	ContentType string         `json:"contentType"`
	ContentID   string         `json:"contentId"`
	Payload     map[string]any `json:"payload"`
	UpdatedBy   string         `json:"updatedBy,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   *time.Time     `json:"deletedAt,omitempty"`
}

// Key returns the document identity.
func (d *ContentDocument) Key() ContentKey {
	return ContentKey{ContentType: d.ContentType, ContentID: d.ContentID}
}

// Deleted reports whether the document was soft-deleted.
func (d *ContentDocument) Deleted() bool {
	return d.DeletedAt != nil
}
