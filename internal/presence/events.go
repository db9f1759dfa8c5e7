package presence

import (
	"time"

	"cmssync/internal/model"
)

// Server to client event names.
const (
	EventConnectionConfirmed = "connection-confirmed"
	EventActiveEditors       = "active-editors"
	EventUserJoinedEditing   = "user-joined-editing"
	EventUserLeftEditing     = "user-left-editing"
	EventUserDisconnected    = "user-disconnected"
	EventFieldEditStart      = "field-edit-start"
	EventFieldEditEnd        = "field-edit-end"
	EventContentUpdated      = "content-updated"
	EventContentDeleted      = "content-deleted"
	EventVersionCreated      = "version-created"
	EventUpdateRollback      = "update-rollback"
	EventError               = "error"
)

// Event is the envelope delivered to a connection.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// ConnectionConfirmed is sent once after registration.
type ConnectionConfirmed struct {
	ConnectionID      string `json:"connectionId"`
	AuthorID          string `json:"authorId"`
	ActiveConnections int    `json:"activeConnections"`
}

// Editor is one connection present in a room.
type Editor struct {
	ConnectionID string    `json:"connectionId"`
	AuthorID     string    `json:"authorId"`
	ConnectedAt  time.Time `json:"connectedAt"`
}

// ActiveEditors lists the other editors of a room to a newcomer.
type ActiveEditors struct {
	model.ContentKey
	Editors []Editor `json:"editors"`
}

// EditorPresence is the payload of the joined, left and disconnected events.
type EditorPresence struct {
	model.ContentKey
	ConnectionID string `json:"connectionId"`
	AuthorID     string `json:"authorId"`
}

// FieldEdit is the payload of the advisory field edit events.
type FieldEdit struct {
	model.ContentKey
	Field        string `json:"field"`
	ConnectionID string `json:"connectionId"`
	AuthorID     string `json:"authorId"`
}

// ContentUpdated carries committed content. UpdateID is set when the commit
// resolves an optimistic update so the originating client can reconcile.
type ContentUpdated struct {
	model.ContentKey
	Content       map[string]any `json:"content"`
	Changes       []model.Change `json:"changes"`
	UpdatedBy     string         `json:"updatedBy"`
	VersionNumber int            `json:"versionNumber,omitempty"`
	UpdateID      string         `json:"updateId,omitempty"`
}

// ContentDeleted announces a soft delete.
type ContentDeleted struct {
	model.ContentKey
	DeletedBy     string `json:"deletedBy"`
	VersionNumber int    `json:"versionNumber"`
}

// VersionCreated announces a new active version.
type VersionCreated struct {
	model.ContentKey
	VersionNumber int       `json:"versionNumber"`
	AuthorID      string    `json:"authorId"`
	CreatedAt     time.Time `json:"createdAt"`
	Restored      bool      `json:"restored,omitempty"`
}

// UpdateRollback tells every subscriber to discard speculative state.
type UpdateRollback struct {
	model.ContentKey
	UpdateID string `json:"updateId"`
	Reason   string `json:"reason"`
	AuthorID string `json:"authorId"`
}

// ErrorMessage reports a rejected client event.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Ref     string `json:"ref,omitempty"`
}

// Exclude selects the connections a broadcast skips. ConnectionID wins when
// set; otherwise every connection of AuthorID is skipped. The zero value
// excludes nobody.
type Exclude struct {
	ConnectionID string
	AuthorID     string
}

func (e Exclude) matches(c *Conn) bool {
	if e.ConnectionID != "" {
		return c.ID == e.ConnectionID
	}
	return e.AuthorID != "" && c.AuthorID == e.AuthorID
}
