package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cmssync/internal/model"
	"cmssync/internal/presence"
	"cmssync/internal/service"
)

// Client to server events.
const (
	EventSubscribe          = "subscribe-to-content"
	EventUnsubscribe        = "unsubscribe-from-content"
	EventContentChangeStart = "content-change-start"
	EventContentChangeEnd   = "content-change-end"
	EventOptimisticUpdate   = "optimistic-update"
	EventRollbackUpdate     = "rollback-update"
)

// Hub is the part of the presence hub the transport drives.
type Hub interface {
	Register(ctx context.Context, c *presence.Conn) error
	Unregister(ctx context.Context, connID string) error
	Subscribe(ctx context.Context, connID string, key model.ContentKey) error
	Unsubscribe(ctx context.Context, connID string, key model.ContentKey) error
	NotifyFieldEditStart(ctx context.Context, connID string, key model.ContentKey, field string) error
	NotifyFieldEditEnd(ctx context.Context, connID string, key model.ContentKey, field string) error
	SendTo(ctx context.Context, connID string, ev presence.Event) error
}

// Coordinator handles the writes a connection can submit.
type Coordinator interface {
	HandleOptimisticUpdate(ctx context.Context, key model.ContentKey, changes []model.Change, actor service.Actor, updateID string) (*service.OptimisticResult, error)
	RollbackUpdate(ctx context.Context, key model.ContentKey, updateID, reason string, actor service.Actor) (model.PendingUpdate, error)
}

var known = map[string]bool{
	EventSubscribe:          true,
	EventUnsubscribe:        true,
	EventContentChangeStart: true,
	EventContentChangeEnd:   true,
	EventOptimisticUpdate:   true,
	EventRollbackUpdate:     true,
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// inbound covers the data of every client event; each event reads the
// fields it needs.
type inbound struct {
	ContentType string         `json:"contentType"`
	ContentID   string         `json:"contentId"`
	Field       string         `json:"field,omitempty"`
	UpdateID    string         `json:"updateId,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Changes     []model.Change `json:"changes,omitempty"`
}

func (m inbound) key() model.ContentKey {
	return model.ContentKey{ContentType: m.ContentType, ContentID: m.ContentID}
}

// dispatchError is reported back to the sending connection as an error event.
type dispatchError struct {
	code string
	ref  string
	err  error
}

func (e *dispatchError) Error() string { return fmt.Sprintf("%s: %v", e.code, e.err) }

func (e *dispatchError) Unwrap() error { return e.err }

func fail(code, ref string, err error) error {
	return &dispatchError{code: code, ref: ref, err: err}
}

// dispatch decodes one client frame and routes it.
func (s *Server) dispatch(ctx context.Context, c *presence.Conn, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		return fail("BAD_MESSAGE", "", errors.New("expected {event, data}"))
	}
	if !known[env.Event] {
		return fail("UNKNOWN_EVENT", env.Event, fmt.Errorf("unknown event %q", env.Event))
	}
	var msg inbound
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return fail("BAD_MESSAGE", env.Event, err)
		}
	}
	key := msg.key()
	if !key.Valid() {
		return fail("INVALID_KEY", env.Event, service.ErrIDRequired)
	}
	actor := service.Actor{AuthorID: c.AuthorID, ConnectionID: c.ID}

	switch env.Event {
	case EventSubscribe:
		return s.hub.Subscribe(ctx, c.ID, key)
	case EventUnsubscribe:
		return s.hub.Unsubscribe(ctx, c.ID, key)
	case EventContentChangeStart:
		return s.hub.NotifyFieldEditStart(ctx, c.ID, key, msg.Field)
	case EventContentChangeEnd:
		return s.hub.NotifyFieldEditEnd(ctx, c.ID, key, msg.Field)
	case EventOptimisticUpdate:
		if len(msg.Changes) == 0 {
			return fail("BAD_MESSAGE", msg.UpdateID, errors.New("changes are required"))
		}
		if _, err := s.sync.HandleOptimisticUpdate(ctx, key, msg.Changes, actor, msg.UpdateID); err != nil {
			return fail(errorCode(err), msg.UpdateID, err)
		}
	case EventRollbackUpdate:
		if _, err := s.sync.RollbackUpdate(ctx, key, msg.UpdateID, msg.Reason, actor); err != nil {
			return fail(errorCode(err), msg.UpdateID, err)
		}
	}
	return nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, service.ErrConflictDetected):
		return "CONFLICT"
	case errors.Is(err, service.ErrValidationFailed):
		return "VALIDATION_FAILED"
	case errors.Is(err, service.ErrDuplicateUpdate):
		return "DUPLICATE_UPDATE"
	case errors.Is(err, service.ErrUpdateNotFound):
		return "UPDATE_NOT_FOUND"
	case errors.Is(err, service.ErrNotFound):
		return "NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}

// reportError tells the connection why its frame was rejected.
func (s *Server) reportError(ctx context.Context, c *presence.Conn, err error) {
	msg := presence.ErrorMessage{Code: "INTERNAL_ERROR", Message: "internal error"}
	var de *dispatchError
	if errors.As(err, &de) {
		msg.Code, msg.Ref = de.code, de.ref
		if de.code != "INTERNAL_ERROR" {
			msg.Message = de.err.Error()
		}
	}
	if msg.Code == "INTERNAL_ERROR" {
		s.logger.Error("ws_dispatch_failed", "conn_id", c.ID, "err", err)
	}
	if sendErr := s.hub.SendTo(ctx, c.ID, presence.Event{Name: presence.EventError, Data: msg}); sendErr != nil {
		s.logger.Debug("ws_error_undeliverable", "conn_id", c.ID, "err", sendErr)
	}
}

var errRateLimited = errors.New("too many messages")
