// Package presence tracks who is editing what and fans change events out to
// the connections subscribed to a document.
package presence

import (
	"context"
	"errors"
	"sort"

	"github.com/charmbracelet/log"

	"cmssync/internal/logging"
	"cmssync/internal/model"
)

// ErrHubClosed is returned once Run has returned.
var ErrHubClosed = errors.New("presence hub closed")

// Snapshot is a point-in-time view of the registry.
type Snapshot struct {
	Connections int            `json:"connections"`
	Rooms       int            `json:"rooms"`
	Members     map[string]int `json:"members"`
	Dropped     uint64         `json:"dropped"`
}

// Hub owns the connection registry and the room map. Both are touched only
// by the goroutine running Run; every exported method submits a command.
type Hub struct {
	cmds    chan func()
	stopped chan struct{}
	logger  *log.Logger

	conns   map[string]*Conn
	rooms   map[string]map[string]*Conn
	dropped uint64
}

// NewHub creates a hub whose command queue holds up to backlog pending commands.
func NewHub(backlog int, logger *log.Logger) *Hub {
	if backlog <= 0 {
		backlog = 1024
	}
	return &Hub{
		cmds:    make(chan func(), backlog),
		stopped: make(chan struct{}),
		logger:  logging.Component(logger, "presence"),
		conns:   make(map[string]*Conn),
		rooms:   make(map[string]map[string]*Conn),
	}
}

// Run executes commands until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			for _, c := range h.conns {
				c.close()
			}
			h.conns = map[string]*Conn{}
			h.rooms = map[string]map[string]*Conn{}
			return
		case fn := <-h.cmds:
			fn()
		}
	}
}

func (h *Hub) submit(ctx context.Context, fn func()) error {
	select {
	case <-h.stopped:
		return ErrHubClosed
	default:
	}
	select {
	case h.cmds <- fn:
		return nil
	case <-h.stopped:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call submits fn and waits for it to run.
func (h *Hub) call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if err := h.submit(ctx, func() { fn(); close(ran) }); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-h.stopped:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register adds c to the registry and confirms the connection to it.
func (h *Hub) Register(ctx context.Context, c *Conn) error {
	return h.call(ctx, func() {
		h.conns[c.ID] = c
		h.deliver(c, Event{Name: EventConnectionConfirmed, Data: ConnectionConfirmed{
			ConnectionID:      c.ID,
			AuthorID:          c.AuthorID,
			ActiveConnections: len(h.conns),
		}})
		h.logger.Debug("connection_registered", "connection_id", c.ID, "author_id", c.AuthorID, "active", len(h.conns))
	})
}

// Unregister removes a connection and tells each of its rooms.
func (h *Hub) Unregister(ctx context.Context, connID string) error {
	return h.submit(ctx, func() {
		if c, ok := h.conns[connID]; ok {
			h.remove(c)
		}
	})
}

// Subscribe joins a connection to the document room.
func (h *Hub) Subscribe(ctx context.Context, connID string, key model.ContentKey) error {
	return h.submit(ctx, func() {
		c, ok := h.conns[connID]
		if !ok {
			return
		}
		room := key.Room()
		members := h.rooms[room]
		if members == nil {
			members = make(map[string]*Conn)
			h.rooms[room] = members
		}
		_, already := members[c.ID]

		editors := make([]Editor, 0, len(members))
		for _, m := range sortedMembers(members) {
			if m.ID != c.ID {
				editors = append(editors, m.editor())
			}
		}
		members[c.ID] = c
		c.rooms[room] = key

		if !already {
			h.fanOut(room, Event{Name: EventUserJoinedEditing, Data: EditorPresence{
				ContentKey:   key,
				ConnectionID: c.ID,
				AuthorID:     c.AuthorID,
			}}, Exclude{ConnectionID: c.ID})
		}
		h.deliver(c, Event{Name: EventActiveEditors, Data: ActiveEditors{ContentKey: key, Editors: editors}})
	})
}

// Unsubscribe removes a connection from the document room.
func (h *Hub) Unsubscribe(ctx context.Context, connID string, key model.ContentKey) error {
	return h.submit(ctx, func() {
		c, ok := h.conns[connID]
		if !ok {
			return
		}
		room := key.Room()
		if !h.leave(c, room) {
			return
		}
		h.fanOut(room, Event{Name: EventUserLeftEditing, Data: EditorPresence{
			ContentKey:   key,
			ConnectionID: c.ID,
			AuthorID:     c.AuthorID,
		}}, Exclude{})
	})
}

// NotifyFieldEditStart is an advisory hint that a field is being edited.
func (h *Hub) NotifyFieldEditStart(ctx context.Context, connID string, key model.ContentKey, field string) error {
	return h.fieldEdit(ctx, EventFieldEditStart, connID, key, field)
}

// NotifyFieldEditEnd clears the hint set by NotifyFieldEditStart.
func (h *Hub) NotifyFieldEditEnd(ctx context.Context, connID string, key model.ContentKey, field string) error {
	return h.fieldEdit(ctx, EventFieldEditEnd, connID, key, field)
}

func (h *Hub) fieldEdit(ctx context.Context, name, connID string, key model.ContentKey, field string) error {
	return h.submit(ctx, func() {
		c, ok := h.conns[connID]
		if !ok {
			return
		}
		room := key.Room()
		if _, member := c.rooms[room]; !member {
			return
		}
		h.fanOut(room, Event{Name: name, Data: FieldEdit{
			ContentKey:   key,
			Field:        field,
			ConnectionID: c.ID,
			AuthorID:     c.AuthorID,
		}}, Exclude{ConnectionID: c.ID})
	})
}

// BroadcastContentUpdate sends content-updated to the document room.
func (h *Hub) BroadcastContentUpdate(ctx context.Context, msg ContentUpdated, exclude Exclude) error {
	return h.broadcast(ctx, msg.ContentKey, Event{Name: EventContentUpdated, Data: msg}, exclude)
}

// BroadcastContentDeleted sends content-deleted to the document room.
func (h *Hub) BroadcastContentDeleted(ctx context.Context, msg ContentDeleted, exclude Exclude) error {
	return h.broadcast(ctx, msg.ContentKey, Event{Name: EventContentDeleted, Data: msg}, exclude)
}

// BroadcastVersionCreated sends version-created to the document room.
func (h *Hub) BroadcastVersionCreated(ctx context.Context, msg VersionCreated, exclude Exclude) error {
	return h.broadcast(ctx, msg.ContentKey, Event{Name: EventVersionCreated, Data: msg}, exclude)
}

// BroadcastRollback sends update-rollback to every member, the author included.
func (h *Hub) BroadcastRollback(ctx context.Context, msg UpdateRollback) error {
	return h.broadcast(ctx, msg.ContentKey, Event{Name: EventUpdateRollback, Data: msg}, Exclude{})
}

// SendTo queues an event for a single connection.
func (h *Hub) SendTo(ctx context.Context, connID string, ev Event) error {
	return h.submit(ctx, func() {
		if c, ok := h.conns[connID]; ok {
			h.deliver(c, ev)
		}
	})
}

func (h *Hub) broadcast(ctx context.Context, key model.ContentKey, ev Event, exclude Exclude) error {
	return h.submit(ctx, func() {
		h.fanOut(key.Room(), ev, exclude)
	})
}

// Snapshot reports registry sizes.
func (h *Hub) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := h.call(ctx, func() {
		s = Snapshot{
			Connections: len(h.conns),
			Rooms:       len(h.rooms),
			Members:     make(map[string]int, len(h.rooms)),
			Dropped:     h.dropped,
		}
		for room, members := range h.rooms {
			s.Members[room] = len(members)
		}
	})
	return s, err
}

// fanOut delivers ev to every room member not excluded. Connections whose
// queue is full are dropped after the pass.
func (h *Hub) fanOut(room string, ev Event, exclude Exclude) {
	var slow []*Conn
	for _, c := range h.rooms[room] {
		if exclude.matches(c) {
			continue
		}
		if !c.offer(ev) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.drop(c)
	}
}

func (h *Hub) deliver(c *Conn, ev Event) {
	if !c.offer(ev) {
		h.drop(c)
	}
}

func (h *Hub) drop(c *Conn) {
	if _, ok := h.conns[c.ID]; !ok {
		return
	}
	h.dropped++
	h.logger.Warn("slow_consumer_dropped", "connection_id", c.ID, "author_id", c.AuthorID)
	h.remove(c)
}

// remove unregisters c, prunes its rooms and tells the remaining members.
func (h *Hub) remove(c *Conn) {
	delete(h.conns, c.ID)
	c.close()
	for room, key := range c.rooms {
		h.leave(c, room)
		h.fanOut(room, Event{Name: EventUserDisconnected, Data: EditorPresence{
			ContentKey:   key,
			ConnectionID: c.ID,
			AuthorID:     c.AuthorID,
		}}, Exclude{})
	}
	h.logger.Debug("connection_unregistered", "connection_id", c.ID, "active", len(h.conns))
}

// leave removes c from room, pruning the room when it empties.
func (h *Hub) leave(c *Conn, room string) bool {
	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[c.ID]; !ok {
		return false
	}
	delete(members, c.ID)
	delete(c.rooms, room)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	return true
}

func sortedMembers(members map[string]*Conn) []*Conn {
	out := make([]*Conn, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}
