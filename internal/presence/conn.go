package presence

import (
	"sync"
	"time"

	"cmssync/internal/model"
)

// Conn is a registered client connection. The hub writes events to its send
// queue; the transport drains Send and closes the socket once Done fires.
type Conn struct {
	ID          string
	AuthorID    string
	ConnectedAt time.Time

	send      chan Event
	done      chan struct{}
	closeOnce sync.Once

	// owned by the hub loop
	rooms map[string]model.ContentKey
}

// NewConn builds a connection with a send queue of the given capacity.
func NewConn(id, authorID string, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 64
	}
	return &Conn{
		ID:          id,
		AuthorID:    authorID,
		ConnectedAt: time.Now().UTC(),
		send:        make(chan Event, buffer),
		done:        make(chan struct{}),
		rooms:       make(map[string]model.ContentKey),
	}
}

// Send is the outbound queue.
func (c *Conn) Send() <-chan Event { return c.send }

// Done is closed when the hub has dropped the connection.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// offer queues ev without blocking and reports whether it fit.
func (c *Conn) offer(ev Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *Conn) editor() Editor {
	return Editor{ConnectionID: c.ID, AuthorID: c.AuthorID, ConnectedAt: c.ConnectedAt}
}
