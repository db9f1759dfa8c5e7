// Package ws is the WebSocket transport between editors and the presence hub.
package ws

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"cmssync/internal/auth"
	"cmssync/internal/http/middleware"
	"cmssync/internal/logging"
	"cmssync/internal/presence"
)

const authorLocal = "ws_author_id"

// Config tunes every connection.
type Config struct {
	SendBuffer   int
	PingInterval time.Duration
	WriteTimeout time.Duration
	// RatePerSec and Burst bound inbound frames per connection.
	RatePerSec      float64
	Burst           int
	MaxMessageBytes int64
}

func (c *Config) applyDefaults() {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 20
	}
	if c.Burst <= 0 {
		c.Burst = 40
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 1 << 20
	}
}

// Server upgrades authenticated requests and pumps frames between the socket
// and the hub.
type Server struct {
	hub      Hub
	sync     Coordinator
	verifier *auth.Verifier
	cfg      Config
	logger   *log.Logger
}

// New builds a Server. A nil verifier accepts the author from the authorId
// query parameter or the X-Author-ID header.
func New(hub Hub, sync Coordinator, verifier *auth.Verifier, cfg Config, logger *log.Logger) *Server {
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		hub:      hub,
		sync:     sync,
		verifier: verifier,
		cfg:      cfg,
		logger:   logging.Component(logger, "ws"),
	}
}

// Register mounts the endpoint at path.
func (s *Server) Register(app fiber.Router, path string) {
	app.Get(path, s.Upgrade(), websocket.New(s.serve))
}

// Upgrade rejects non-WebSocket requests and authenticates the rest once,
// before the protocol switch.
func (s *Server) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		author, err := s.authenticate(c)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		c.Locals(authorLocal, author)
		return c.Next()
	}
}

func (s *Server) authenticate(c *fiber.Ctx) (string, error) {
	if s.verifier == nil {
		author := c.Query("authorId", c.Get(middleware.AuthorIDHeader))
		if author == "" {
			return "", auth.ErrMissingToken
		}
		return author, nil
	}
	// Browsers cannot set headers on a WebSocket handshake.
	raw := c.Query("token")
	if raw == "" {
		var err error
		if raw, err = auth.BearerToken(c.Get(fiber.HeaderAuthorization)); err != nil {
			return "", err
		}
	}
	id, err := s.verifier.Verify(raw)
	if err != nil {
		return "", err
	}
	return id.AuthorID, nil
}

func (s *Server) serve(ws *websocket.Conn) {
	author, _ := ws.Locals(authorLocal).(string)
	conn := presence.NewConn(uuid.NewString(), author, s.cfg.SendBuffer)
	logger := s.logger.With("conn_id", conn.ID, "author_id", author)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.hub.Register(ctx, conn); err != nil {
		logger.Warn("ws_register_failed", "err", err)
		_ = ws.Close()
		return
	}
	logger.Debug("ws_connected")

	written := make(chan struct{})
	go func() {
		defer close(written)
		s.writePump(ctx, ws, conn, logger)
	}()

	s.readPump(ctx, ws, conn, logger)

	uctx, ucancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := s.hub.Unregister(uctx, conn.ID); err != nil {
		logger.Debug("ws_unregister_failed", "err", err)
	}
	ucancel()
	cancel()
	<-written
	logger.Debug("ws_disconnected")
}

func (s *Server) readPump(ctx context.Context, ws *websocket.Conn, conn *presence.Conn, logger *log.Logger) {
	ws.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = ws.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	})

	limiter := rate.NewLimiter(rate.Limit(s.cfg.RatePerSec), s.cfg.Burst)
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws_read_failed", "err", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))

		if !limiter.Allow() {
			s.reportError(ctx, conn, fail("RATE_LIMITED", "", errRateLimited))
			continue
		}
		if err := s.dispatch(ctx, conn, raw); err != nil {
			s.reportError(ctx, conn, err)
		}
	}
}

// writePump owns every write to the socket. It closes the socket when the hub
// drops the connection, which ends readPump.
func (s *Server) writePump(ctx context.Context, ws *websocket.Conn, conn *presence.Conn, logger *log.Logger) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case ev := <-conn.Send():
			_ = ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := ws.WriteJSON(ev); err != nil {
				logger.Debug("ws_write_failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				logger.Debug("ws_ping_failed", "err", err)
				return
			}
		case <-conn.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.cfg.WriteTimeout))
			return
		case <-ctx.Done():
			return
		}
	}
}
