package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cmssync/internal/auth"
	"cmssync/internal/logging"
	"cmssync/internal/model"
	"cmssync/internal/presence"
	"cmssync/internal/service"
	serviceMocks "cmssync/internal/service/mocks"
)

var page = model.ContentKey{ContentType: "PageContent", ContentID: "12"}

func startHub(t *testing.T) *presence.Hub {
	t.Helper()
	h := presence.NewHub(64, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func connect(t *testing.T, h *presence.Hub, id, author string) *presence.Conn {
	t.Helper()
	c := presence.NewConn(id, author, 16)
	require.NoError(t, h.Register(context.Background(), c))
	expect(t, c, presence.EventConnectionConfirmed)
	return c
}

func expect(t *testing.T, c *presence.Conn, name string) presence.Event {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-c.Send():
			if ev.Name == name {
				return ev
			}
		case <-timeout:
			t.Fatalf("connection %s did not receive %s", c.ID, name)
			return presence.Event{}
		}
	}
}

// handle runs a frame through dispatch and reports any error the way the
// read loop does.
func handle(s *Server, c *presence.Conn, frame string) {
	ctx := context.Background()
	if err := s.dispatch(ctx, c, []byte(frame)); err != nil {
		s.reportError(ctx, c, err)
	}
}

func TestDispatch_Presence(t *testing.T) {
	hub := startHub(t)
	s := New(hub, new(serviceMocks.MockSyncService), nil, Config{}, logging.Discard())
	a := connect(t, hub, "a", "alice")
	b := connect(t, hub, "b", "bob")

	handle(s, a, `{"event":"subscribe-to-content","data":{"contentType":"PageContent","contentId":"12"}}`)
	expect(t, a, presence.EventActiveEditors)

	handle(s, b, `{"event":"subscribe-to-content","data":{"contentType":"PageContent","contentId":"12"}}`)
	joined := expect(t, a, presence.EventUserJoinedEditing).Data.(presence.EditorPresence)
	assert.Equal(t, "bob", joined.AuthorID)

	handle(s, b, `{"event":"content-change-start","data":{"contentType":"PageContent","contentId":"12","field":"title.ar"}}`)
	hint := expect(t, a, presence.EventFieldEditStart).Data.(presence.FieldEdit)
	assert.Equal(t, "title.ar", hint.Field)

	handle(s, b, `{"event":"content-change-end","data":{"contentType":"PageContent","contentId":"12","field":"title.ar"}}`)
	expect(t, a, presence.EventFieldEditEnd)

	handle(s, b, `{"event":"unsubscribe-from-content","data":{"contentType":"PageContent","contentId":"12"}}`)
	left := expect(t, a, presence.EventUserLeftEditing).Data.(presence.EditorPresence)
	assert.Equal(t, "bob", left.AuthorID)
}

func TestDispatch_OptimisticUpdate(t *testing.T) {
	hub := startHub(t)
	svc := new(serviceMocks.MockSyncService)
	s := New(hub, svc, nil, Config{}, logging.Discard())
	c := connect(t, hub, "c1", "alice")
	actor := service.Actor{AuthorID: "alice", ConnectionID: "c1"}

	t.Run("forwarded with connection identity", func(t *testing.T) {
		svc.On("HandleOptimisticUpdate", mock.Anything, page, mock.MatchedBy(func(ch []model.Change) bool {
			return len(ch) == 1 && ch[0].Field == "title" && ch[0].NewValue == "B"
		}), actor, "u1").Return(&service.OptimisticResult{}, nil).Once()

		require.NoError(t, s.dispatch(context.Background(), c,
			[]byte(`{"event":"optimistic-update","data":{"contentType":"PageContent","contentId":"12","updateId":"u1","changes":[{"field":"title","newValue":"B"}]}}`)))
		svc.AssertExpectations(t)
	})

	t.Run("conflict is reported to the sender", func(t *testing.T) {
		svc.On("HandleOptimisticUpdate", mock.Anything, page, mock.Anything, actor, "u2").
			Return(&service.OptimisticResult{}, &service.ConflictError{VersionNumber: 3, AuthorID: "bob"}).Once()

		handle(s, c, `{"event":"optimistic-update","data":{"contentType":"PageContent","contentId":"12","updateId":"u2","changes":[{"field":"title","newValue":"B"}]}}`)
		msg := expect(t, c, presence.EventError).Data.(presence.ErrorMessage)
		assert.Equal(t, "CONFLICT", msg.Code)
		assert.Equal(t, "u2", msg.Ref)
		assert.Contains(t, msg.Message, "version 3 by bob")
	})

	t.Run("empty changes", func(t *testing.T) {
		handle(s, c, `{"event":"optimistic-update","data":{"contentType":"PageContent","contentId":"12","updateId":"u3"}}`)
		msg := expect(t, c, presence.EventError).Data.(presence.ErrorMessage)
		assert.Equal(t, "BAD_MESSAGE", msg.Code)
	})
}

func TestDispatch_RollbackUpdate(t *testing.T) {
	hub := startHub(t)
	svc := new(serviceMocks.MockSyncService)
	s := New(hub, svc, nil, Config{}, logging.Discard())
	c := connect(t, hub, "c1", "alice")
	actor := service.Actor{AuthorID: "alice", ConnectionID: "c1"}

	svc.On("RollbackUpdate", mock.Anything, page, "u1", "undo", actor).
		Return(model.PendingUpdate{UpdateID: "u1", Status: model.UpdateRolledBack}, nil).Once()
	require.NoError(t, s.dispatch(context.Background(), c,
		[]byte(`{"event":"rollback-update","data":{"contentType":"PageContent","contentId":"12","updateId":"u1","reason":"undo"}}`)))

	svc.On("RollbackUpdate", mock.Anything, page, "gone", "", actor).
		Return(model.PendingUpdate{}, service.ErrUpdateNotFound).Once()
	handle(s, c, `{"event":"rollback-update","data":{"contentType":"PageContent","contentId":"12","updateId":"gone"}}`)
	msg := expect(t, c, presence.EventError).Data.(presence.ErrorMessage)
	assert.Equal(t, "UPDATE_NOT_FOUND", msg.Code)
	svc.AssertExpectations(t)
}

func TestDispatch_Rejections(t *testing.T) {
	hub := startHub(t)
	s := New(hub, new(serviceMocks.MockSyncService), nil, Config{}, logging.Discard())
	c := connect(t, hub, "c1", "alice")

	tests := []struct {
		name  string
		frame string
		code  string
	}{
		{"not json", `hello`, "BAD_MESSAGE"},
		{"no event", `{"data":{}}`, "BAD_MESSAGE"},
		{"unknown event", `{"event":"shout","data":{}}`, "UNKNOWN_EVENT"},
		{"missing key", `{"event":"subscribe-to-content","data":{"contentType":"PageContent"}}`, "INVALID_KEY"},
		{"bad data", `{"event":"subscribe-to-content","data":"PageContent:12"}`, "BAD_MESSAGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle(s, c, tt.frame)
			msg := expect(t, c, presence.EventError).Data.(presence.ErrorMessage)
			assert.Equal(t, tt.code, msg.Code)
		})
	}
}

func upgradeRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	return req
}

func TestUpgrade(t *testing.T) {
	secret := []byte("test-secret")
	verifier := auth.NewVerifier(secret, "")
	s := New(nil, nil, verifier, Config{}, logging.Discard())

	app := fiber.New()
	app.Get("/ws", s.Upgrade(), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(authorLocal).(string))
	})

	t.Run("plain http", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/ws", nil))
		assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	})

	t.Run("missing token", func(t *testing.T) {
		resp, _ := app.Test(upgradeRequest("/ws"))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("token in query", func(t *testing.T) {
		token, err := verifier.Issue("alice", "Alice", time.Minute)
		require.NoError(t, err)

		resp, _ := app.Test(upgradeRequest("/ws?token=" + token))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("token in header", func(t *testing.T) {
		token, err := verifier.Issue("bob", "", time.Minute)
		require.NoError(t, err)

		req := upgradeRequest("/ws")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, _ := app.Test(req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("dev mode author", func(t *testing.T) {
		dev := New(nil, nil, nil, Config{}, logging.Discard())
		app := fiber.New()
		app.Get("/ws", dev.Upgrade(), func(c *fiber.Ctx) error {
			return c.SendString(c.Locals(authorLocal).(string))
		})

		resp, _ := app.Test(upgradeRequest("/ws?authorId=carol"))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = app.Test(upgradeRequest("/ws"))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
