// internal/handlers/ws_test.go
package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizzatron/quizzatron/internal/auth"
	"github.com/quizzatron/quizzatron/internal/broadcast"
)

func TestEnsureSessionMintsAndReuses(t *testing.T) {
	require.NoError(t, auth.Init())

	req := httptest.NewRequest("GET", "/ws", nil)
	w := httptest.NewRecorder()

	sid, err := EnsureSession(w, req)
	require.NoError(t, err)
	require.NotEmpty(t, sid)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// Replaying the cookie resolves to the same session without a new Set-Cookie.
	req2 := httptest.NewRequest("GET", "/ws", nil)
	req2.AddCookie(cookies[0])
	w2 := httptest.NewRecorder()

	sid2, err := EnsureSession(w2, req2)
	require.NoError(t, err)
	assert.Equal(t, sid, sid2)
	assert.Empty(t, w2.Result().Cookies())
}

func TestEnsureSessionReplacesBadCookie(t *testing.T) {
	require.NoError(t, auth.Init())

	req := httptest.NewRequest("GET", "/ws", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "garbage"})
	w := httptest.NewRecorder()

	sid, err := EnsureSession(w, req)
	require.NoError(t, err)
	require.NotEmpty(t, sid)
	require.Len(t, w.Result().Cookies(), 1)
}

func quietWSLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func newHubClient(sid string) *wsClient {
	_, cancel := context.WithCancel(context.Background())
	return &wsClient{
		sessionID: sid,
		out:       make(chan outbound, 16),
		cancel:    cancel,
		logger:    quietWSLogger(),
	}
}

func drain(c *wsClient) []outbound {
	var msgs []outbound
	for {
		select {
		case m := <-c.out:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func TestHubRoomFanout(t *testing.T) {
	hub := NewHub(quietWSLogger())
	a := newHubClient("sess-a")
	b := newHubClient("sess-b")
	c := newHubClient("sess-c")
	hub.Register(a)
	hub.Register(b)
	hub.Register(c)

	hub.JoinRoom("AB23CD", a)
	hub.JoinRoom("AB23CD", b)
	// c never joins the room.

	hub.Emit(broadcast.EventLobbyUpdate, map[string]any{"n": 1}, "AB23CD")

	require.Len(t, drain(a), 1)
	require.Len(t, drain(b), 1)
	assert.Empty(t, drain(c))
}

func TestHubEmitExceptSkipsSender(t *testing.T) {
	hub := NewHub(quietWSLogger())
	a := newHubClient("sess-a")
	b := newHubClient("sess-b")
	hub.Register(a)
	hub.Register(b)
	hub.JoinRoom("AB23CD", a)
	hub.JoinRoom("AB23CD", b)

	hub.EmitExcept(broadcast.EventPlayerJoined, map[string]any{"name": "Bob"}, "AB23CD", "sess-b")

	got := drain(a)
	require.Len(t, got, 1)
	assert.Equal(t, string(broadcast.EventPlayerJoined), got[0].Type)
	assert.Empty(t, drain(b))
}

func TestHubUnregisterLeavesRooms(t *testing.T) {
	hub := NewHub(quietWSLogger())
	a := newHubClient("sess-a")
	hub.Register(a)
	hub.JoinRoom("AB23CD", a)

	assert.Equal(t, map[string]bool{"sess-a": true}, hub.LiveSessions())

	hub.Unregister("sess-a")
	assert.Empty(t, hub.LiveSessions())

	// Emitting into the now-empty room is harmless.
	hub.Emit(broadcast.EventLobbyUpdate, nil, "AB23CD")
	assert.Empty(t, drain(a))
}

func TestHubRegisterCancelsStaleConnection(t *testing.T) {
	hub := NewHub(quietWSLogger())

	ctx, cancel := context.WithCancel(context.Background())
	stale := &wsClient{sessionID: "sess-a", out: make(chan outbound, 1), cancel: cancel, logger: quietWSLogger()}
	hub.Register(stale)

	fresh := newHubClient("sess-a")
	hub.Register(fresh)

	// The stale connection's context is cancelled so its pumps exit.
	select {
	case <-ctx.Done():
	default:
		t.Fatal("stale connection was not cancelled on reconnect")
	}

	hub.JoinRoom("AB23CD", fresh)
	hub.Emit(broadcast.EventLobbyUpdate, nil, "AB23CD")
	require.Len(t, drain(fresh), 1)
}

func TestClientSendDropsWhenFull(t *testing.T) {
	c := &wsClient{
		sessionID: "sess-a",
		out:       make(chan outbound, 1),
		cancel:    func() {},
		logger:    quietWSLogger(),
	}
	c.send(outbound{Type: "one"})
	c.send(outbound{Type: "two"}) // dropped, channel full

	got := drain(c)
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].Type)
}
