// internal/session/tracker.go

// Package session associates live socket connections with lobby players so
// disconnects and vanished connections funnel into the engine's normal leave
// path instead of mutating lobby state directly.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quizzatron/quizzatron/internal/quiz"
)

// Binding ties a connection to the player it announced itself as.
type Binding struct {
	LobbyCode  string
	PlayerName string
}

// LeaveService is the slice of the engine the tracker needs.
type LeaveService interface {
	LeaveLobby(code, playerName string) *quiz.Error
	Orphans(live map[string]bool) []quiz.PlayerRef
}

// LiveSet reports which connection identifiers are currently alive.
type LiveSet interface {
	LiveSessions() map[string]bool
}

// Tracker maps session IDs to player bindings.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]Binding
	svc      LeaveService
	logger   *logrus.Logger
}

// NewTracker builds an empty tracker around the engine's leave path.
func NewTracker(svc LeaveService, logger *logrus.Logger) *Tracker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Tracker{
		sessions: make(map[string]Binding),
		svc:      svc,
		logger:   logger,
	}
}

// Bind records which player a connection belongs to, replacing any previous
// binding for the session.
func (t *Tracker) Bind(sessionID, lobbyCode, playerName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[sessionID] = Binding{LobbyCode: lobbyCode, PlayerName: playerName}
}

// Unbind forgets a session without touching lobby state; used when the player
// leaves explicitly and the engine has already removed them.
func (t *Tracker) Unbind(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

// Lookup returns the binding for a session, if any.
func (t *Tracker) Lookup(sessionID string) (Binding, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.sessions[sessionID]
	return b, ok
}

// Disconnect handles a connection going away: if the session was bound to a
// player, that player is removed through the normal leave path.
func (t *Tracker) Disconnect(sessionID string) {
	t.mu.Lock()
	b, ok := t.sessions[sessionID]
	delete(t.sessions, sessionID)
	t.mu.Unlock()
	if !ok {
		return
	}

	t.logger.Infof("Session %s disconnected; removing %s from lobby %s", sessionID, b.PlayerName, b.LobbyCode)
	if err := t.svc.LeaveLobby(b.LobbyCode, b.PlayerName); err != nil && err.Kind != quiz.KindNotFound {
		t.logger.Warnf("Session %s: disconnect cleanup failed: %v", sessionID, err)
	}
}

// SweepOrphans removes players whose connections vanished without any
// disconnect event (browser crash, refresh). The orphan set is collected in a
// read-only pass first and each leave runs afterwards, so the sweep never
// holds the store lock while re-entering the leave path.
func (t *Tracker) SweepOrphans(live LiveSet) int {
	orphans := t.svc.Orphans(live.LiveSessions())
	for _, o := range orphans {
		t.logger.Infof("Found orphaned player %s in lobby %s", o.PlayerName, o.LobbyCode)
		if err := t.svc.LeaveLobby(o.LobbyCode, o.PlayerName); err != nil && err.Kind != quiz.KindNotFound {
			t.logger.Warnf("Orphan cleanup for %s/%s failed: %v", o.LobbyCode, o.PlayerName, err)
		}
	}
	return len(orphans)
}

// RunSweeper loops SweepOrphans until the context is cancelled.
func (t *Tracker) RunSweeper(ctx context.Context, live LiveSet, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.SweepOrphans(live); n > 0 {
				t.logger.Infof("Orphan sweep removed %d players", n)
			}
		}
	}
}
