// internal/session/tracker_test.go
package session

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizzatron/quizzatron/internal/quiz"
)

// fakeLeaveService records leave calls and serves a canned orphan list.
type fakeLeaveService struct {
	mu       sync.Mutex
	left     []quiz.PlayerRef
	orphans  []quiz.PlayerRef
	leaveErr *quiz.Error
}

func (f *fakeLeaveService) LeaveLobby(code, playerName string) *quiz.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, quiz.PlayerRef{LobbyCode: code, PlayerName: playerName})
	return f.leaveErr
}

func (f *fakeLeaveService) Orphans(live map[string]bool) []quiz.PlayerRef {
	return f.orphans
}

func (f *fakeLeaveService) leaves() []quiz.PlayerRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]quiz.PlayerRef, len(f.left))
	copy(out, f.left)
	return out
}

type staticLiveSet map[string]bool

func (s staticLiveSet) LiveSessions() map[string]bool { return s }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func TestBindLookupUnbind(t *testing.T) {
	tr := NewTracker(&fakeLeaveService{}, quietLogger())

	tr.Bind("sess-1", "AB23CD", "Alice")
	b, ok := tr.Lookup("sess-1")
	require.True(t, ok)
	assert.Equal(t, Binding{LobbyCode: "AB23CD", PlayerName: "Alice"}, b)

	// Rebinding the same session replaces the old binding.
	tr.Bind("sess-1", "EF45GH", "Alice")
	b, _ = tr.Lookup("sess-1")
	assert.Equal(t, "EF45GH", b.LobbyCode)

	tr.Unbind("sess-1")
	_, ok = tr.Lookup("sess-1")
	assert.False(t, ok)
}

func TestDisconnectDrivesLeavePath(t *testing.T) {
	svc := &fakeLeaveService{}
	tr := NewTracker(svc, quietLogger())

	tr.Bind("sess-1", "AB23CD", "Alice")
	tr.Disconnect("sess-1")

	require.Len(t, svc.leaves(), 1)
	assert.Equal(t, quiz.PlayerRef{LobbyCode: "AB23CD", PlayerName: "Alice"}, svc.leaves()[0])

	// The binding is gone; a second disconnect is a no-op.
	tr.Disconnect("sess-1")
	assert.Len(t, svc.leaves(), 1)
}

func TestDisconnectUnboundSessionIsNoop(t *testing.T) {
	svc := &fakeLeaveService{}
	tr := NewTracker(svc, quietLogger())
	tr.Disconnect("never-bound")
	assert.Empty(t, svc.leaves())
}

func TestSweepOrphans(t *testing.T) {
	svc := &fakeLeaveService{
		orphans: []quiz.PlayerRef{
			{LobbyCode: "AB23CD", PlayerName: "Alice"},
			{LobbyCode: "EF45GH", PlayerName: "Bob"},
		},
	}
	tr := NewTracker(svc, quietLogger())

	n := tr.SweepOrphans(staticLiveSet{})
	assert.Equal(t, 2, n)
	assert.Equal(t, svc.orphans, svc.leaves())
}

func TestSweepOrphansToleratesVanishedLobby(t *testing.T) {
	svc := &fakeLeaveService{
		orphans:  []quiz.PlayerRef{{LobbyCode: "AB23CD", PlayerName: "Alice"}},
		leaveErr: &quiz.Error{Kind: quiz.KindNotFound, Message: "lobby not found"},
	}
	tr := NewTracker(svc, quietLogger())

	// A lobby reaped between collection and leave is not an error.
	n := tr.SweepOrphans(staticLiveSet{})
	assert.Equal(t, 1, n)
}
