// internal/quiz/store.go
package quiz

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Store is the authoritative in-memory table of lobbies, keyed by code.
// One coarse mutex serializes every read and write across all lobbies; the
// simplicity of a single total order is worth more here than cross-lobby
// parallelism. Service holds the lock for the duration of each operation and
// never hands a *Lobby across a release/reacquire boundary.
type Store struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby
	logger  *logrus.Logger
}

// NewStore initializes an empty lobby store.
func NewStore(logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{
		lobbies: make(map[string]*Lobby),
		logger:  logger,
	}
}

// createLocked generates a unique code and inserts a fresh lobby. Assumes the
// lock is held.
func (s *Store) createLocked(hostName, hostAvatar string) *Lobby {
	code := randomCode()
	for _, exists := s.lobbies[code]; exists; _, exists = s.lobbies[code] {
		code = randomCode()
	}
	l := newLobby(code, hostName, hostAvatar)
	s.lobbies[code] = l
	s.logger.Infof("Store: created lobby %s (host %s)", code, hostName)
	return l
}

// getLocked looks up a lobby by code. Assumes the lock is held.
func (s *Store) getLocked(code string) (*Lobby, bool) {
	l, ok := s.lobbies[code]
	return l, ok
}

// deleteLocked removes a lobby. Assumes the lock is held.
func (s *Store) deleteLocked(code string) {
	if _, ok := s.lobbies[code]; !ok {
		s.logger.Warnf("Store: attempted to delete non-existent lobby %s", code)
		return
	}
	delete(s.lobbies, code)
	s.logger.Infof("Store: deleted lobby %s", code)
}

// Len returns the number of active lobbies.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lobbies)
}

// Exists reports whether a lobby code is currently active.
func (s *Store) Exists(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lobbies[code]
	return ok
}

// idleLocked collects codes of lobbies whose last activity is older than
// maxIdle. Assumes the lock is held.
func (s *Store) idleLocked(now time.Time, maxIdle time.Duration) []string {
	var codes []string
	for code, l := range s.lobbies {
		if now.Sub(l.LastActivity) > maxIdle {
			codes = append(codes, code)
		}
	}
	return codes
}
