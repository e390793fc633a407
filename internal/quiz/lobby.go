// internal/quiz/lobby.go
package quiz

import (
	"time"

	"github.com/google/uuid"
)

// MaxPlayers is the join capacity of a single lobby.
const MaxPlayers = 8

// Settings is the host-tunable configuration bag. Mutable only while the
// lobby is still in StateLobby.
type Settings struct {
	NumQuestions    int      `json:"numQuestions"`
	Categories      []string `json:"categories"`
	Difficulty      string   `json:"difficulty"`
	TimePerQuestion int      `json:"timePerQuestion"`
	AllowSkipping   bool     `json:"allowSkipping"`
	Topic           string   `json:"topic,omitempty"`
	Model           string   `json:"model"`
	IncludeImages   bool     `json:"includeImages"`
}

// DefaultSettings mirrors the defaults a fresh lobby starts with.
func DefaultSettings() Settings {
	return Settings{
		NumQuestions:    10,
		Categories:      []string{},
		Difficulty:      "medium",
		TimePerQuestion: 15,
		Model:           "gemini",
	}
}

// SettingsPatch is a partial settings update; nil fields are left untouched.
type SettingsPatch struct {
	NumQuestions    *int      `json:"numQuestions,omitempty"`
	Categories      *[]string `json:"categories,omitempty"`
	Difficulty      *string   `json:"difficulty,omitempty"`
	TimePerQuestion *int      `json:"timePerQuestion,omitempty"`
	AllowSkipping   *bool     `json:"allowSkipping,omitempty"`
	Topic           *string   `json:"topic,omitempty"`
	Model           *string   `json:"model,omitempty"`
	IncludeImages   *bool     `json:"includeImages,omitempty"`
}

func (p SettingsPatch) apply(s *Settings) {
	if p.NumQuestions != nil {
		s.NumQuestions = *p.NumQuestions
	}
	if p.Categories != nil {
		s.Categories = *p.Categories
	}
	if p.Difficulty != nil {
		s.Difficulty = *p.Difficulty
	}
	if p.TimePerQuestion != nil {
		s.TimePerQuestion = *p.TimePerQuestion
	}
	if p.AllowSkipping != nil {
		s.AllowSkipping = *p.AllowSkipping
	}
	if p.Topic != nil {
		s.Topic = *p.Topic
	}
	if p.Model != nil {
		s.Model = *p.Model
	}
	if p.IncludeImages != nil {
		s.IncludeImages = *p.IncludeImages
	}
}

// AnswerRecord is one per-question result appended to a player. Records are
// append-only; the slice index matches the question index because duplicate
// submissions are rejected.
type AnswerRecord struct {
	QuestionIndex int     `json:"question_index"`
	Question      string  `json:"question"`
	UserAnswer    string  `json:"userAnswer"`
	CorrectAnswer string  `json:"correctAnswer"`
	IsCorrect     bool    `json:"isCorrect"`
	Score         int     `json:"score"`
	TimeTaken     float64 `json:"time_taken"`
}

// Player belongs to exactly one lobby. Name is the external lookup key and is
// unique within the lobby; ID is the stable internal identity.
type Player struct {
	ID              uuid.UUID      `json:"id"`
	Name            string         `json:"name"`
	Avatar          string         `json:"avatar"`
	IsHost          bool           `json:"isHost"`
	Ready           bool           `json:"ready"`
	CurrentQuestion int            `json:"currentQuestion"`
	Score           int            `json:"score"`
	CorrectAnswers  int            `json:"correctAnswers"`
	TotalQuestions  int            `json:"totalQuestions"`
	Answers         []AnswerRecord `json:"answers"`

	// SessionID references the player's live connection, if it has announced
	// itself. Empty does not mean the player is gone.
	SessionID string `json:"-"`
}

func newPlayer(name, avatar string, isHost bool) *Player {
	return &Player{
		ID:      uuid.New(),
		Name:    name,
		Avatar:  avatar,
		IsHost:  isHost,
		Answers: []AnswerRecord{},
	}
}

// snapshot returns a detached copy safe to hand out after the store lock is
// released.
func (p *Player) snapshot() Player {
	cp := *p
	cp.Answers = make([]AnswerRecord, len(p.Answers))
	copy(cp.Answers, p.Answers)
	return cp
}

// hasAnswered reports whether the player already submitted for questionIdx.
func (p *Player) hasAnswered(questionIdx int) bool {
	return len(p.Answers) > questionIdx
}

// Lobby owns all state for one game session. Every field is guarded by the
// store's single mutex; methods on Lobby assume that lock is held.
type Lobby struct {
	Code         string
	CreatedAt    time.Time
	LastActivity time.Time
	HostID       uuid.UUID
	State        State
	Settings     Settings

	// Players keeps join order, which doubles as the ranking tiebreaker.
	// nameIndex backs the name-uniqueness invariant without O(n) scans.
	Players   []*Player
	nameIndex map[string]int

	Questions       []Question
	CurrentQuestion int
	AllAnswersIn    bool
	AwaitingAdvance bool

	finalResults []FinalResult
}

func newLobby(code, hostName, hostAvatar string) *Lobby {
	host := newPlayer(hostName, hostAvatar, true)
	now := time.Now()
	l := &Lobby{
		Code:            code,
		CreatedAt:       now,
		LastActivity:    now,
		HostID:          host.ID,
		State:           StateLobby,
		Settings:        DefaultSettings(),
		Players:         []*Player{host},
		nameIndex:       map[string]int{hostName: 0},
		Questions:       []Question{},
		CurrentQuestion: -1,
	}
	return l
}

// touch refreshes the idle timestamp; called on every successful mutation.
func (l *Lobby) touch() { l.LastActivity = time.Now() }

// playerByName resolves a player through the name index.
func (l *Lobby) playerByName(name string) (*Player, bool) {
	i, ok := l.nameIndex[name]
	if !ok {
		return nil, false
	}
	return l.Players[i], true
}

// addPlayer appends a new non-host player, keeping the name index current.
func (l *Lobby) addPlayer(name, avatar string) *Player {
	p := newPlayer(name, avatar, false)
	l.nameIndex[name] = len(l.Players)
	l.Players = append(l.Players, p)
	return p
}

// removePlayer drops a player and rebuilds the index positions after it.
func (l *Lobby) removePlayer(name string) (*Player, bool) {
	i, ok := l.nameIndex[name]
	if !ok {
		return nil, false
	}
	p := l.Players[i]
	l.Players = append(l.Players[:i], l.Players[i+1:]...)
	delete(l.nameIndex, name)
	for j := i; j < len(l.Players); j++ {
		l.nameIndex[l.Players[j].Name] = j
	}
	return p, true
}

// readyCount counts players that are ready or the host; start_game requires
// at least two of them.
func (l *Lobby) readyCount() int {
	n := 0
	for _, p := range l.Players {
		if p.Ready || p.IsHost {
			n++
		}
	}
	return n
}

// roundComplete reports whether every player has answered questionIdx.
func (l *Lobby) roundComplete(questionIdx int) bool {
	for _, p := range l.Players {
		if !p.hasAnswered(questionIdx) {
			return false
		}
	}
	return true
}

// playersSnapshot detaches the player list for use outside the lock.
func (l *Lobby) playersSnapshot() []Player {
	out := make([]Player, len(l.Players))
	for i, p := range l.Players {
		out[i] = p.snapshot()
	}
	return out
}
