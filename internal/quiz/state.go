// internal/quiz/state.go
package quiz

// State is the lifecycle phase of a lobby. Transitions only move along
// LOBBY -> QUESTION -> WAITING -> SCOREBOARD -> (QUESTION | GAME_OVER);
// every mutating operation checks its precondition against this value.
type State string

const (
	StateLobby      State = "lobby"
	StateQuestion   State = "question"
	StateWaiting    State = "waiting"
	StateScoreboard State = "scoreboard"
	StateGameOver   State = "game_over"
)

// InGame reports whether the lobby has left the pre-game phase.
func (s State) InGame() bool { return s != StateLobby }

// AcceptsAnswers reports whether submit_answer is legal in this state.
func (s State) AcceptsAnswers() bool {
	return s != StateLobby && s != StateGameOver
}
