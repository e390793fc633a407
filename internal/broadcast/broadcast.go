// internal/broadcast/broadcast.go

// Package broadcast defines the fanout contract between the game engine and
// whatever transport carries events to clients. The engine is handed a
// Gateway at construction; it never reaches for a transport global at call
// time.
package broadcast

import "github.com/sirupsen/logrus"

// Event names the full vocabulary the engine can emit. Payload shapes are
// documented on the emitting call sites.
type Event string

const (
	EventLobbyUpdate    Event = "lobby_update"
	EventRoomJoined     Event = "room_joined"
	EventPlayerJoined   Event = "player_joined"
	EventPlayerLeft     Event = "player_left"
	EventLobbyClosed    Event = "lobby_closed"
	EventGameStarted    Event = "game_started"
	EventNewQuestion    Event = "new_question"
	EventPlayerAnswered Event = "player_answered"
	EventAllAnswersIn   Event = "all_answers_in"
	EventScoreboard     Event = "scoreboard"
	EventGameOver       Event = "game_over"
	EventError          Event = "error"
)

// Gateway pushes an event to every connection subscribed to a lobby's room.
// Delivery is best-effort and fire-and-forget: implementations must not block
// game progress on a slow client and must not surface transport errors to the
// caller.
type Gateway interface {
	Emit(event Event, payload any, room string)
}

// Nop is the gateway used when no transport is attached (tests, tools).
// Emits are logged at debug level and dropped.
type Nop struct {
	Logger *logrus.Logger
}

func (n Nop) Emit(event Event, _ any, room string) {
	if n.Logger != nil {
		n.Logger.Debugf("broadcast (no transport): %s -> room %s", event, room)
	}
}
