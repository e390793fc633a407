// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/quizzatron/quizzatron/internal/auth"
	"github.com/quizzatron/quizzatron/internal/broadcast"
	"github.com/quizzatron/quizzatron/internal/quiz"
	"github.com/quizzatron/quizzatron/internal/session"
)

const sessionCookieName = "quiz_session"

// EnsureSession resolves the caller's session ID from the quiz_session cookie,
// minting a fresh one (and setting the cookie) when it is absent or invalid.
func EnsureSession(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if sid, verr := auth.VerifySessionToken(cookie.Value); verr == nil {
			return sid, nil
		}
	}

	sid := auth.NewSessionID()
	token, err := auth.CreateSessionToken(sid)
	if err != nil {
		return "", fmt.Errorf("failed to create session token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return sid, nil
}

// wsMessage is every client-to-server frame. Unused fields stay zero.
type wsMessage struct {
	Type          string  `json:"type"`
	LobbyCode     string  `json:"lobby_code"`
	PlayerName    string  `json:"player_name"`
	PlayerID      string  `json:"player_id"`
	QuestionIndex int     `json:"question_index"`
	Answer        string  `json:"answer"`
	TimeTaken     float64 `json:"time_taken"`
	IsCorrect     bool    `json:"is_correct"`
	Score         int     `json:"score"`
	Ready         bool    `json:"ready"`
}

// WSHandler accepts quiz socket connections. Each connection gets a read pump
// (this handler's goroutine) and a write pump; all game mutations go through
// the service so the socket layer never touches lobby state directly.
func WSHandler(logger *logrus.Logger, svc *quiz.Service, hub *Hub, tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		// Resolve the session before Accept; Set-Cookie is impossible after
		// the protocol upgrade.
		sessionID, err := EnsureSession(w, r)
		if err != nil {
			logger.Warnf("WS: session setup failed for %s: %v", remoteAddr, err)
			http.Error(w, "session setup failed", http.StatusInternalServerError)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"quiz"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "quiz" {
			c.Close(BadSubprotocolError, "client must speak the quiz subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		client := &wsClient{
			sessionID: sessionID,
			out:       make(chan outbound, 16),
			cancel:    cancel,
			logger:    logger,
		}
		hub.Register(client)
		logger.Infof("Session %s (%s) connected", sessionID, remoteAddr)

		go writePump(ctx, c, client, logger)

		client.send(outbound{
			Type: "connection_response",
			Data: map[string]any{"session_id": sessionID, "status": "connected"},
		})

		readPump(ctx, c, client, svc, hub, tracker, logger)

		// readPump exited: the connection is gone one way or another.
		hub.Unregister(sessionID)
		tracker.Disconnect(sessionID)
		logger.Infof("Session %s cleaned up", sessionID)
	}
}

// readPump consumes client frames until the connection dies.
func readPump(ctx context.Context, c *websocket.Conn, client *wsClient, svc *quiz.Service, hub *Hub, tracker *session.Tracker, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, raw, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("Session %s: websocket closed normally", client.sessionID)
			} else if strings.Contains(err.Error(), "context canceled") {
				// Cancelled by a reconnect or server shutdown; nothing to log.
			} else {
				logger.Warnf("Session %s: read error: %v (CloseStatus: %d)", client.sessionID, err, closeStatus)
			}
			return
		}
		if typ != websocket.MessageText {
			logger.Warnf("Session %s: ignoring non-text message type %d", client.sessionID, typ)
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warnf("Session %s: invalid json: %v", client.sessionID, err)
			client.sendError("Invalid JSON format")
			continue
		}

		handleMessage(ctx, msg, client, svc, hub, tracker, logger)
	}
}

// handleMessage dispatches one client frame to the engine.
func handleMessage(ctx context.Context, msg wsMessage, client *wsClient, svc *quiz.Service, hub *Hub, tracker *session.Tracker, logger *logrus.Logger) {
	switch msg.Type {
	case "join_room":
		if msg.LobbyCode == "" || msg.PlayerName == "" {
			client.sendError("join_room requires lobby_code and player_name")
			return
		}
		if serr := svc.BindSession(msg.LobbyCode, msg.PlayerName, client.sessionID); serr != nil {
			client.sendError(serr.Message)
			return
		}
		hub.JoinRoom(msg.LobbyCode, client)
		tracker.Bind(client.sessionID, msg.LobbyCode, msg.PlayerName)

		hub.EmitExcept(broadcast.EventPlayerJoined, map[string]any{
			"name": msg.PlayerName,
			"id":   msg.PlayerID,
		}, msg.LobbyCode, client.sessionID)
		client.send(outbound{
			Type: string(broadcast.EventRoomJoined),
			Data: map[string]any{"lobby_code": msg.LobbyCode, "status": "success"},
		})

	case "leave_room":
		hub.LeaveRoom(msg.LobbyCode, client.sessionID)
		tracker.Unbind(client.sessionID)
		if serr := svc.LeaveLobby(msg.LobbyCode, msg.PlayerName); serr != nil && serr.Kind != quiz.KindNotFound {
			client.sendError(serr.Message)
		}

	case "toggle_ready":
		if serr := svc.SetReady(msg.LobbyCode, msg.PlayerName, msg.Ready); serr != nil {
			client.sendError(serr.Message)
		}

	case "start_game":
		// StartGame calls out to the question source and can take seconds;
		// it manages the store lock itself so blocking this read pump only
		// stalls the host's own connection.
		if serr := svc.StartGame(ctx, msg.LobbyCode); serr != nil {
			client.sendError(serr.Message)
		}

	case "submit_answer":
		serr := svc.SubmitAnswer(msg.LobbyCode, msg.PlayerName, msg.QuestionIndex,
			msg.Answer, msg.TimeTaken, msg.IsCorrect, msg.Score)
		if serr != nil {
			client.sendError(serr.Message)
		}

	case "request_next_question":
		if _, serr := svc.AdvanceQuestion(msg.LobbyCode); serr != nil {
			client.sendError(serr.Message)
		}

	case "validate_lobby":
		client.send(outbound{
			Type: "validate_lobby_response",
			Data: map[string]any{
				"lobby_code": msg.LobbyCode,
				"valid":      svc.Exists(msg.LobbyCode),
			},
		})

	default:
		logger.Warnf("Session %s: unknown action %q", client.sessionID, msg.Type)
		client.sendError(fmt.Sprintf("Unknown action type: %s", msg.Type))
	}
}

// writePump drains the client's out channel onto the wire and pings on idle.
func writePump(ctx context.Context, c *websocket.Conn, client *wsClient, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-client.out:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("Session %s: failed to marshal outgoing %q: %v", client.sessionID, msg.Type, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Session %s: write failed: %v", client.sessionID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Session %s: ping failed, assuming disconnect: %v", client.sessionID, err)
				return
			}
		}
	}
}
