// internal/handlers/api_server.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/quizzatron/quizzatron/internal/quiz"
)

// APIServer exposes the REST surface of the engine. All lobby mutations land
// in the same service the socket layer uses, so HTTP and socket clients see
// one consistent state machine.
type APIServer struct {
	svc    *quiz.Service
	logger *logrus.Logger
}

// NewAPIServer wraps a service for HTTP.
func NewAPIServer(svc *quiz.Service, logger *logrus.Logger) *APIServer {
	if logger == nil {
		logger = logrus.New()
	}
	return &APIServer{svc: svc, logger: logger}
}

// Register mounts all lobby routes on mux.
func (s *APIServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /multiplayer/lobby/create", s.handleCreate)
	mux.HandleFunc("POST /multiplayer/lobby/{code}/join", s.handleJoin)
	mux.HandleFunc("POST /multiplayer/lobby/{code}/ready", s.handleReady)
	mux.HandleFunc("PATCH /multiplayer/lobby/{code}/settings", s.handleSettings)
	mux.HandleFunc("POST /multiplayer/lobby/{code}/start", s.handleStart)
	mux.HandleFunc("POST /multiplayer/lobby/{code}/leave", s.handleLeave)
	mux.HandleFunc("POST /multiplayer/lobby/{code}/answer", s.handleAnswer)
	mux.HandleFunc("POST /multiplayer/lobby/{code}/next", s.handleNext)
	mux.HandleFunc("POST /multiplayer/lobby/{code}/avatar", s.handleAvatar)
	mux.HandleFunc("GET /multiplayer/lobby/{code}", s.handleInfo)
	mux.HandleFunc("GET /multiplayer/lobby/{code}/game", s.handleGameState)
	mux.HandleFunc("GET /multiplayer/lobby/{code}/results", s.handleResults)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err *quiz.Error) {
	writeJSON(w, err.HTTPStatus(), map[string]any{"error": err.Message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err.Error() != "EOF" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad request payload"})
		return false
	}
	return true
}

func (s *APIServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostName   string `json:"hostName"`
		HostAvatar string `json:"hostAvatar"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, serr := s.svc.CreateLobby(req.HostName, req.HostAvatar)
	if serr != nil {
		writeError(w, serr)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *APIServer) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerName string `json:"playerName"`
		Avatar     string `json:"avatar"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	playerID, serr := s.svc.JoinLobby(r.PathValue("code"), req.PlayerName, req.Avatar)
	if serr != nil {
		writeError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"player_id": playerID})
}

func (s *APIServer) handleReady(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerName string `json:"playerName"`
		Ready      bool   `json:"ready"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if serr := s.svc.SetReady(r.PathValue("code"), req.PlayerName, req.Ready); serr != nil {
		writeError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *APIServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	var patch quiz.SettingsPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	settings, serr := s.svc.UpdateSettings(r.PathValue("code"), patch)
	if serr != nil {
		writeError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

func (s *APIServer) handleStart(w http.ResponseWriter, r *http.Request) {
	if serr := s.svc.StartGame(r.Context(), r.PathValue("code")); serr != nil {
		writeError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "started"})
}

func (s *APIServer) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerName string `json:"playerName"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if serr := s.svc.LeaveLobby(r.PathValue("code"), req.PlayerName); serr != nil {
		writeError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *APIServer) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerName    string  `json:"playerName"`
		QuestionIndex int     `json:"questionIndex"`
		Answer        string  `json:"answer"`
		TimeTaken     float64 `json:"timeTaken"`
		IsCorrect     bool    `json:"isCorrect"`
		Score         int     `json:"score"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	serr := s.svc.SubmitAnswer(r.PathValue("code"), req.PlayerName, req.QuestionIndex,
		req.Answer, req.TimeTaken, req.IsCorrect, req.Score)
	if serr != nil {
		writeError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *APIServer) handleNext(w http.ResponseWriter, r *http.Request) {
	res, serr := s.svc.AdvanceQuestion(r.PathValue("code"))
	if serr != nil {
		writeError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *APIServer) handleAvatar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerName string `json:"playerName"`
		Avatar     string `json:"avatar"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if serr := s.svc.UpdateAvatar(r.PathValue("code"), req.PlayerName, req.Avatar); serr != nil {
		writeError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"avatar": req.Avatar})
}

func (s *APIServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, serr := s.svc.GetLobbyInfo(r.PathValue("code"))
	if serr != nil {
		writeError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *APIServer) handleGameState(w http.ResponseWriter, r *http.Request) {
	snap, serr := s.svc.GetGameState(r.PathValue("code"))
	if serr != nil {
		writeError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *APIServer) handleResults(w http.ResponseWriter, r *http.Request) {
	res, serr := s.svc.GetResults(r.PathValue("code"))
	if serr != nil {
		writeError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
