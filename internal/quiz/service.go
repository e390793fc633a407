// internal/quiz/service.go
package quiz

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quizzatron/quizzatron/internal/broadcast"
	"github.com/quizzatron/quizzatron/internal/metrics"
)

// GameRecord is the summary of a finished game handed to the history
// pipeline. Engine state never depends on whether it is delivered.
type GameRecord struct {
	LobbyCode  string        `json:"lobby_code"`
	FinishedAt int64         `json:"finished_at"`
	Settings   Settings      `json:"settings"`
	Players    []FinalResult `json:"players"`
}

// HistoryRecorder receives finished-game records, best-effort.
type HistoryRecorder interface {
	RecordGame(ctx context.Context, rec GameRecord) error
}

// Service is the game state machine. Every operation validates its state
// precondition, mutates the lobby atomically under the store lock, and emits
// the resulting events through the injected gateway. Operations return a
// structured *Error; no failure leaves a lobby partially mutated.
type Service struct {
	store         *Store
	source        QuestionSource
	gateway       broadcast.Gateway
	history       HistoryRecorder
	logger        *logrus.Logger
	sourceTimeout time.Duration
}

// ServiceConfig wires the service's collaborators. Source is required for
// StartGame; Gateway and History may be nil (no-op).
type ServiceConfig struct {
	Store         *Store
	Source        QuestionSource
	Gateway       broadcast.Gateway
	History       HistoryRecorder
	Logger        *logrus.Logger
	SourceTimeout time.Duration
}

// NewService constructs the state machine around a store.
func NewService(c ServiceConfig) *Service {
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
	if c.Store == nil {
		c.Store = NewStore(c.Logger)
	}
	if c.Gateway == nil {
		c.Gateway = broadcast.Nop{Logger: c.Logger}
	}
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = 15 * time.Second
	}
	return &Service{
		store:         c.Store,
		source:        c.Source,
		gateway:       c.Gateway,
		history:       c.History,
		logger:        c.Logger,
		sourceTimeout: c.SourceTimeout,
	}
}

// emit fans an event out to a lobby's room. The gateway is non-blocking and
// best-effort; a misbehaving transport must never corrupt lobby state, so
// panics are swallowed here.
func (s *Service) emit(event broadcast.Event, payload any, room string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("broadcast gateway panicked emitting %s to %s: %v", event, room, r)
		}
	}()
	s.gateway.Emit(event, payload, room)
	metrics.EventsBroadcast.WithLabelValues(string(event)).Inc()
}

// CreateResult is returned from CreateLobby.
type CreateResult struct {
	LobbyCode string `json:"lobby_code"`
	HostID    string `json:"host_id"`
}

// CreateLobby opens a new lobby with the host as its only player.
func (s *Service) CreateLobby(hostName, hostAvatar string) (CreateResult, *Error) {
	if hostName == "" {
		return CreateResult{}, errValidation("host name is required")
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	l := s.store.createLocked(hostName, hostAvatar)
	metrics.LobbiesCreated.Inc()
	metrics.ActiveLobbies.Set(float64(len(s.store.lobbies)))
	return CreateResult{LobbyCode: l.Code, HostID: l.HostID.String()}, nil
}

// JoinLobby adds a named player to a lobby still in the pre-game phase.
func (s *Service) JoinLobby(code, playerName, avatar string) (string, *Error) {
	if playerName == "" {
		return "", errValidation("player name is required")
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	l, ok := s.store.getLocked(code)
	if !ok {
		return "", errNotFound("lobby not found")
	}
	if l.State != StateLobby {
		return "", errInvalidTransition("game has already started")
	}
	if _, taken := l.playerByName(playerName); taken {
		return "", errDuplicateName("player name already taken")
	}
	if len(l.Players) >= MaxPlayers {
		return "", errFull("lobby is full")
	}

	p := l.addPlayer(playerName, avatar)
	l.touch()
	s.logger.Infof("Lobby %s: player %s joined (%d/%d)", code, playerName, len(l.Players), MaxPlayers)

	s.emit(broadcast.EventLobbyUpdate, map[string]any{
		"players":  l.playersSnapshot(),
		"settings": l.Settings,
	}, code)
	return p.ID.String(), nil
}

// SetReady flips a player's ready flag while the lobby is still open.
func (s *Service) SetReady(code, playerName string, ready bool) *Error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	l, ok := s.store.getLocked(code)
	if !ok {
		return errNotFound("lobby not found")
	}
	if l.State != StateLobby {
		return errInvalidTransition("game has already started")
	}
	p, ok := l.playerByName(playerName)
	if !ok {
		return errNotFound("player not found in lobby")
	}

	p.Ready = ready
	l.touch()
	s.emit(broadcast.EventLobbyUpdate, map[string]any{"players": l.playersSnapshot()}, code)
	return nil
}

// UpdateSettings applies a partial settings patch; legal only before start.
func (s *Service) UpdateSettings(code string, patch SettingsPatch) (Settings, *Error) {
	if patch.NumQuestions != nil && (*patch.NumQuestions < 1 || *patch.NumQuestions > 50) {
		return Settings{}, errValidation("numQuestions must be between 1 and 50")
	}
	if patch.TimePerQuestion != nil && *patch.TimePerQuestion < 5 {
		return Settings{}, errValidation("timePerQuestion must be at least 5 seconds")
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	l, ok := s.store.getLocked(code)
	if !ok {
		return Settings{}, errNotFound("lobby not found")
	}
	if l.State != StateLobby {
		return Settings{}, errInvalidTransition("game has already started")
	}

	patch.apply(&l.Settings)
	l.touch()
	s.emit(broadcast.EventLobbyUpdate, map[string]any{"settings": l.Settings}, code)
	return l.Settings, nil
}

// StartGame generates questions and moves the lobby into the first round.
//
// The question source is the one long-latency collaborator, so the store lock
// is NOT held across the call: settings are read under the lock, the source
// runs unlocked, and the result is committed under the lock only after the
// lobby is revalidated. Any upstream failure leaves the lobby in StateLobby
// untouched so the host can retry.
func (s *Service) StartGame(ctx context.Context, code string) *Error {
	s.store.mu.Lock()
	l, ok := s.store.getLocked(code)
	if !ok {
		s.store.mu.Unlock()
		return errNotFound("lobby not found")
	}
	if l.State != StateLobby {
		s.store.mu.Unlock()
		return errInvalidTransition("game has already started")
	}
	if l.readyCount() < 2 {
		s.store.mu.Unlock()
		return errInvalidTransition("at least one other player must be ready to start")
	}
	if s.source == nil {
		s.store.mu.Unlock()
		return errUpstream(nil, "no question source configured")
	}
	settings := l.Settings
	s.store.mu.Unlock()

	difficulty := settings.Difficulty
	if difficulty == "mixed" {
		difficulty = "medium"
	}
	params := GenerateParams{
		Topic:         settings.Topic,
		Difficulty:    difficulty,
		NumQuestions:  settings.NumQuestions,
		Model:         settings.Model,
		IncludeImages: settings.IncludeImages,
	}

	genCtx, cancel := context.WithTimeout(ctx, s.sourceTimeout)
	defer cancel()
	s.logger.Infof("Lobby %s: generating %d questions (topic=%q difficulty=%s model=%s)",
		code, params.NumQuestions, params.Topic, params.Difficulty, params.Model)
	questions, err := s.source.Generate(genCtx, params)
	if err != nil {
		s.logger.Warnf("Lobby %s: question generation failed: %v", code, err)
		return errUpstream(err, "failed to generate quiz")
	}
	if len(questions) == 0 {
		return errUpstream(nil, "question source returned no questions")
	}
	for i := range questions {
		questions[i].Index = i
	}

	// Revalidate and commit. The lobby may have been closed or raced into a
	// game by a concurrent start while the source was running.
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	l, ok = s.store.getLocked(code)
	if !ok {
		return errNotFound("lobby closed while generating questions")
	}
	if l.State != StateLobby {
		return errInvalidTransition("game has already started")
	}

	l.Questions = questions
	l.CurrentQuestion = 0
	l.State = StateQuestion
	l.AllAnswersIn = false
	l.AwaitingAdvance = false
	for _, p := range l.Players {
		p.TotalQuestions = len(questions)
	}
	l.touch()
	metrics.GamesStarted.Inc()
	s.logger.Infof("Lobby %s: game started with %d questions", code, len(questions))

	s.emit(broadcast.EventGameStarted, map[string]any{
		"lobby_code":     code,
		"question_count": len(questions),
	}, code)
	s.emit(broadcast.EventNewQuestion, map[string]any{
		"question":       questions[0],
		"question_index": 0,
		"time_limit":     l.Settings.TimePerQuestion,
	}, code)
	return nil
}

// SubmitAnswer records one player's answer for the current round, then either
// parks the lobby in WAITING or, when the round completes, publishes the
// scoreboard and possibly ends the game. A second submission for the same
// question by the same player is rejected; appending it would double-count
// score and break round-completion accounting.
func (s *Service) SubmitAnswer(code, playerName string, questionIdx int, answer string, timeTaken float64, isCorrect bool, score int) *Error {
	s.store.mu.Lock()

	l, ok := s.store.getLocked(code)
	if !ok {
		s.store.mu.Unlock()
		return errNotFound("lobby not found")
	}
	if l.State == StateLobby {
		s.store.mu.Unlock()
		return errInvalidTransition("game has not started yet")
	}
	if l.State == StateGameOver {
		s.store.mu.Unlock()
		return errInvalidTransition("game is already over")
	}
	if questionIdx < 0 || questionIdx >= len(l.Questions) {
		s.store.mu.Unlock()
		return errValidation("invalid question index: %d (max: %d)", questionIdx, len(l.Questions)-1)
	}
	p, ok := l.playerByName(playerName)
	if !ok {
		s.store.mu.Unlock()
		return errNotFound("player not found in lobby")
	}
	if p.hasAnswered(questionIdx) {
		s.store.mu.Unlock()
		return errValidation("player already answered question %d", questionIdx)
	}

	q := l.Questions[questionIdx]
	p.Answers = append(p.Answers, AnswerRecord{
		QuestionIndex: questionIdx,
		Question:      q.Question,
		UserAnswer:    answer,
		CorrectAnswer: q.CorrectAnswer,
		IsCorrect:     isCorrect,
		Score:         score,
		TimeTaken:     timeTaken,
	})
	p.Score += score
	if isCorrect {
		p.CorrectAnswers++
	}
	p.CurrentQuestion = questionIdx + 1
	l.touch()
	s.logger.Infof("Lobby %s: %s answered Q%d (correct=%v, +%d, total %d)",
		code, playerName, questionIdx+1, isCorrect, score, p.Score)

	s.emit(broadcast.EventPlayerAnswered, map[string]any{
		"player_id":      p.ID.String(),
		"player_name":    p.Name,
		"question_index": questionIdx,
	}, code)

	if !l.roundComplete(questionIdx) {
		l.State = StateWaiting
		s.store.mu.Unlock()
		return nil
	}

	// Round complete: everyone has answered this question.
	l.AllAnswersIn = true
	l.State = StateScoreboard
	s.emit(broadcast.EventAllAnswersIn, map[string]any{}, code)
	s.emit(broadcast.EventScoreboard, map[string]any{"players": l.buildScoreboard(questionIdx)}, code)

	var record *GameRecord
	if questionIdx >= len(l.Questions)-1 {
		l.State = StateGameOver
		l.finalResults = l.buildFinalResults()
		s.logger.Infof("Lobby %s: game over after question %d", code, questionIdx+1)
		s.emit(broadcast.EventGameOver, map[string]any{
			"results": l.finalResults,
			"players": l.finalResults,
		}, code)
		record = &GameRecord{
			LobbyCode:  code,
			FinishedAt: time.Now().Unix(),
			Settings:   l.Settings,
			Players:    l.finalResults,
		}
	} else {
		l.AwaitingAdvance = true
	}
	s.store.mu.Unlock()

	if record != nil {
		s.recordGame(*record)
	}
	return nil
}

// recordGame hands a finished game to the history pipeline without blocking
// the caller. Failures are logged and dropped.
func (s *Service) recordGame(rec GameRecord) {
	if s.history == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.history.RecordGame(ctx, rec); err != nil {
			s.logger.Warnf("Lobby %s: failed to record game history: %v", rec.LobbyCode, err)
		}
	}()
}

// AdvanceResult is returned from AdvanceQuestion.
type AdvanceResult struct {
	GameOver      bool `json:"game_over"`
	QuestionIndex int  `json:"question_index"`
}

// AdvanceQuestion moves a started game to the next question, or to GAME_OVER
// past the last one. Advancing an already-finished game is a no-op success so
// racing clients all converge on the same terminal answer.
func (s *Service) AdvanceQuestion(code string) (AdvanceResult, *Error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	l, ok := s.store.getLocked(code)
	if !ok {
		return AdvanceResult{}, errNotFound("lobby not found")
	}
	if l.State == StateLobby {
		return AdvanceResult{}, errInvalidTransition("game has not started yet")
	}
	if l.State == StateGameOver {
		return AdvanceResult{GameOver: true, QuestionIndex: l.CurrentQuestion}, nil
	}

	next := l.CurrentQuestion + 1
	l.touch()
	if next >= len(l.Questions) {
		l.State = StateGameOver
		if l.finalResults == nil {
			l.finalResults = l.buildFinalResults()
			s.emit(broadcast.EventGameOver, map[string]any{
				"results": l.finalResults,
				"players": l.finalResults,
			}, code)
		}
		return AdvanceResult{GameOver: true, QuestionIndex: l.CurrentQuestion}, nil
	}

	l.CurrentQuestion = next
	l.State = StateQuestion
	l.AllAnswersIn = false
	l.AwaitingAdvance = false
	s.emit(broadcast.EventNewQuestion, map[string]any{
		"question":       l.Questions[next],
		"question_index": next,
		"time_limit":     l.Settings.TimePerQuestion,
	}, code)
	return AdvanceResult{QuestionIndex: next}, nil
}

// LeaveLobby removes a player through the one consistent mutation path.
// The host abandoning a lobby that never started closes it outright; in every
// other case the player is removed and an empty lobby is destroyed.
func (s *Service) LeaveLobby(code, playerName string) *Error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	l, ok := s.store.getLocked(code)
	if !ok {
		return errNotFound("lobby not found")
	}
	p, ok := l.playerByName(playerName)
	if !ok {
		return errNotFound("player not found in lobby")
	}

	if p.IsHost && l.State == StateLobby {
		s.store.deleteLocked(code)
		metrics.ActiveLobbies.Set(float64(len(s.store.lobbies)))
		s.emit(broadcast.EventLobbyClosed, map[string]any{
			"message":    "The host has closed the lobby",
			"lobby_code": code,
		}, code)
		return nil
	}

	removed, _ := l.removePlayer(playerName)
	s.logger.Infof("Lobby %s: removed player %s", code, playerName)

	if len(l.Players) == 0 {
		s.store.deleteLocked(code)
		metrics.ActiveLobbies.Set(float64(len(s.store.lobbies)))
		return nil
	}

	l.touch()
	s.emit(broadcast.EventPlayerLeft, map[string]any{
		"name":      removed.Name,
		"id":        removed.ID.String(),
		"lobbyCode": code,
	}, code)
	s.emit(broadcast.EventLobbyUpdate, map[string]any{
		"players":  l.playersSnapshot(),
		"settings": l.Settings,
	}, code)
	return nil
}

// LobbyInfo is the questions-free lobby view.
type LobbyInfo struct {
	LobbyCode          string   `json:"lobby_code"`
	GameStarted        bool     `json:"game_started"`
	GameState          State    `json:"game_state"`
	CurrentQuestionIdx int      `json:"current_question_idx"`
	Players            []Player `json:"players"`
	Settings           Settings `json:"settings"`
}

// GetLobbyInfo returns lobby state without questions.
func (s *Service) GetLobbyInfo(code string) (LobbyInfo, *Error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	l, ok := s.store.getLocked(code)
	if !ok {
		return LobbyInfo{}, errNotFound("lobby not found")
	}
	l.touch()
	return LobbyInfo{
		LobbyCode:          l.Code,
		GameStarted:        l.State.InGame(),
		GameState:          l.State,
		CurrentQuestionIdx: l.CurrentQuestion,
		Players:            l.playersSnapshot(),
		Settings:           l.Settings,
	}, nil
}

// GameSnapshot is the full in-game view including questions.
type GameSnapshot struct {
	LobbyCode          string     `json:"lobby_code"`
	GameStarted        bool       `json:"game_started"`
	GameOver           bool       `json:"game_over"`
	GameState          State      `json:"game_state"`
	CurrentQuestionIdx int        `json:"current_question_idx"`
	AllAnswersReceived bool       `json:"all_answers_received"`
	Players            []Player   `json:"players"`
	Questions          []Question `json:"questions"`
}

// GetGameState returns the full game view; illegal before the game starts.
func (s *Service) GetGameState(code string) (GameSnapshot, *Error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	l, ok := s.store.getLocked(code)
	if !ok {
		return GameSnapshot{}, errNotFound("lobby not found")
	}
	if l.State == StateLobby {
		return GameSnapshot{}, errInvalidTransition("game has not started yet")
	}
	l.touch()
	questions := make([]Question, len(l.Questions))
	copy(questions, l.Questions)
	return GameSnapshot{
		LobbyCode:          l.Code,
		GameStarted:        true,
		GameOver:           l.State == StateGameOver,
		GameState:          l.State,
		CurrentQuestionIdx: l.CurrentQuestion,
		AllAnswersReceived: l.AllAnswersIn,
		Players:            l.playersSnapshot(),
		Questions:          questions,
	}, nil
}

// ResultsInfo is the final-results view.
type ResultsInfo struct {
	LobbyCode string        `json:"lobby_code"`
	Players   []FinalResult `json:"players"`
}

// GetResults returns the final standings; reads after GAME_OVER are stable.
func (s *Service) GetResults(code string) (ResultsInfo, *Error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	l, ok := s.store.getLocked(code)
	if !ok {
		return ResultsInfo{}, errNotFound("lobby not found")
	}
	if l.State != StateGameOver {
		return ResultsInfo{}, errInvalidTransition("game is not over yet")
	}
	l.touch()
	if l.finalResults == nil {
		l.finalResults = l.buildFinalResults()
	}
	return ResultsInfo{LobbyCode: l.Code, Players: l.finalResults}, nil
}

// UpdateAvatar changes a player's avatar in any state.
func (s *Service) UpdateAvatar(code, playerName, avatar string) *Error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	l, ok := s.store.getLocked(code)
	if !ok {
		return errNotFound("lobby not found")
	}
	p, ok := l.playerByName(playerName)
	if !ok {
		return errNotFound("player not found in lobby")
	}

	p.Avatar = avatar
	l.touch()
	s.emit(broadcast.EventLobbyUpdate, map[string]any{"players": l.playersSnapshot()}, code)
	return nil
}

// Exists reports whether a lobby code is live; used by validate_lobby.
func (s *Service) Exists(code string) bool { return s.store.Exists(code) }

// BindSession attaches a live-connection identifier to a player so the
// session tracker can drive disconnect cleanup.
func (s *Service) BindSession(code, playerName, sessionID string) *Error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	l, ok := s.store.getLocked(code)
	if !ok {
		return errNotFound("lobby not found")
	}
	p, ok := l.playerByName(playerName)
	if !ok {
		return errNotFound("player not found in lobby")
	}
	p.SessionID = sessionID
	return nil
}

// PlayerRef identifies a player within a lobby.
type PlayerRef struct {
	LobbyCode  string
	PlayerName string
}

// Orphans collects players whose recorded session vanished from the live set
// without an explicit disconnect. Read-only: callers drive the normal leave
// path per entry after this returns, so the sweep never re-enters the store
// lock it is holding.
func (s *Service) Orphans(live map[string]bool) []PlayerRef {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var orphans []PlayerRef
	for code, l := range s.store.lobbies {
		for _, p := range l.Players {
			if p.SessionID != "" && !live[p.SessionID] {
				orphans = append(orphans, PlayerRef{LobbyCode: code, PlayerName: p.Name})
			}
		}
	}
	return orphans
}

// ReapIdle evicts every lobby idle for longer than maxIdle. Evicted lobbies
// are assumed abandoned, so connected clients are not notified.
func (s *Service) ReapIdle(maxIdle time.Duration) int {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	codes := s.store.idleLocked(time.Now(), maxIdle)
	for _, code := range codes {
		s.store.deleteLocked(code)
		metrics.LobbiesReaped.Inc()
		s.logger.Infof("Reaper: removed inactive lobby %s", code)
	}
	if len(codes) > 0 {
		metrics.ActiveLobbies.Set(float64(len(s.store.lobbies)))
	}
	return len(codes)
}
