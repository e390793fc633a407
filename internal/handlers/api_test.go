// internal/handlers/api_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizzatron/quizzatron/internal/quiz"
)

// fixedSource serves a deterministic question list for HTTP flow tests.
type fixedSource struct{}

func (fixedSource) Generate(_ context.Context, params quiz.GenerateParams) ([]quiz.Question, error) {
	questions := make([]quiz.Question, params.NumQuestions)
	for i := range questions {
		questions[i] = quiz.Question{
			Question:      fmt.Sprintf("Question %d", i),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
		}
	}
	return questions, nil
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	svc := quiz.NewService(quiz.ServiceConfig{
		Source: fixedSource{},
		Logger: logger,
	})
	mux := http.NewServeMux()
	NewAPIServer(svc, logger).Register(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func TestCreateLobbyEndpoint(t *testing.T) {
	mux := newTestMux(t)

	w := doJSON(t, mux, "POST", "/multiplayer/lobby/create", map[string]any{
		"hostName":   "Alice",
		"hostAvatar": "cat",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res struct {
		LobbyCode string `json:"lobby_code"`
		HostID    string `json:"host_id"`
	}
	decode(t, w, &res)
	assert.Len(t, res.LobbyCode, 6)
	assert.NotEmpty(t, res.HostID)
}

func TestCreateLobbyEndpointRequiresHostName(t *testing.T) {
	mux := newTestMux(t)
	w := doJSON(t, mux, "POST", "/multiplayer/lobby/create", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJoinUnknownLobbyReturns404(t *testing.T) {
	mux := newTestMux(t)
	w := doJSON(t, mux, "POST", "/multiplayer/lobby/ZZZZZZ/join", map[string]any{
		"playerName": "Bob",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestFullGameFlowOverHTTP walks a two-player game from create to results.
func TestFullGameFlowOverHTTP(t *testing.T) {
	mux := newTestMux(t)

	w := doJSON(t, mux, "POST", "/multiplayer/lobby/create", map[string]any{"hostName": "Alice"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		LobbyCode string `json:"lobby_code"`
	}
	decode(t, w, &created)
	code := created.LobbyCode
	base := "/multiplayer/lobby/" + code

	w = doJSON(t, mux, "POST", base+"/join", map[string]any{"playerName": "Bob"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, mux, "POST", base+"/ready", map[string]any{"playerName": "Bob", "ready": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, mux, "PATCH", base+"/settings", map[string]any{"numQuestions": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, mux, "POST", base+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Both answer question 0.
	for _, name := range []string{"Alice", "Bob"} {
		w = doJSON(t, mux, "POST", base+"/answer", map[string]any{
			"playerName":    name,
			"questionIndex": 0,
			"answer":        "A",
			"timeTaken":     1.5,
			"isCorrect":     true,
			"score":         100,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = doJSON(t, mux, "POST", base+"/next", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var adv struct {
		GameOver      bool `json:"game_over"`
		QuestionIndex int  `json:"question_index"`
	}
	decode(t, w, &adv)
	assert.False(t, adv.GameOver)
	assert.Equal(t, 1, adv.QuestionIndex)

	// Final round.
	for _, name := range []string{"Alice", "Bob"} {
		w = doJSON(t, mux, "POST", base+"/answer", map[string]any{
			"playerName":    name,
			"questionIndex": 1,
			"answer":        "B",
			"timeTaken":     2.0,
			"isCorrect":     false,
			"score":         0,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = doJSON(t, mux, "GET", base+"/results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results struct {
		LobbyCode string `json:"lobby_code"`
		Players   []struct {
			Name  string `json:"name"`
			Score int    `json:"score"`
		} `json:"players"`
	}
	decode(t, w, &results)
	assert.Equal(t, code, results.LobbyCode)
	require.Len(t, results.Players, 2)
	assert.Equal(t, 100, results.Players[0].Score)
}

func TestLobbyInfoHidesQuestions(t *testing.T) {
	mux := newTestMux(t)

	w := doJSON(t, mux, "POST", "/multiplayer/lobby/create", map[string]any{"hostName": "Alice"})
	var created struct {
		LobbyCode string `json:"lobby_code"`
	}
	decode(t, w, &created)
	base := "/multiplayer/lobby/" + created.LobbyCode

	doJSON(t, mux, "POST", base+"/join", map[string]any{"playerName": "Bob"})
	doJSON(t, mux, "POST", base+"/ready", map[string]any{"playerName": "Bob", "ready": true})
	w = doJSON(t, mux, "POST", base+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, mux, "GET", base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]any
	decode(t, w, &info)
	assert.NotContains(t, info, "questions")
	assert.Equal(t, "question", info["game_state"])

	// The in-game view does include the question list.
	w = doJSON(t, mux, "GET", base+"/game", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap struct {
		Questions []quiz.Question `json:"questions"`
	}
	decode(t, w, &snap)
	assert.NotEmpty(t, snap.Questions)
}

func TestStartBeforeReadyReturns400(t *testing.T) {
	mux := newTestMux(t)

	w := doJSON(t, mux, "POST", "/multiplayer/lobby/create", map[string]any{"hostName": "Alice"})
	var created struct {
		LobbyCode string `json:"lobby_code"`
	}
	decode(t, w, &created)

	w = doJSON(t, mux, "POST", "/multiplayer/lobby/"+created.LobbyCode+"/start", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	assert.Equal(t, "at least one other player must be ready to start", body.Error)
}
