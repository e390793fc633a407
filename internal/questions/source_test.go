// internal/questions/source_test.go
package questions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizzatron/quizzatron/internal/quiz"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func generatorStub(t *testing.T, status int, questions []quiz.Question, gotQuery *map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quiz/generate", r.URL.Path)
		if gotQuery != nil {
			q := map[string]string{}
			for k := range r.URL.Query() {
				q[k] = r.URL.Query().Get(k)
			}
			*gotQuery = q
		}
		w.WriteHeader(status)
		if questions != nil {
			json.NewEncoder(w).Encode(questions)
		}
	}))
}

func validQuestions(n int) []quiz.Question {
	out := make([]quiz.Question, n)
	for i := range out {
		out[i] = quiz.Question{
			Question:      "What?",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
		}
	}
	return out
}

func TestGeneratePassesParams(t *testing.T) {
	var query map[string]string
	srv := generatorStub(t, http.StatusOK, validQuestions(3), &query)
	defer srv.Close()

	src := NewHTTPSource(srv.URL, 5*time.Second, quietLogger())
	questions, err := src.Generate(context.Background(), quiz.GenerateParams{
		Topic:         "space",
		Difficulty:    "hard",
		NumQuestions:  3,
		Model:         "gemini",
		IncludeImages: true,
	})
	require.NoError(t, err)
	assert.Len(t, questions, 3)

	assert.Equal(t, "3", query["numQuestions"])
	assert.Equal(t, "hard", query["difficulty"])
	assert.Equal(t, "space", query["topic"])
	assert.Equal(t, "gemini", query["model"])
	assert.Equal(t, "true", query["image"])
}

func TestGenerateOmitsEmptyParams(t *testing.T) {
	var query map[string]string
	srv := generatorStub(t, http.StatusOK, validQuestions(1), &query)
	defer srv.Close()

	src := NewHTTPSource(srv.URL, 5*time.Second, quietLogger())
	_, err := src.Generate(context.Background(), quiz.GenerateParams{
		Difficulty:   "medium",
		NumQuestions: 1,
	})
	require.NoError(t, err)
	assert.NotContains(t, query, "topic")
	assert.NotContains(t, query, "image")
}

func TestGenerateNonOKStatus(t *testing.T) {
	srv := generatorStub(t, http.StatusInternalServerError, nil, nil)
	defer srv.Close()

	src := NewHTTPSource(srv.URL, 5*time.Second, quietLogger())
	_, err := src.Generate(context.Background(), quiz.GenerateParams{NumQuestions: 1, Difficulty: "easy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestGenerateRejectsMalformedQuestions(t *testing.T) {
	bad := []quiz.Question{{Question: "What?", Options: []string{"A", "B"}, CorrectAnswer: "A"}}
	srv := generatorStub(t, http.StatusOK, bad, nil)
	defer srv.Close()

	src := NewHTTPSource(srv.URL, 5*time.Second, quietLogger())
	_, err := src.Generate(context.Background(), quiz.GenerateParams{NumQuestions: 1, Difficulty: "easy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestGenerateRejectsEmptyList(t *testing.T) {
	srv := generatorStub(t, http.StatusOK, []quiz.Question{}, nil)
	defer srv.Close()

	src := NewHTTPSource(srv.URL, 5*time.Second, quietLogger())
	_, err := src.Generate(context.Background(), quiz.GenerateParams{NumQuestions: 1, Difficulty: "easy"})
	require.Error(t, err)
}

func TestGenerateHonorsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	src := NewHTTPSource(srv.URL, 5*time.Second, quietLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := src.Generate(ctx, quiz.GenerateParams{NumQuestions: 1, Difficulty: "easy"})
	require.Error(t, err)
}
