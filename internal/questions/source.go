// internal/questions/source.go

// Package questions adapts the external quiz-generation service to the
// engine's QuestionSource interface. Generation itself (prompting, image
// lookup, validation retries) lives behind that service; this client only
// speaks its HTTP boundary.
package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quizzatron/quizzatron/internal/quiz"
)

// HTTPSource calls the quiz generator over HTTP with a bounded timeout.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// NewHTTPSource points the adapter at the generator's base URL, e.g.
// "http://localhost:5000". Timeout bounds the whole generation call.
func NewHTTPSource(baseURL string, timeout time.Duration, logger *logrus.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Generate fetches an ordered question list. Any transport error, non-200
// status, or malformed/empty payload is an upstream failure; the engine maps
// it without inspecting the cause.
func (s *HTTPSource) Generate(ctx context.Context, params quiz.GenerateParams) ([]quiz.Question, error) {
	q := url.Values{}
	q.Set("numQuestions", strconv.Itoa(params.NumQuestions))
	q.Set("difficulty", params.Difficulty)
	if params.Topic != "" {
		q.Set("topic", params.Topic)
	}
	if params.Model != "" {
		q.Set("model", params.Model)
	}
	if params.IncludeImages {
		q.Set("image", "true")
	}

	reqURL := fmt.Sprintf("%s/quiz/generate?%s", s.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build generator request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("question generator unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("question generator returned status %d", resp.StatusCode)
	}

	var questions []quiz.Question
	if err := json.NewDecoder(resp.Body).Decode(&questions); err != nil {
		return nil, fmt.Errorf("invalid generator payload: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("question generator returned an empty list")
	}
	for _, qu := range questions {
		if qu.Question == "" || len(qu.Options) != 4 || qu.CorrectAnswer == "" {
			return nil, fmt.Errorf("question generator returned a malformed question")
		}
	}

	s.logger.Infof("Question source: generated %d questions (topic=%q)", len(questions), params.Topic)
	return questions, nil
}
