// internal/quiz/question.go
package quiz

import "context"

// Question is a read-only value produced by the external question source.
// The engine never mutates questions after StartGame commits them.
type Question struct {
	Index         int      `json:"index"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Image         string   `json:"image,omitempty"`
}

// GenerateParams carries the lobby settings relevant to quiz generation.
type GenerateParams struct {
	Topic         string
	Difficulty    string
	NumQuestions  int
	Model         string
	IncludeImages bool
}

// QuestionSource produces quiz content. It is the one long-latency
// collaborator the engine talks to, so StartGame calls it with a bounded
// context and without holding the store lock.
type QuestionSource interface {
	Generate(ctx context.Context, params GenerateParams) ([]Question, error)
}
