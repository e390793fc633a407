// internal/quiz/scoreboard.go
package quiz

import "sort"

// ScoreboardEntry is one player's row on the per-round scoreboard.
type ScoreboardEntry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Avatar       string `json:"avatar"`
	IsHost       bool   `json:"isHost"`
	Score        int    `json:"score"`
	TotalCorrect int    `json:"totalCorrect"`
	Answer       string `json:"answer"`
	IsCorrect    bool   `json:"isCorrect"`
	AnswerScore  int    `json:"answerScore"`
}

// FinalResult is a player's end-of-game summary including full answer history.
type FinalResult struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Avatar         string         `json:"avatar"`
	IsHost         bool           `json:"isHost"`
	Score          int            `json:"score"`
	CorrectAnswers int            `json:"correctAnswers"`
	TotalQuestions int            `json:"totalQuestions"`
	Answers        []AnswerRecord `json:"answers"`
}

// rankedPlayers returns the lobby's players ordered by descending cumulative
// score, ties broken by join order. Both the round scoreboard and the final
// results go through here so the two can never disagree on ranking.
// Assumes the store lock is held.
func (l *Lobby) rankedPlayers() []*Player {
	ranked := make([]*Player, len(l.Players))
	copy(ranked, l.Players)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// buildScoreboard assembles the round scoreboard for questionIdx. Players who
// somehow lack a record for the question show as unanswered rather than being
// dropped. Assumes the store lock is held.
func (l *Lobby) buildScoreboard(questionIdx int) []ScoreboardEntry {
	entries := make([]ScoreboardEntry, 0, len(l.Players))
	for _, p := range l.rankedPlayers() {
		e := ScoreboardEntry{
			ID:           p.ID.String(),
			Name:         p.Name,
			Avatar:       p.Avatar,
			IsHost:       p.IsHost,
			Score:        p.Score,
			TotalCorrect: p.CorrectAnswers,
			Answer:       "Unanswered",
		}
		if p.hasAnswered(questionIdx) {
			rec := p.Answers[questionIdx]
			e.Answer = rec.UserAnswer
			e.IsCorrect = rec.IsCorrect
			e.AnswerScore = rec.Score
		}
		entries = append(entries, e)
	}
	return entries
}

// buildFinalResults assembles the end-of-game summaries, ranked the same way
// as the scoreboard. Assumes the store lock is held.
func (l *Lobby) buildFinalResults() []FinalResult {
	results := make([]FinalResult, 0, len(l.Players))
	for _, p := range l.rankedPlayers() {
		cp := p.snapshot()
		results = append(results, FinalResult{
			ID:             cp.ID.String(),
			Name:           cp.Name,
			Avatar:         cp.Avatar,
			IsHost:         cp.IsHost,
			Score:          cp.Score,
			CorrectAnswers: cp.CorrectAnswers,
			TotalQuestions: cp.TotalQuestions,
			Answers:        cp.Answers,
		})
	}
	return results
}
