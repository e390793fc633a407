// internal/cache/redis_test.go
package cache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizzatron/quizzatron/internal/quiz"
)

func testPublisher(t *testing.T) (*Publisher, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	p, err := NewPublisher(mr.Addr(), "", logger)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, mr
}

func TestNewPublisherDefaultsQueueName(t *testing.T) {
	p, _ := testPublisher(t)
	assert.Equal(t, DefaultQueueName, p.Queue())
}

func TestNewPublisherUnreachable(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	_, err := NewPublisher("127.0.0.1:1", "", logger)
	require.Error(t, err)
}

func TestRecordGamePushesToQueue(t *testing.T) {
	p, mr := testPublisher(t)

	rec := quiz.GameRecord{
		LobbyCode:  "AB23CD",
		FinishedAt: 1756600000,
		Settings:   quiz.DefaultSettings(),
		Players: []quiz.FinalResult{
			{Name: "Alice", Score: 250, CorrectAnswers: 3, TotalQuestions: 3},
			{Name: "Bob", Score: 100, CorrectAnswers: 1, TotalQuestions: 3},
		},
	}
	require.NoError(t, p.RecordGame(context.Background(), rec))

	raw, err := mr.Lpop(DefaultQueueName)
	require.NoError(t, err)

	var got quiz.GameRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, "AB23CD", got.LobbyCode)
	require.Len(t, got.Players, 2)
	assert.Equal(t, "Alice", got.Players[0].Name)
	assert.Equal(t, 250, got.Players[0].Score)
}

func TestRecordGamePreservesOrder(t *testing.T) {
	p, mr := testPublisher(t)

	for _, code := range []string{"AAAA22", "BBBB33", "CCCC44"} {
		require.NoError(t, p.RecordGame(context.Background(), quiz.GameRecord{LobbyCode: code}))
	}

	for _, want := range []string{"AAAA22", "BBBB33", "CCCC44"} {
		raw, err := mr.Lpop(DefaultQueueName)
		require.NoError(t, err)
		var got quiz.GameRecord
		require.NoError(t, json.Unmarshal([]byte(raw), &got))
		assert.Equal(t, want, got.LobbyCode)
	}
}
