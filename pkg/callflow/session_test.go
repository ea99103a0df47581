package callflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	arrived := time.Date(2024, 1, 1, 10, 0, 0, 123456789, time.Local)
	s := NewSession(Event{Caller: "  +7123\n", Payload: map[string]interface{}{"to": "+7999"}}, arrived)

	assert.Equal(t, "20240101_100000.123456789", s.ID)
	assert.Equal(t, "+7123", s.Caller)
	assert.Equal(t, Unknown, s.Callee)
	assert.Equal(t, arrived.Format(time.RFC3339), s.Timestamp)
	assert.Equal(t, StageReceived, s.Stage)
	assert.JSONEq(t, `{"to":"+7999"}`, s.Payload)
}

func TestAdvance(t *testing.T) {
	s := NewSession(Event{}, time.Now())

	require.NoError(t, s.Advance(StageGreeting))
	require.NoError(t, s.Advance(StageRecording))
	assert.ErrorIs(t, s.Advance(StageGreeting), ErrStageRegression)
	assert.ErrorIs(t, s.Advance(StageRecording), ErrStageRegression)

	// transcription may be skipped
	require.NoError(t, s.Advance(StageNotified))
	assert.ErrorIs(t, s.Advance(StageFailed), ErrStageRegression)
}

func TestAnyStageMayFail(t *testing.T) {
	for _, st := range []Stage{StageReceived, StageGreeting, StageRecording, StageTranscribing} {
		s := NewSession(Event{}, time.Now())
		s.Stage = st
		require.NoError(t, s.Advance(StageFailed), st)
		assert.True(t, s.Stage.Terminal())
		assert.ErrorIs(t, s.Advance(StageNotified), ErrStageRegression)
	}
}

func TestMessagesEscapeMarkdown(t *testing.T) {
	s := NewSession(Event{Caller: "user_1*"}, time.Now())
	s.Transcript = "hi_there"

	assert.Contains(t, summaryMessage(s), `user\_1\*`)
	assert.Contains(t, transcriptMessage(s), `hi\_there`)
}
