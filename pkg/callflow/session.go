package callflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/code-100-precent/LingLine/pkg/utils"
)

// Stage 通话阶段
type Stage string

const (
	StageReceived     Stage = "received"
	StageGreeting     Stage = "greeting"
	StageRecording    Stage = "recording"
	StageTranscribing Stage = "transcribing"
	StageNotified     Stage = "notified"
	StageFailed       Stage = "failed"
)

// IDLayout formats the arrival time into a call id.
const IDLayout = "20060102_150405.000000000"

// Unknown replaces caller or callee fields the event left out.
const Unknown = "unknown"

// ErrStageRegression is returned when a session is moved backwards or out of
// a terminal stage.
var ErrStageRegression = errors.New("call stage regression")

var stageOrder = map[Stage]int{
	StageReceived:     0,
	StageGreeting:     1,
	StageRecording:    2,
	StageTranscribing: 3,
	StageNotified:     4,
}

// Terminal reports whether no further transition is allowed.
func (s Stage) Terminal() bool {
	return s == StageNotified || s == StageFailed
}

// Event is an inbound call as delivered by the webhook.
type Event struct {
	Caller    string                 `json:"caller"`
	Callee    string                 `json:"callee"`
	Timestamp string                 `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Session is the state of one call. It belongs to the goroutine running it.
type Session struct {
	ID             string
	Caller         string
	Callee         string
	Timestamp      string
	ArrivedAt      time.Time
	Stage          Stage
	RecordingPath  string
	RecordingBytes int64
	Transcript     string
	ArchiveURL     string
	Payload        string
	Err            error

	stageAt     time.Time
	summarySent bool
}

// NewSession derives the call id from the arrival time.
func NewSession(ev Event, arrived time.Time) *Session {
	s := &Session{
		ID:        arrived.Format(IDLayout),
		Caller:    utils.SanitizeOrDefault(ev.Caller, Unknown),
		Callee:    utils.SanitizeOrDefault(ev.Callee, Unknown),
		Timestamp: utils.SanitizeOrDefault(ev.Timestamp, arrived.Format(time.RFC3339)),
		ArrivedAt: arrived,
		Stage:     StageReceived,
		stageAt:   arrived,
	}
	if len(ev.Payload) > 0 {
		if raw, err := json.Marshal(ev.Payload); err == nil {
			s.Payload = string(raw)
		}
	}
	return s
}

// Advance moves the session forward. Any non-terminal stage may fail.
func (s *Session) Advance(to Stage) error {
	if s.Stage.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrStageRegression, s.Stage)
	}
	if to != StageFailed {
		next, ok := stageOrder[to]
		if !ok {
			return fmt.Errorf("unknown stage %q", to)
		}
		if next <= stageOrder[s.Stage] {
			return fmt.Errorf("%w: %s -> %s", ErrStageRegression, s.Stage, to)
		}
	}
	s.Stage = to
	return nil
}
