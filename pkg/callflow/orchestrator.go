package callflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/code-100-precent/LingLine/pkg/events"
	"github.com/code-100-precent/LingLine/pkg/logger"
	"github.com/code-100-precent/LingLine/pkg/media"
	"github.com/code-100-precent/LingLine/pkg/notification"
	"github.com/code-100-precent/LingLine/pkg/recognizer"
	"github.com/code-100-precent/LingLine/pkg/recorder"
	"github.com/code-100-precent/LingLine/pkg/synthesizer"
	"go.uber.org/zap"
)

// DefaultPlaybackTemplate plays a file into the call through baresip's
// aufile audio source.
const DefaultPlaybackTemplate = "/ausrc aufile,%s"

// Config 通话编排配置
type Config struct {
	Greeting         string        `env:"GREETING_TEXT"`
	PlaybackTemplate string        `env:"PLAYBACK_TEMPLATE"`
	RecordingDir     string        `env:"RECORDING_DIR"`
	MaxDuration      time.Duration `env:"RECORDING_MAX_SECONDS"`
	Grace            time.Duration `env:"RECORDING_GRACE_SECONDS"`
	// LineTimeout bounds the wait for a busy capture device.
	LineTimeout     time.Duration `env:"RECORDING_LINE_TIMEOUT"`
	AttachRecording bool          `env:"ATTACH_RECORDING"`
}

func (c *Config) withDefaults() {
	if c.PlaybackTemplate == "" {
		c.PlaybackTemplate = DefaultPlaybackTemplate
	}
	if c.RecordingDir == "" {
		c.RecordingDir = "audio/recordings"
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 60 * time.Second
	}
	if c.Grace <= 0 {
		c.Grace = 5 * time.Second
	}
	if c.LineTimeout <= 0 {
		c.LineTimeout = c.MaxDuration + c.Grace
	}
}

// Player sends text commands to the SIP agent.
type Player interface {
	SendCommand(line string) error
}

// Capturer records the line.
type Capturer interface {
	Start(ctx context.Context, path string, max time.Duration) (*recorder.Handle, error)
	Await(h *recorder.Handle, grace time.Duration) recorder.Result
}

// Reporter delivers operator notifications without returning errors.
type Reporter interface {
	Text(ctx context.Context, message string, format notification.Format)
	Document(ctx context.Context, path, caption string)
}

// Deps are the collaborators of an Orchestrator. Nil members degrade the
// matching stage.
type Deps struct {
	Agent       Player
	Recorder    Capturer
	Synthesizer synthesizer.Synthesizer
	Transcriber recognizer.TranscribeService
	Notifier    Reporter
	Archiver    recorder.Archiver
	Bus         *events.EventBus
}

// Orchestrator drives each inbound call through its stages.
type Orchestrator struct {
	cfg  Config
	deps Deps

	wg     sync.WaitGroup
	active atomic.Int64
	now    func() time.Time
}

func New(cfg Config, deps Deps) *Orchestrator {
	cfg.withDefaults()
	if deps.Notifier == nil {
		deps.Notifier = notification.NewChannel(nil, 0)
	}
	return &Orchestrator{cfg: cfg, deps: deps, now: time.Now}
}

// Active is the number of calls in flight.
func (o *Orchestrator) Active() int64 {
	return o.active.Load()
}

// Dispatch runs the call in its own goroutine and returns the call id.
func (o *Orchestrator) Dispatch(ctx context.Context, ev Event) string {
	s := NewSession(ev, o.now())
	o.wg.Add(1)
	o.active.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.active.Add(-1)
		o.run(ctx, s)
	}()
	return s.ID
}

// Wait blocks until in-flight calls finish or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%d calls still in flight: %w", o.active.Load(), ctx.Err())
	}
}

// Handle runs a call to completion on the calling goroutine.
func (o *Orchestrator) Handle(ctx context.Context, ev Event) *Session {
	s := NewSession(ev, o.now())
	o.active.Add(1)
	defer o.active.Add(-1)
	o.run(ctx, s)
	return s
}

func (o *Orchestrator) run(ctx context.Context, s *Session) {
	log := logger.Lg.With(
		zap.String("call_id", s.ID),
		zap.String("caller", s.Caller),
		zap.String("callee", s.Callee))
	log.Info("call received", zap.String("stage", string(s.Stage)))
	o.publish(s, "")

	defer func() {
		if r := recover(); r != nil {
			log.Error("call pipeline panicked", zap.Any("panic", r), zap.Stack("stack"))
			o.fail(ctx, s, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := o.pipeline(ctx, s, log); err != nil {
		log.Error("call pipeline failed", zap.Error(err))
		o.fail(ctx, s, err)
	}
}

func (o *Orchestrator) pipeline(ctx context.Context, s *Session, log *zap.Logger) error {
	if err := o.advance(s, StageGreeting); err != nil {
		return err
	}
	greeting := o.greet(ctx, log)

	if err := o.advance(s, StageRecording); err != nil {
		return err
	}
	if greeting != nil {
		o.play(greeting, log)
	}
	handle, err := o.startRecording(ctx, s)
	if err != nil {
		log.Warn("recording not started", zap.Error(err))
	}

	o.sendSummary(ctx, s)

	artifact := o.awaitRecording(handle, err, log)
	if artifact == nil {
		s.Transcript = NoRecording
	} else {
		s.RecordingPath = artifact.Path
		s.RecordingBytes = artifact.Size
		if err := o.advance(s, StageTranscribing); err != nil {
			return err
		}
		s.Transcript = o.transcribe(ctx, artifact, log)
	}

	if err := o.advance(s, StageNotified); err != nil {
		return err
	}
	o.deliver(ctx, s, log)
	log.Info("call completed", zap.Duration("elapsed", o.now().Sub(s.ArrivedAt)))
	return nil
}

func (o *Orchestrator) greet(ctx context.Context, log *zap.Logger) *media.Artifact {
	if o.deps.Synthesizer == nil || strings.TrimSpace(o.cfg.Greeting) == "" {
		log.Info("greeting skipped: no synthesizer or greeting text")
		return nil
	}
	artifact, err := o.deps.Synthesizer.Synthesize(ctx, o.cfg.Greeting)
	if err != nil {
		if errors.Is(err, synthesizer.ErrSynthesisUnavailable) {
			log.Info("greeting skipped", zap.Error(err))
		} else {
			log.Warn("greeting synthesis failed", zap.Error(err))
		}
		return nil
	}
	return artifact
}

func (o *Orchestrator) play(greeting *media.Artifact, log *zap.Logger) {
	if o.deps.Agent == nil {
		return
	}
	path, err := filepath.Abs(greeting.Path)
	if err != nil {
		path = greeting.Path
	}
	if err := o.deps.Agent.SendCommand(fmt.Sprintf(o.cfg.PlaybackTemplate, path)); err != nil {
		log.Warn("greeting playback failed", zap.Error(err))
		return
	}
	log.Info("greeting playback requested", zap.String("path", path))
}

func (o *Orchestrator) startRecording(ctx context.Context, s *Session) (*recorder.Handle, error) {
	if o.deps.Recorder == nil {
		return nil, recorder.ErrRecordingUnavailable
	}
	lineCtx, cancel := context.WithTimeout(ctx, o.cfg.LineTimeout)
	defer cancel()
	path := filepath.Join(o.cfg.RecordingDir, s.ID+".wav")
	return o.deps.Recorder.Start(lineCtx, path, o.cfg.MaxDuration)
}

func (o *Orchestrator) awaitRecording(h *recorder.Handle, startErr error, log *zap.Logger) *media.Artifact {
	if startErr != nil || h == nil {
		return nil
	}
	res := o.deps.Recorder.Await(h, o.cfg.Grace)
	if !res.OK || res.Artifact == nil {
		log.Warn("recording unavailable", zap.Error(res.Err), zap.Int64("size", res.Size))
		return nil
	}
	log.Info("recording ready",
		zap.String("path", res.Artifact.Path),
		zap.Int64("size", res.Size),
		zap.Duration("duration", res.Duration))
	return res.Artifact
}

func (o *Orchestrator) transcribe(ctx context.Context, artifact *media.Artifact, log *zap.Logger) string {
	if o.deps.Transcriber == nil {
		return recognizer.Placeholder
	}
	text, err := o.deps.Transcriber.Transcribe(ctx, artifact)
	if err != nil {
		log.Warn("transcription failed", zap.Error(err))
		return recognizer.Placeholder
	}
	if strings.TrimSpace(text) == "" {
		return recognizer.Placeholder
	}
	return text
}

func (o *Orchestrator) sendSummary(ctx context.Context, s *Session) {
	if s.summarySent {
		return
	}
	s.summarySent = true
	o.deps.Notifier.Text(ctx, summaryMessage(s), notification.FormatMarkdown)
}

// deliver archives the recording, then sends the transcript with the archive
// link and the recording itself.
func (o *Orchestrator) deliver(ctx context.Context, s *Session, log *zap.Logger) {
	if s.RecordingPath != "" && o.deps.Archiver != nil {
		url, err := o.deps.Archiver.Archive(ctx, s.RecordingPath)
		if err != nil {
			log.Warn("recording archive failed", zap.Error(err))
		} else {
			s.ArchiveURL = url
			log.Info("recording archived", zap.String("url", url))
		}
	}
	o.deps.Notifier.Text(ctx, transcriptMessage(s), notification.FormatMarkdown)
	if s.RecordingPath != "" && o.cfg.AttachRecording {
		o.deps.Notifier.Document(ctx, s.RecordingPath, attachmentCaption(s))
	}
}

// fail moves the session to Failed and still reports whatever it gathered.
func (o *Orchestrator) fail(ctx context.Context, s *Session, err error) {
	if s.Stage.Terminal() {
		// everything was already reported
		if s.Err == nil {
			s.Err = err
		}
		return
	}
	s.Err = err
	from := s.Stage
	s.Stage = StageFailed
	o.publish(s, from)
	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("failure report panicked", zap.String("call_id", s.ID), zap.Any("panic", r))
			}
		}()
		o.sendSummary(ctx, s)
		o.deps.Notifier.Text(ctx, transcriptMessage(s), notification.FormatMarkdown)
		if o.cfg.AttachRecording && s.RecordingPath != "" {
			o.deps.Notifier.Document(ctx, s.RecordingPath, attachmentCaption(s))
		}
	}()
}

func (o *Orchestrator) advance(s *Session, to Stage) error {
	from := s.Stage
	if err := s.Advance(to); err != nil {
		return err
	}
	o.publish(s, from)
	return nil
}

func (o *Orchestrator) publish(s *Session, from Stage) {
	now := o.now()
	data := map[string]interface{}{
		"call_id": s.ID,
		"caller":  s.Caller,
		"callee":  s.Callee,
		"stage":   string(s.Stage),
	}
	if from != "" {
		data["from"] = string(from)
		data["elapsed_seconds"] = now.Sub(s.stageAt).Seconds()
	}
	if s.Stage == StageTranscribing {
		data["recording_bytes"] = s.RecordingBytes
	}
	if s.Stage.Terminal() {
		data["total_seconds"] = now.Sub(s.ArrivedAt).Seconds()
	}
	s.stageAt = now
	o.deps.Bus.Emit(events.TypeCallStage, data, "callflow")
}
