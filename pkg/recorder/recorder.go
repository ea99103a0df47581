package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/code-100-precent/LingLine/pkg/logger"
	"github.com/code-100-precent/LingLine/pkg/media"
	"go.uber.org/zap"
)

// ErrRecordingUnavailable the capture tool or device is missing, or the
// capture produced nothing usable.
var ErrRecordingUnavailable = errors.New("recording unavailable")

// Config 录音配置
type Config struct {
	Tool          string        `env:"RECORDING_TOOL"`
	Device        string        `env:"RECORDING_DEVICE"`
	Args          []string      `env:"RECORDING_ARGS"`
	Dir           string        `env:"RECORDING_DIR"`
	MaxDuration   time.Duration `env:"RECORDING_MAX_SECONDS"`
	Grace         time.Duration `env:"RECORDING_GRACE_SECONDS"`
	RetentionDays int           `env:"RECORDING_RETENTION_DAYS"`
	// RetentionSchedule is a cron spec for the prune job.
	RetentionSchedule string `env:"RECORDING_RETENTION_SCHEDULE"`
	Storage           StorageConfig
}

// Handle is one in-flight capture.
type Handle struct {
	Path      string
	Max       time.Duration
	StartedAt time.Time

	capture Capture
	release func()
}

// Result is the outcome of a capture.
type Result struct {
	OK       bool
	Artifact *media.Artifact
	Size     int64
	Duration time.Duration
	Err      error
}

// Controller serializes captures on one line: the device is held from Start
// until Await returns.
type Controller struct {
	launcher Launcher
	line     chan struct{}
}

func NewController(launcher Launcher) *Controller {
	return &Controller{launcher: launcher, line: make(chan struct{}, 1)}
}

// Start waits for the line to be free (bounded by ctx) and launches a capture.
func (c *Controller) Start(ctx context.Context, path string, max time.Duration) (*Handle, error) {
	select {
	case c.line <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for capture device: %v", ErrRecordingUnavailable, ctx.Err())
	}
	var once sync.Once
	release := func() { once.Do(func() { <-c.line }) }

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		release()
		return nil, fmt.Errorf("%w: %v", ErrRecordingUnavailable, err)
	}
	capture, err := c.launcher.Launch(path, max)
	if err != nil {
		release()
		if !errors.Is(err, ErrRecordingUnavailable) {
			err = fmt.Errorf("%w: %v", ErrRecordingUnavailable, err)
		}
		logger.Warn("recording start failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	logger.Info("recording started", zap.String("path", path), zap.Duration("max", max))
	return &Handle{
		Path:      path,
		Max:       max,
		StartedAt: time.Now(),
		capture:   capture,
		release:   release,
	}, nil
}

// Await waits up to max+grace from the start of the capture, kills it if
// still running, and always waits for it to exit before releasing the line.
func (c *Controller) Await(h *Handle, grace time.Duration) Result {
	if h == nil {
		return Result{Err: ErrRecordingUnavailable}
	}
	defer h.release()

	killed := false
	wait := time.Until(h.StartedAt.Add(h.Max + grace))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-h.capture.Done():
	case <-timer.C:
		logger.Warn("recording overran, killing capture", zap.String("path", h.Path))
		if err := h.capture.Kill(); err != nil {
			logger.Error("kill capture failed", zap.String("path", h.Path), zap.Error(err))
		}
		<-h.capture.Done()
		killed = true
	}

	// a capture we killed still leaves a usable file behind
	if err := h.capture.Err(); err != nil && !killed {
		return c.fail(h, fmt.Errorf("%w: capture exited: %v", ErrRecordingUnavailable, err))
	}
	artifact, err := media.NewArtifact(h.Path, media.KindRecording)
	if err != nil {
		return c.fail(h, fmt.Errorf("%w: %v", ErrRecordingUnavailable, err))
	}
	if artifact.Size == 0 {
		return c.fail(h, fmt.Errorf("%w: empty recording", ErrRecordingUnavailable))
	}
	artifact.Expected = h.Max

	logger.Info("recording completed",
		zap.String("path", h.Path),
		zap.Int64("size", artifact.Size),
		zap.Duration("duration", artifact.Actual),
		zap.Bool("killed", killed))
	return Result{OK: true, Artifact: artifact, Size: artifact.Size, Duration: artifact.Actual}
}

func (c *Controller) fail(h *Handle, err error) Result {
	var size int64
	if info, statErr := os.Stat(h.Path); statErr == nil {
		size = info.Size()
	}
	logger.Warn("recording failed", zap.String("path", h.Path), zap.Error(err))
	return Result{Size: size, Err: err}
}
