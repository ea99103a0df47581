package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	handlers "github.com/code-100-precent/LingLine/internal/handler"
	"github.com/code-100-precent/LingLine/internal/listeners"
	"github.com/code-100-precent/LingLine/pkg/callflow"
	"github.com/code-100-precent/LingLine/pkg/config"
	"github.com/code-100-precent/LingLine/pkg/events"
	"github.com/code-100-precent/LingLine/pkg/logger"
	"github.com/code-100-precent/LingLine/pkg/metrics"
	"github.com/code-100-precent/LingLine/pkg/middleware"
	"github.com/code-100-precent/LingLine/pkg/notification"
	"github.com/code-100-precent/LingLine/pkg/recognizer"
	"github.com/code-100-precent/LingLine/pkg/recorder"
	"github.com/code-100-precent/LingLine/pkg/synthesizer"
	"github.com/code-100-precent/LingLine/pkg/useragent"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const source = "app"

// Startup messages sent to operators.
const (
	MsgAgentAlreadyRunning = "SIP client is already running."
	MsgAgentStarted        = "SIP client was successfully started by the service."
	MsgAgentStartFailed    = "Attempt to start SIP client failed."
)

// App owns every long-lived component. Fields are set by New in the order
// they are declared and released by Close in reverse.
type App struct {
	Config      *config.Config
	Metrics     *metrics.Metrics
	Bus         *events.EventBus
	Notifier    *notification.Channel
	Synthesizer synthesizer.Synthesizer
	Transcriber recognizer.TranscribeService
	Recorder    *recorder.Controller
	Retention   *recorder.Retention
	Agent       *useragent.Supervisor
	Calls       *callflow.Orchestrator
	Engine      *gin.Engine

	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error

	mu          sync.Mutex
	agentStart  sync.WaitGroup
	cancelStart context.CancelFunc
}

// New builds the application without starting the agent or the listener.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrConfig)
	}
	if err := logger.Init(&cfg.Log, cfg.Server.Mode); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{Config: cfg}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.Metrics = metrics.New()
	a.Bus = events.NewEventBus()

	notifier, err := notification.New(cfg.Notification)
	if err != nil {
		a.cancel()
		return nil, fmt.Errorf("init notification: %w", err)
	}
	a.Notifier = notification.NewChannel(notifier, cfg.Notification.Timeout)
	a.Notifier.OnFailure = func(name string, err error) {
		a.Bus.Emit(events.TypeNotifyFailed, map[string]interface{}{
			"notifier": name,
			"error":    err.Error(),
		}, source)
	}

	listeners.InitCallListeners(a.Bus, a.Metrics)

	if a.Synthesizer, err = synthesizer.New(cfg.Voice.TTS); err != nil {
		a.cancel()
		return nil, fmt.Errorf("init synthesizer: %w", err)
	}
	if a.Transcriber, err = recognizer.New(cfg.Voice.STT); err != nil {
		a.Synthesizer.Close()
		a.cancel()
		return nil, fmt.Errorf("init recognizer: %w", err)
	}

	if err := os.MkdirAll(cfg.Recording.Dir, 0o755); err != nil {
		logger.Warn("Failed to create recording directory", zap.String("dir", cfg.Recording.Dir), zap.Error(err))
	}
	a.Recorder = recorder.NewController(&recorder.ExecLauncher{
		Tool:   cfg.Recording.Tool,
		Device: cfg.Recording.Device,
		Args:   cfg.Recording.Args,
	})
	a.Retention, err = recorder.NewRetention(cfg.Recording.RetentionDays, cfg.Recording.RetentionSchedule,
		cfg.Recording.Dir, cfg.Voice.TTS.OutputDir)
	if err != nil {
		a.releaseVoice()
		a.cancel()
		return nil, err
	}

	a.Agent = useragent.NewSupervisor(cfg.SIP.Agent, useragent.Hooks{
		OnStateChange: func(from, to useragent.State) {
			a.Bus.Emit(events.TypeAgentState, map[string]interface{}{
				"from":  string(from),
				"to":    string(to),
				"gauge": to.Gauge(),
			}, source)
		},
		OnCrash: func(err error) {
			a.Bus.Emit(events.TypeAgentState, map[string]interface{}{
				"to":    string(useragent.StateFailed),
				"gauge": useragent.StateFailed.Gauge(),
				"crash": true,
				"error": err.Error(),
			}, source)
		},
	})
	listeners.InitAgentListeners(a.Bus, a.Metrics, a.Agent, a.Notifier)

	deps := callflow.Deps{
		Agent:       a.Agent,
		Recorder:    a.Recorder,
		Synthesizer: a.Synthesizer,
		Transcriber: a.Transcriber,
		Notifier:    a.Notifier,
		Bus:         a.Bus,
	}
	if archiver := recorder.NewArchiver(cfg.Recording.Storage); archiver != nil {
		deps.Archiver = archiver
	}
	a.Calls = callflow.New(cfg.Call, deps)

	mgr, err := middleware.NewMiddlewareManager(cfg.Middleware)
	if err != nil {
		a.releaseVoice()
		a.cancel()
		return nil, fmt.Errorf("init middleware: %w", err)
	}

	if cfg.Server.Mode != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	a.Engine = gin.New()
	handlers.NewHandlers(handlers.Options{
		APIPrefix:     cfg.Server.APIPrefix,
		MonitorPrefix: cfg.Server.MonitorPrefix,
		Info: handlers.Info{
			Name:        cfg.Server.Name,
			TTS:         string(a.Synthesizer.Provider()),
			STT:         string(a.Transcriber.Provider()),
			SIPIdentity: cfg.SIP.Identity,
			Notifier:    a.Notifier.Name(),
		},
		Calls:      a.Calls,
		Agent:      a.Agent,
		Notifier:   a.Notifier,
		Middleware: mgr,
		Metrics:    a.Metrics,
		BaseCtx:    a.ctx,
	}).Register(a.Engine)

	a.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *App) releaseVoice() {
	if a.Synthesizer != nil {
		a.Synthesizer.Close()
	}
	if a.Transcriber != nil {
		a.Transcriber.Close()
	}
}

// StartAgent writes the agent config, starts the process when needed and
// reports the outcome to operators. It returns the message that was sent, or
// "" when ctx ended first.
func (a *App) StartAgent(ctx context.Context) string {
	if a.Agent.Running() {
		a.Notifier.Text(ctx, MsgAgentAlreadyRunning, notification.FormatPlain)
		return MsgAgentAlreadyRunning
	}
	if err := a.Agent.EnsureConfigured(); err != nil {
		logger.Warn("Failed to update SIP client config", zap.Error(err))
	}

	msg := MsgAgentStarted
	if err := a.Agent.Start(ctx); err != nil {
		logger.Error("Failed to start SIP client", zap.Error(err))
		msg = MsgAgentStartFailed
	} else if !a.Agent.AwaitRegistration(ctx, a.Config.SIP.RegistrationTimeout) {
		if ctx.Err() != nil {
			logger.Info("SIP client startup interrupted", zap.String("state", string(a.Agent.State())))
			return ""
		}
		logger.Warn("SIP client did not register in time",
			zap.Duration("timeout", a.Config.SIP.RegistrationTimeout))
		msg = MsgAgentStartFailed
	}
	a.Notifier.Text(ctx, msg, notification.FormatPlain)
	return msg
}

// startAgentAsync runs StartAgent next to the HTTP server so a slow
// registration never holds back webhooks. Close cancels and waits for it.
func (a *App) startAgentAsync(ctx context.Context) {
	startCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancelStart = cancel
	a.mu.Unlock()

	a.agentStart.Add(1)
	go func() {
		defer a.agentStart.Done()
		defer cancel()
		a.StartAgent(startCtx)
	}()
}

// Run starts the background jobs and serves HTTP until ctx is done or the
// listener fails, then closes the application.
func (a *App) Run(ctx context.Context) error {
	a.Retention.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", a.Config.Server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if a.Config.SIP.Autostart {
		a.startAgentAsync(ctx)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down", zap.Error(context.Cause(ctx)))
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("http server: %w", err)
			logger.Error("HTTP server stopped", zap.Error(err))
		}
	}
	return errors.Join(serveErr, a.Close())
}

// Close is the single shutdown path. It is safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		timeout := a.Config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var errs []error
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		a.mu.Lock()
		cancelStart := a.cancelStart
		a.mu.Unlock()
		if cancelStart != nil {
			cancelStart()
		}
		a.agentStart.Wait()
		if err := a.Calls.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
		a.cancel()
		if err := a.Agent.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("agent shutdown: %w", err))
		}
		a.Retention.Stop()
		a.Bus.Wait()
		a.releaseVoice()

		a.closeErr = errors.Join(errs...)
		if a.closeErr != nil {
			logger.Error("Shutdown finished with errors", zap.Error(a.closeErr))
		} else {
			logger.Info("Shutdown complete")
		}
		logger.Sync()
	})
	return a.closeErr
}
