package handlers

import (
	"context"

	"github.com/code-100-precent/LingLine/pkg/callflow"
	"github.com/code-100-precent/LingLine/pkg/logger"
	"github.com/code-100-precent/LingLine/pkg/metrics"
	"github.com/code-100-precent/LingLine/pkg/middleware"
	"github.com/code-100-precent/LingLine/pkg/notification"
	"github.com/code-100-precent/LingLine/pkg/useragent"
	"github.com/gin-gonic/gin"
)

// Dispatcher accepts inbound calls for asynchronous processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev callflow.Event) string
	Active() int64
}

// AgentStatus reports the SIP agent.
type AgentStatus interface {
	Status() useragent.Status
}

// Notifier is the best-effort operator channel.
type Notifier interface {
	Text(ctx context.Context, message string, format notification.Format)
}

// Info is the static part of the status response.
type Info struct {
	Name        string `json:"name"`
	TTS         string `json:"tts"`
	STT         string `json:"stt"`
	SIPIdentity string `json:"sip_identity"`
	Notifier    string `json:"notifier"`
}

// Options wires the handlers to the rest of the process.
type Options struct {
	APIPrefix     string
	MonitorPrefix string
	Info          Info
	Calls         Dispatcher
	Agent         AgentStatus
	Notifier      Notifier
	Middleware    *middleware.MiddlewareManager
	Metrics       *metrics.Metrics
	// BaseCtx outlives the request; calls run under it.
	BaseCtx context.Context
}

type Handlers struct {
	opts Options
}

func NewHandlers(opts Options) *Handlers {
	if opts.BaseCtx == nil {
		opts.BaseCtx = context.Background()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api"
	}
	return &Handlers{opts: opts}
}

// Register mounts every route on engine.
func (h *Handlers) Register(engine *gin.Engine) {
	engine.Use(middleware.RecoveryMiddleware(logger.Lg), middleware.LoggerMiddleware(logger.Lg))
	if h.opts.Metrics != nil {
		engine.Use(middleware.MetricsMiddleware(h.opts.Metrics))
		if h.opts.MonitorPrefix != "" {
			engine.GET(h.opts.MonitorPrefix, gin.WrapH(h.opts.Metrics.Handler()))
		}
	}

	r := engine.Group(h.opts.APIPrefix)
	r.GET("/status", h.Status)

	hooks := r.Group("")
	if h.opts.Middleware != nil {
		h.opts.Middleware.ApplyWebhookMiddlewares(hooks)
	} else {
		hooks.Use(middleware.BearerAuth(""))
	}
	hooks.POST("/call/incoming", h.IncomingCall)
	hooks.POST("/call", h.MakeCall)
}
