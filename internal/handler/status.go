package handlers

import (
	"github.com/code-100-precent/LingLine/pkg/response"
	"github.com/gin-gonic/gin"
)

// Status returns the configuration summary and agent state. It has no side
// effects.
func (h *Handlers) Status(c *gin.Context) {
	data := gin.H{
		"name":         h.opts.Info.Name,
		"tts":          h.opts.Info.TTS,
		"stt":          h.opts.Info.STT,
		"sip_identity": h.opts.Info.SIPIdentity,
		"notifier":     h.opts.Info.Notifier,
	}
	if h.opts.Agent != nil {
		data["agent"] = h.opts.Agent.Status()
	}
	if h.opts.Calls != nil {
		data["active_calls"] = h.opts.Calls.Active()
	}
	if h.opts.Middleware != nil {
		data["middleware"] = h.opts.Middleware.GetStats()
	}
	response.Success(c, "ok", data)
}
