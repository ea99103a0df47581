package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/code-100-precent/LingLine/pkg/callflow"
	"github.com/code-100-precent/LingLine/pkg/logger"
	"github.com/code-100-precent/LingLine/pkg/notification"
	"github.com/code-100-precent/LingLine/pkg/response"
	"github.com/code-100-precent/LingLine/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

var (
	errInvalidPayload = errors.New("request body must be a JSON object")
	errPhoneRequired  = errors.New("phone_number is required")
)

// IncomingCall accepts a call event and answers before the call is processed.
func (h *Handlers) IncomingCall(c *gin.Context) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil || payload == nil {
		response.AbortWithStatusJSON(c, http.StatusBadRequest, errInvalidPayload)
		return
	}

	callee := cast.ToString(payload["callee"])
	if callee == "" {
		callee = cast.ToString(payload["to"])
	}
	ev := callflow.Event{
		Caller:    cast.ToString(payload["caller"]),
		Callee:    callee,
		Timestamp: cast.ToString(payload["timestamp"]),
		Payload:   payload,
	}
	callID := h.opts.Calls.Dispatch(h.opts.BaseCtx, ev)

	logger.Info("Inbound call accepted",
		zap.String("call_id", callID),
		zap.String("trace_id", uuid.NewString()),
		zap.String("caller", ev.Caller),
		zap.String("callee", ev.Callee))
	response.Success(c, "accepted", gin.H{"call_id": callID})
}

type callRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// MakeCall only reports the request; placing calls is left to the operator.
func (h *Handlers) MakeCall(c *gin.Context) {
	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.AbortWithStatusJSON(c, http.StatusBadRequest, errInvalidPayload)
		return
	}
	phone := utils.SanitizeInput(req.PhoneNumber)
	if phone == "" {
		response.AbortWithStatusJSON(c, http.StatusBadRequest, errPhoneRequired)
		return
	}

	logger.Info("Received call request", zap.String("phone_number", phone))
	if h.opts.Notifier != nil {
		h.opts.Notifier.Text(c.Request.Context(), fmt.Sprintf("Initiating call to %s", phone), notification.FormatPlain)
	}
	response.Success(c, fmt.Sprintf("Calling %s", phone), gin.H{"phone_number": phone})
}
