package listeners

import (
	"github.com/code-100-precent/LingLine/pkg/events"
	"github.com/code-100-precent/LingLine/pkg/logger"
	"github.com/code-100-precent/LingLine/pkg/metrics"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// InitCallListeners feeds call stage events into the metrics.
func InitCallListeners(bus *events.EventBus, m *metrics.Metrics) {
	logger.Info("Initializing call listeners...")

	bus.Subscribe(events.TypeCallStage, func(e events.Event) error {
		stage := cast.ToString(e.Data["stage"])
		if from := cast.ToString(e.Data["from"]); from != "" {
			m.StageDuration.WithLabelValues(from).Observe(cast.ToFloat64(e.Data["elapsed_seconds"]))
		}

		switch stage {
		case "received":
			m.ActiveCalls.Inc()
		case "transcribing":
			m.RecordingBytes.Observe(cast.ToFloat64(e.Data["recording_bytes"]))
		case "notified", "failed":
			m.ActiveCalls.Dec()
			m.CallsTotal.WithLabelValues(stage).Inc()
			m.CallDuration.Observe(cast.ToFloat64(e.Data["total_seconds"]))
		}
		logger.Debug("Call stage",
			zap.String("call_id", cast.ToString(e.Data["call_id"])),
			zap.String("stage", stage))
		return nil
	})

	bus.Subscribe(events.TypeNotifyFailed, func(e events.Event) error {
		m.NotificationFailure.WithLabelValues(cast.ToString(e.Data["notifier"])).Inc()
		return nil
	})
}
