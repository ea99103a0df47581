package listeners

import (
	"context"
	"fmt"

	"github.com/code-100-precent/LingLine/pkg/events"
	"github.com/code-100-precent/LingLine/pkg/logger"
	"github.com/code-100-precent/LingLine/pkg/metrics"
	"github.com/code-100-precent/LingLine/pkg/notification"
	"github.com/code-100-precent/LingLine/pkg/useragent"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// Reporter is the notification side of the agent listener.
type Reporter interface {
	Text(ctx context.Context, message string, format notification.Format)
}

// StateSource is the live agent state. Events can be handled out of order, so
// the gauge follows the source and not the event payload.
type StateSource interface {
	State() useragent.State
}

// InitAgentListeners tracks the SIP agent state and tells operators about
// crashes. With a nil agent the gauge falls back to the event payload.
func InitAgentListeners(bus *events.EventBus, m *metrics.Metrics, agent StateSource, notify Reporter) {
	logger.Info("Initializing agent listeners...")

	bus.Subscribe(events.TypeAgentState, func(e events.Event) error {
		from := cast.ToString(e.Data["from"])
		to := cast.ToString(e.Data["to"])
		if agent != nil {
			m.AgentState.Set(agent.State().Gauge())
		} else {
			m.AgentState.Set(cast.ToFloat64(e.Data["gauge"]))
		}
		logger.Info("SIP agent state changed", zap.String("from", from), zap.String("to", to))

		if !cast.ToBool(e.Data["crash"]) {
			return nil
		}
		m.AgentCrashes.Inc()
		if notify != nil {
			notify.Text(context.Background(),
				fmt.Sprintf("SIP client stopped unexpectedly: %s", cast.ToString(e.Data["error"])),
				notification.FormatPlain)
		}
		return nil
	})
}
