package listeners

import (
	"context"
	"sync"
	"testing"

	"github.com/code-100-precent/LingLine/pkg/events"
	"github.com/code-100-precent/LingLine/pkg/metrics"
	"github.com/code-100-precent/LingLine/pkg/notification"
	"github.com/code-100-precent/LingLine/pkg/useragent"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedState useragent.State

func (f fixedState) State() useragent.State { return useragent.State(f) }

type recordingReporter struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingReporter) Text(_ context.Context, message string, _ notification.Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func TestCallListenersUpdateMetrics(t *testing.T) {
	bus := events.NewEventBus()
	m := metrics.New()
	InitCallListeners(bus, m)

	bus.Emit(events.TypeCallStage, map[string]interface{}{"stage": "received"}, "test")
	bus.Wait()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveCalls))

	bus.Emit(events.TypeCallStage, map[string]interface{}{
		"stage": "transcribing", "from": "recording", "elapsed_seconds": 12.5, "recording_bytes": int64(96044),
	}, "test")
	bus.Emit(events.TypeCallStage, map[string]interface{}{
		"stage": "notified", "from": "transcribing", "elapsed_seconds": 2.0, "total_seconds": 20.0,
	}, "test")
	bus.Emit(events.TypeNotifyFailed, map[string]interface{}{"notifier": "slack"}, "test")
	bus.Wait()

	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveCalls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallsTotal.WithLabelValues("notified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationFailure.WithLabelValues("slack")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.StageDuration))
}

func TestAgentListenerReportsCrash(t *testing.T) {
	bus := events.NewEventBus()
	m := metrics.New()
	r := &recordingReporter{}
	InitAgentListeners(bus, m, nil, r)

	bus.Emit(events.TypeAgentState, map[string]interface{}{"from": "starting", "to": "registered", "gauge": 2.0}, "test")
	bus.Wait()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AgentState))
	assert.Empty(t, r.messages)

	bus.Emit(events.TypeAgentState, map[string]interface{}{
		"from": "registered", "to": "failed", "gauge": 3.0, "crash": true, "error": "exit status 1",
	}, "test")
	bus.Wait()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AgentCrashes))
	require.Len(t, r.messages, 1)
	assert.Contains(t, r.messages[0], "exit status 1")
}

func TestAgentGaugeFollowsLiveState(t *testing.T) {
	for i := 0; i < 50; i++ {
		bus := events.NewEventBus()
		m := metrics.New()
		InitAgentListeners(bus, m, fixedState(useragent.StateRegistered), nil)

		// handlers run concurrently, so the starting event may land last
		bus.Emit(events.TypeAgentState, map[string]interface{}{
			"from": "stopped", "to": "starting", "gauge": useragent.StateStarting.Gauge(),
		}, "test")
		bus.Emit(events.TypeAgentState, map[string]interface{}{
			"from": "starting", "to": "registered", "gauge": useragent.StateRegistered.Gauge(),
		}, "test")
		bus.Wait()
		require.Equal(t, useragent.StateRegistered.Gauge(), testutil.ToFloat64(m.AgentState), "iteration %d", i)
	}
}
