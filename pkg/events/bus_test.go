package events

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishReachesTypedAndWildcardHandlers(t *testing.T) {
	bus := NewEventBus()
	var mu sync.Mutex
	var got []string
	record := func(tag string) EventHandler {
		return func(e Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, tag+":"+e.Type)
			return nil
		}
	}
	bus.Subscribe(TypeCallStage, record("stage"))
	bus.Subscribe(Wildcard, record("all"))

	bus.Emit(TypeCallStage, map[string]interface{}{"stage": "greeting"}, "test")
	bus.Emit(TypeAgentState, nil, "test")
	bus.Wait()

	assert.ElementsMatch(t, []string{"stage:call.stage", "all:call.stage", "all:agent.state"}, got)
	assert.Len(t, bus.GetPublishedEventTypes(), 2)
}

func TestFailingHandlersDoNotStopOthers(t *testing.T) {
	bus := NewEventBus()
	var calls int
	var mu sync.Mutex
	bus.Subscribe(TypeCallStage, func(Event) error { return errors.New("boom") })
	bus.Subscribe(TypeCallStage, func(Event) error { panic("handler bug") })
	bus.Subscribe(TypeCallStage, func(Event) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	bus.Emit(TypeCallStage, nil, "test")
	bus.Wait()
	assert.Equal(t, 1, calls)

	bus.Unsubscribe(TypeCallStage)
	bus.Emit(TypeCallStage, nil, "test")
	bus.Wait()
	assert.Equal(t, 1, calls)
}

func TestNilBusDropsEvents(t *testing.T) {
	var bus *EventBus
	assert.NotPanics(t, func() {
		bus.Emit(TypeCallStage, nil, "test")
		bus.Wait()
	})
}
