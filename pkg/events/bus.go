package events

import (
	"sync"
	"time"

	"github.com/code-100-precent/LingLine/pkg/logger"
	"go.uber.org/zap"
)

// Event types
const (
	TypeCallStage    = "call.stage"
	TypeAgentState   = "agent.state"
	TypeNotifyFailed = "notify.failed"
	Wildcard         = "*"
)

// Event system event
type Event struct {
	Type      string                 `json:"type"`      // e.g. "call.stage", "agent.state"
	Timestamp time.Time              `json:"timestamp"` // Event timestamp
	Data      map[string]interface{} `json:"data"`      // Event data
	Source    string                 `json:"source"`    // Event source
}

// EventHandler event handler function
type EventHandler func(event Event) error

// EventBus event bus. Handlers run asynchronously; Wait blocks until the
// ones already dispatched have returned.
type EventBus struct {
	handlers       map[string][]EventHandler
	publishedTypes map[string]time.Time // first publish time per event type
	mu             sync.RWMutex
	inflight       sync.WaitGroup
}

func NewEventBus() *EventBus {
	return &EventBus{
		handlers:       make(map[string][]EventHandler),
		publishedTypes: make(map[string]time.Time),
	}
}

// Subscribe subscribes to events
func (bus *EventBus) Subscribe(eventType string, handler EventHandler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	bus.handlers[eventType] = append(bus.handlers[eventType], handler)
	logger.Debug("Event handler subscribed",
		zap.String("eventType", eventType))
}

// Unsubscribe removes all handlers for the type
func (bus *EventBus) Unsubscribe(eventType string) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	delete(bus.handlers, eventType)
	logger.Debug("Event handlers unsubscribed",
		zap.String("eventType", eventType))
}

// Publish publishes an event. A nil bus drops it.
func (bus *EventBus) Publish(event Event) {
	if bus == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	bus.mu.Lock()
	if _, exists := bus.publishedTypes[event.Type]; !exists {
		bus.publishedTypes[event.Type] = event.Timestamp
	}
	all := make([]EventHandler, 0, len(bus.handlers[event.Type])+len(bus.handlers[Wildcard]))
	all = append(all, bus.handlers[event.Type]...)
	all = append(all, bus.handlers[Wildcard]...)
	bus.mu.Unlock()

	if len(all) == 0 {
		logger.Debug("No handlers for event",
			zap.String("eventType", event.Type))
		return
	}

	for _, handler := range all {
		bus.inflight.Add(1)
		go func(h EventHandler) {
			defer bus.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Event handler panicked",
						zap.String("eventType", event.Type),
						zap.Any("panic", r))
				}
			}()
			if err := h(event); err != nil {
				logger.Error("Event handler failed",
					zap.String("eventType", event.Type),
					zap.Error(err))
			}
		}(handler)
	}
}

// Emit convenience method: publish event
func (bus *EventBus) Emit(eventType string, data map[string]interface{}, source string) {
	bus.Publish(Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Source:    source,
	})
}

// Wait blocks until every dispatched handler has returned.
func (bus *EventBus) Wait() {
	if bus == nil {
		return
	}
	bus.inflight.Wait()
}

// GetPublishedEventTypes gets all published event types
func (bus *EventBus) GetPublishedEventTypes() map[string]time.Time {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	result := make(map[string]time.Time, len(bus.publishedTypes))
	for k, v := range bus.publishedTypes {
		result[k] = v
	}
	return result
}
