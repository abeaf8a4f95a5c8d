package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventSetupRejected   EventType = "SETUP_REJECTED"
	EventPlanBuilt       EventType = "PLAN_BUILT"
	EventPatternMatched  EventType = "PATTERN_MATCHED"
	EventPolicyRejected  EventType = "POLICY_REJECTED"
	EventPipelineError   EventType = "PIPELINE_ERROR"
	EventEngineStarted   EventType = "ENGINE_STARTED"
	EventEngineStopped   EventType = "ENGINE_STOPPED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignalGenerated publishes a fully planned trading signal
func (eb *EventBus) PublishSignalGenerated(signalID, symbol, direction, pattern string, confidence, weightedScore float64) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"signal_id":      signalID,
			"symbol":         symbol,
			"direction":      direction,
			"pattern":        pattern,
			"confidence":     confidence,
			"weighted_score": weightedScore,
		},
	})
}

// PublishSetupRejected publishes a rejected setup with its reasons
func (eb *EventBus) PublishSetupRejected(symbol, stage string, reasons []string) {
	eb.Publish(Event{
		Type: EventSetupRejected,
		Data: map[string]interface{}{
			"symbol":  symbol,
			"stage":   stage,
			"reasons": reasons,
		},
	})
}

// PublishPlanBuilt publishes the sized execution plan of a signal
func (eb *EventBus) PublishPlanBuilt(symbol string, shares int, entryPrice, stopLoss, riskDollars float64) {
	eb.Publish(Event{
		Type: EventPlanBuilt,
		Data: map[string]interface{}{
			"symbol":       symbol,
			"shares":       shares,
			"entry_price":  entryPrice,
			"stop_loss":    stopLoss,
			"risk_dollars": riskDollars,
		},
	})
}

// PublishPipelineError publishes a pipeline failure
func (eb *EventBus) PublishPipelineError(symbol string, err error) {
	eb.Publish(Event{
		Type: EventPipelineError,
		Data: map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		},
	})
}
