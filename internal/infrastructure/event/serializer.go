package event

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/marketplace/returns/internal/domain/returns"
	"github.com/marketplace/returns/internal/domain/shared"
)

// EventFactory returns an empty event to unmarshal a payload into
type EventFactory func() shared.DomainEvent

// EventSerializer encodes domain events as JSON outbox payloads and decodes
// them again by event type
type EventSerializer struct {
	mu        sync.RWMutex
	factories map[string]EventFactory
}

// NewEventSerializer creates a serializer with no registered types
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{factories: make(map[string]EventFactory)}
}

// Register maps an event type to the factory used when decoding it
func (s *EventSerializer) Register(eventType string, factory EventFactory) {
	s.mu.Lock()
	s.factories[eventType] = factory
	s.mu.Unlock()
}

// IsRegistered reports whether Deserialize can decode eventType
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.factories[eventType]
	return ok
}

// Serialize encodes an event for the outbox
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize rebuilds an event from an outbox payload. The payload must
// carry the same event type it was stored under.
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	factory, ok := s.factories[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
	}
	if got := event.EventType(); got != eventType {
		return nil, fmt.Errorf("payload event type %q does not match %q", got, eventType)
	}
	return event, nil
}

// RegisterReturnEvents registers every ReturnOrder event type. The outbox
// processor cannot deliver an entry whose type is not registered.
func RegisterReturnEvents(serializer *EventSerializer) {
	for _, eventType := range returns.AllEventTypes() {
		serializer.Register(eventType, func() shared.DomainEvent {
			return &returns.ReturnLifecycleEvent{}
		})
	}
}
