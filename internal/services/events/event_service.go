package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/interfaces"
)

// Service implements EventService with an in-process pub/sub pattern.
// Delivery is synchronous dispatch, one goroutine per subscriber, so a slow
// or failing subscriber never blocks the rest.
type Service struct {
	subscribers map[interfaces.EventType][]interfaces.EventHandler
	tags        map[string]bool
	mu          sync.RWMutex
	logger      arbor.ILogger
}

// NewService creates a new event service
func NewService(logger arbor.ILogger) interfaces.EventService {
	return &Service{
		subscribers: make(map[interfaces.EventType][]interfaces.EventHandler),
		tags:        make(map[string]bool),
		logger:      logger,
	}
}

// Subscribe registers a handler for an event type
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers[eventType] = append(s.subscribers[eventType], handler)

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("subscriber_count", len(s.subscribers[eventType])).
		Msg("Event handler subscribed")

	return nil
}

// SubscribeTagged registers a handler under a tag. A tag that was already
// registered is a no-op, which keeps boot re-entry from double-registering
// listeners.
func (s *Service) SubscribeTagged(tag string, eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if tag == "" {
		return fmt.Errorf("tag cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tags[tag] {
		s.logger.Debug().
			Str("tag", tag).
			Str("event_type", string(eventType)).
			Msg("Handler tag already registered, skipping")
		return nil
	}

	s.tags[tag] = true
	s.subscribers[eventType] = append(s.subscribers[eventType], handler)

	s.logger.Debug().
		Str("tag", tag).
		Str("event_type", string(eventType)).
		Msg("Tagged event handler subscribed")

	return nil
}

// Publish sends an event to all subscribers. Each handler runs in its own
// goroutine; handler errors and panics are logged and swallowed to preserve
// publisher liveness.
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	s.mu.RLock()
	handlers := make([]interfaces.EventHandler, len(s.subscribers[event.Type]))
	copy(handlers, s.subscribers[event.Type])
	s.mu.RUnlock()

	if len(handlers) == 0 {
		s.logger.Debug().
			Str("event_type", string(event.Type)).
			Msg("No subscribers for event")
		return nil
	}

	for _, handler := range handlers {
		go func(h interfaces.EventHandler) {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error().
						Str("event_type", string(event.Type)).
						Str("panic", fmt.Sprintf("%v", r)).
						Msg("Event handler panicked")
				}
			}()
			if err := h(ctx, event); err != nil {
				s.logger.Error().
					Err(err).
					Str("event_type", string(event.Type)).
					Msg("Event handler failed")
			}
		}(handler)
	}

	return nil
}

// Close shuts down the event service
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = make(map[interfaces.EventType][]interfaces.EventHandler)
	s.tags = make(map[string]bool)
	s.logger.Info().Msg("Event service closed")

	return nil
}
