package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mvarela/gapfill/internal/database"
)

// Handler processes a single event. A non-nil error marks the event failed.
type Handler func(ctx context.Context, event *Event) error

// Bus is a persistent publish/subscribe event bus backed by SQLite.
// Published events survive restarts; handlers are matched on
// "type:source:action" keys, where any segment may be "*".
type Bus struct {
	store    *Store
	handlers map[string][]Handler
	mu       sync.RWMutex

	batchSize       int
	processInterval time.Duration
	cleanupInterval time.Duration
	retention       time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// BusOptions configures a Bus.
type BusOptions struct {
	BatchSize       int
	ProcessInterval time.Duration
	CleanupInterval time.Duration
	Retention       time.Duration
}

// NewBus creates a new event bus on top of db.
func NewBus(db *database.DB, opts BusOptions) *Bus {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.ProcessInterval <= 0 {
		opts.ProcessInterval = time.Second
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Hour
	}
	if opts.Retention <= 0 {
		opts.Retention = 7 * 24 * time.Hour
	}

	return &Bus{
		store:           NewStore(db),
		handlers:        make(map[string][]Handler),
		batchSize:       opts.BatchSize,
		processInterval: opts.ProcessInterval,
		cleanupInterval: opts.CleanupInterval,
		retention:       opts.Retention,
	}
}

// Publish persists an event for asynchronous delivery.
func (b *Bus) Publish(ctx context.Context, event *Event) error {
	if err := b.store.Create(ctx, event); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}

	log.Debug().
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Str("source", event.Source).
		Str("action", event.Action).
		Msg("Event published")

	return nil
}

// Subscribe registers a handler for events matching the given type,
// source, and action. Any of the three may be "*" to match all values.
func (b *Bus) Subscribe(eventType EventType, source, action string, handler Handler) {
	key := subscriptionKey(string(eventType), source, action)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[key] = append(b.handlers[key], handler)
}

// Start launches the background processing and cleanup loops.
func (b *Bus) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		b.processLoop(ctx)
	}()
	go b.cleanupLoop(ctx)

	log.Info().
		Dur("process_interval", b.processInterval).
		Dur("retention", b.retention).
		Msg("Event bus started")
}

// Stop terminates the background loops and waits for the processor to exit.
func (b *Bus) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done

	log.Info().Msg("Event bus stopped")
}

func (b *Bus) processLoop(ctx context.Context) {
	ticker := time.NewTicker(b.processInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.ProcessPending(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to process pending events")
			}
			if err := b.ProcessScheduled(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to process scheduled events")
			}
		}
	}
}

func (b *Bus) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.store.DeleteOlderThan(ctx, b.retention); err != nil {
				log.Error().Err(err).Msg("Failed to clean up old events")
			}
		}
	}
}

// ProcessPending delivers one batch of immediate pending events.
func (b *Bus) ProcessPending(ctx context.Context) error {
	events, err := b.store.GetPending(ctx, b.batchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		b.processEvent(ctx, event)
	}

	return nil
}

// ProcessScheduled delivers one batch of scheduled events whose time has come.
func (b *Bus) ProcessScheduled(ctx context.Context) error {
	events, err := b.store.GetScheduled(ctx, b.batchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		b.processEvent(ctx, event)
	}

	return nil
}

func (b *Bus) processEvent(ctx context.Context, event *Event) {
	if err := b.store.UpdateStatus(ctx, event.ID, StatusProcessing); err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to mark event processing")
		return
	}

	handlers := b.matchHandlers(event)
	if len(handlers) == 0 {
		// Nothing subscribed; the event is done.
		if err := b.store.UpdateStatus(ctx, event.ID, StatusCompleted); err != nil {
			log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to complete event")
		}
		return
	}

	status := StatusCompleted
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			log.Error().
				Err(err).
				Str("event_id", event.ID).
				Str("type", string(event.Type)).
				Str("action", event.Action).
				Msg("Event handler failed")
			status = StatusFailed
		}
	}

	if err := b.store.UpdateStatus(ctx, event.ID, status); err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to update event status")
	}
}

func (b *Bus) matchHandlers(event *Event) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []Handler
	for key, handlers := range b.handlers {
		if keyMatches(key, string(event.Type), event.Source, event.Action) {
			matched = append(matched, handlers...)
		}
	}
	return matched
}

func subscriptionKey(eventType, source, action string) string {
	return eventType + ":" + source + ":" + action
}

func keyMatches(key, eventType, source, action string) bool {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return false
	}
	return segmentMatches(parts[0], eventType) &&
		segmentMatches(parts[1], source) &&
		segmentMatches(parts[2], action)
}

func segmentMatches(pattern, value string) bool {
	return pattern == "*" || pattern == value
}
