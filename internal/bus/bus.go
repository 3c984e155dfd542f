// Package bus implements the synchronous publish/subscribe hub every
// component of a session talks through.
package bus

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dotcommander/simuwork/internal/clock"
	"github.com/dotcommander/simuwork/internal/models"
	"github.com/dotcommander/simuwork/pkg/memory"
)

// DefaultHistorySize is the number of recent events retained for recall.
const DefaultHistorySize = 100

const anonymousSubscriber = "anonymous"

// Handler receives a published event.
type Handler func(models.Event)

// Options configures a Bus.
type Options struct {
	Clock       clock.Clock
	Logger      *slog.Logger
	HistorySize int
}

type subscription struct {
	id           string
	eventType    models.EventType
	subscriberID string
	handler      Handler
}

// Bus fans events out to subscribers synchronously. Type-specific handlers
// run first, then wildcard handlers, each in registration order. A panicking
// handler is recovered and logged; it never reaches the publisher or its
// siblings.
type Bus struct {
	mu      sync.Mutex
	subs    map[models.EventType][]*subscription
	counter uint64

	history  *memory.Ring[models.Event]
	clock    clock.Clock
	log      *slog.Logger
	failures atomic.Int64
}

// New constructs a Bus.
func New(opts Options) *Bus {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	return &Bus{
		subs:    make(map[models.EventType][]*subscription),
		history: memory.NewRing[models.Event](opts.HistorySize),
		clock:   opts.Clock,
		log:     opts.Logger,
	}
}

// Subscribe registers handler for eventType and returns an idempotent
// unsubscribe function. An empty subscriberID is recorded as "anonymous".
func (b *Bus) Subscribe(eventType models.EventType, handler Handler, subscriberID string) func() {
	if subscriberID == "" {
		subscriberID = anonymousSubscriber
	}

	b.mu.Lock()
	sub := &subscription{
		id:           fmt.Sprintf("%s_%d", subscriberID, b.counter),
		eventType:    eventType,
		subscriberID: subscriberID,
		handler:      handler,
	}
	b.counter++
	// Copy-on-write so an in-flight dispatch keeps iterating its own snapshot.
	next := make([]*subscription, 0, len(b.subs[eventType])+1)
	next = append(next, b.subs[eventType]...)
	b.subs[eventType] = append(next, sub)
	b.mu.Unlock()

	b.log.Debug("bus subscribe", "event_type", eventType, "subscription", sub.id)

	var once sync.Once
	return func() {
		once.Do(func() { b.Unsubscribe(eventType, sub.id) })
	}
}

// SubscribeAll registers a wildcard handler that receives every event.
func (b *Bus) SubscribeAll(handler Handler, subscriberID string) func() {
	return b.Subscribe(models.EventWildcard, handler, subscriberID)
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(eventType models.EventType, subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.subs[eventType]
	idx := slices.IndexFunc(current, func(s *subscription) bool { return s.id == subscriptionID })
	if idx < 0 {
		return
	}
	next := slices.Delete(slices.Clone(current), idx, idx+1)
	if len(next) == 0 {
		delete(b.subs, eventType)
		return
	}
	b.subs[eventType] = next
}

// Publish builds an event, records it, and dispatches it to every matching
// handler before returning. It never fails.
func (b *Bus) Publish(eventType models.EventType, payload map[string]any, source string) models.Event {
	if source == "" {
		source = models.SourceSystem
	}
	ev := models.Event{
		ID:        "evt_" + uuid.NewString(),
		Type:      eventType,
		Payload:   maps.Clone(payload),
		Source:    source,
		Timestamp: b.now(),
	}
	if ev.Payload == nil {
		ev.Payload = map[string]any{}
	}

	b.history.Push(ev)

	b.mu.Lock()
	var typed []*subscription
	if eventType != models.EventWildcard {
		typed = b.subs[eventType]
	}
	wildcard := b.subs[models.EventWildcard]
	b.mu.Unlock()

	b.log.Debug("bus publish", "event_type", eventType, "source", source, "handlers", len(typed)+len(wildcard))

	for _, sub := range typed {
		b.invoke(sub, ev)
	}
	for _, sub := range wildcard {
		b.invoke(sub, ev)
	}
	return ev
}

func (b *Bus) invoke(sub *subscription, ev models.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.failures.Add(1)
			b.log.Error("event handler failed",
				"event_type", ev.Type,
				"subscription", sub.id,
				"subscriber", sub.subscriberID,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	sub.handler(ev)
}

func (b *Bus) now() time.Time {
	if b.clock == nil {
		return time.Now()
	}
	return b.clock.Now()
}

// Recent returns up to count of the most recent events, oldest first.
// An empty eventType matches every type; count <= 0 means all retained.
func (b *Bus) Recent(count int, eventType models.EventType) []models.Event {
	var keep func(models.Event) bool
	if eventType != "" {
		keep = func(ev models.Event) bool { return ev.Type == eventType }
	}
	return b.history.Last(count, keep)
}

// EventsByType returns every retained event of eventType, oldest first.
func (b *Bus) EventsByType(eventType models.EventType) []models.Event {
	return b.Recent(0, eventType)
}

// ClearHistory drops every retained event.
func (b *Bus) ClearHistory() {
	b.history.Clear()
}

// SubscriberCount returns the number of subscriptions for eventType, or
// across every type when eventType is empty.
func (b *Bus) SubscriberCount(eventType models.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if eventType != "" {
		return len(b.subs[eventType])
	}
	total := 0
	for _, subs := range b.subs {
		total += len(subs)
	}
	return total
}

// EventTypes lists the event types that currently have subscribers, sorted.
func (b *Bus) EventTypes() []models.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Sorted(maps.Keys(b.subs))
}

// HandlerFailures returns how many handler invocations have panicked.
func (b *Bus) HandlerFailures() int64 {
	return b.failures.Load()
}
