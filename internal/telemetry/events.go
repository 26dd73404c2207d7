package telemetry

import (
	"sync"
)

// Event is one message published on the Bus.
type Event struct {
	Name    string
	Payload map[string]any
}

// Subscriber receives events published on a Bus.
type Subscriber func(Event)

// Bus is a simple synchronous pub/sub dispatcher. Unlike the teacher's
// events bus, a panicking subscriber here is recovered, logged at warn, and
// dispatch continues to the remaining subscribers: one misbehaving
// listener (a custom formatter's progress hook, say) must never abort a
// build.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
	logger      Logger
}

// NewBus constructs an empty Bus. Warnings about recovered subscriber
// panics are written through logger.
func NewBus(logger Logger) *Bus {
	return &Bus{subscribers: make(map[string][]Subscriber), logger: logger}
}

// Subscribe registers fn to receive events published under name.
func (b *Bus) Subscribe(name string, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[name] = append(b.subscribers[name], fn)
}

// Publish dispatches evt to every subscriber registered for evt.Name, in
// registration order, on the calling goroutine.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers[evt.Name]))
	copy(subs, b.subscribers[evt.Name])
	b.mu.RUnlock()

	for i, sub := range subs {
		b.dispatch(i, sub, evt)
	}
}

func (b *Bus) dispatch(index int, sub Subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event subscriber panicked", map[string]any{
				"event":      evt.Name,
				"subscriber": index,
				"recover":    r,
			})
		}
	}()
	sub(evt)
}

// Well-known event names published by the pipeline orchestrator.
const (
	EventRunStarted       = "run.started"
	EventStageStarted     = "stage.started"
	EventStageCompleted   = "stage.completed"
	EventCacheHit         = "cache.hit"
	EventCacheMiss        = "cache.miss"
	EventPolicyViolation  = "policy.violation"
	EventRunCompleted     = "run.completed"
	EventRunFailed        = "run.failed"
	EventWatchIteration   = "watch.iteration"
)
