package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"rewardkit/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

// ParseDispatchMode maps "sync"/"async" to a DispatchMode; anything else is async.
func ParseDispatchMode(s string) DispatchMode {
	if s == "sync" {
		return DispatchSync
	}
	return DispatchAsync
}

// AllEventTypes lists every event the engine publishes.
var AllEventTypes = []core.EventType{
	core.EventXPGranted,
	core.EventLevelUp,
	core.EventBadgeAwarded,
	core.EventNotificationCreated,
}

type subscription struct {
	id  int64
	typ core.EventType
	fn  func(context.Context, core.Event)
}

// EventBus provides thread-safe pub/sub with sync and async dispatch.
// Events are published only after the state change they describe is stored.
type EventBus struct {
	mode         DispatchMode
	mu           sync.RWMutex
	subs         map[core.EventType]map[int64]subscription
	nextID       int64
	asyncQueue   chan core.Event
	asyncWorkers int
	log          *slog.Logger
	wg           sync.WaitGroup
	closeOnce    sync.Once
	pubMu        sync.RWMutex // guards shut against in-flight enqueues
	shut         bool
	done         chan struct{}
	dropped      atomic.Int64
	panics       atomic.Int64
}

// BusOption tunes an EventBus.
type BusOption func(*EventBus)

// WithQueueSize sets the async queue capacity (default 2048).
func WithQueueSize(n int) BusOption {
	return func(e *EventBus) {
		if n > 0 {
			e.asyncQueue = make(chan core.Event, n)
		}
	}
}

// WithWorkers sets the number of async dispatch goroutines (default 4).
func WithWorkers(n int) BusOption {
	return func(e *EventBus) {
		if n > 0 {
			e.asyncWorkers = n
		}
	}
}

// WithBusLogger sets the logger used to report recovered handler panics.
func WithBusLogger(log *slog.Logger) BusOption {
	return func(e *EventBus) {
		if log != nil {
			e.log = log
		}
	}
}

func NewEventBus(mode DispatchMode, opts ...BusOption) *EventBus {
	eb := &EventBus{
		mode:         mode,
		subs:         make(map[core.EventType]map[int64]subscription),
		asyncQueue:   make(chan core.Event, 2048),
		asyncWorkers: 4,
		log:          slog.Default(),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(eb)
	}
	if mode == DispatchAsync {
		eb.startWorkers()
	}
	return eb
}

func (e *EventBus) startWorkers() {
	for i := 0; i < e.asyncWorkers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for {
				select {
				case ev := <-e.asyncQueue:
					e.dispatchSync(context.Background(), ev)
				case <-e.done:
					// drain what is already queued
					for {
						select {
						case ev := <-e.asyncQueue:
							e.dispatchSync(context.Background(), ev)
						default:
							return
						}
					}
				}
			}
		}()
	}
}

// Close stops async workers after the queue drains. Safe to call twice.
func (e *EventBus) Close() {
	e.closeOnce.Do(func() {
		e.pubMu.Lock()
		e.shut = true
		e.pubMu.Unlock()
		close(e.done)
		e.wg.Wait()
	})
}

// Dropped returns how many async events were discarded on a full queue.
func (e *EventBus) Dropped() int64 { return e.dropped.Load() }

// Panics returns how many handler panics were recovered.
func (e *EventBus) Panics() int64 { return e.panics.Load() }

// Subscribe registers a handler for an event type. Returns unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[typ] == nil {
		e.subs[typ] = make(map[int64]subscription)
	}
	e.subs[typ][id] = subscription{id: id, typ: typ, fn: handler}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if m := e.subs[typ]; m != nil {
			delete(m, id)
		}
	}
}

// SubscribeAll registers handler for every type in AllEventTypes.
func (e *EventBus) SubscribeAll(handler func(context.Context, core.Event)) func() {
	unsubs := make([]func(), 0, len(AllEventTypes))
	for _, typ := range AllEventTypes {
		unsubs = append(unsubs, e.Subscribe(typ, handler))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Publish sends an event to subscribers. Once the bus is closed, async
// publishes are delivered inline.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode == DispatchAsync && e.enqueue(ev) {
		return
	}
	e.dispatchSync(ctx, ev)
}

func (e *EventBus) dispatchSync(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	subs := e.subs[ev.Type]
	// copy to avoid holding lock during callbacks
	handlers := make([]func(context.Context, core.Event), 0, len(subs))
	for _, s := range subs {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		e.invoke(ctx, h, ev)
	}
}

// enqueue hands ev to the async workers. It reports false once Close has
// begun, so the caller delivers inline instead.
func (e *EventBus) enqueue(ev core.Event) bool {
	e.pubMu.RLock()
	defer e.pubMu.RUnlock()
	if e.shut {
		return false
	}
	select {
	case e.asyncQueue <- ev:
	default:
		// drop if queue full to preserve latency
		e.dropped.Add(1)
	}
	return true
}

// invoke runs one handler; a panicking subscriber does not stop delivery
// to the others.
func (e *EventBus) invoke(ctx context.Context, h func(context.Context, core.Event), ev core.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.panics.Add(1)
			e.log.Error("event handler panicked",
				"event_type", ev.Type,
				"user_id", ev.UserID,
				"panic", r)
		}
	}()
	h(ctx, ev)
}
