package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// Event names delivered to the host surface.
const (
	SnipComplete = "snip-complete"
	SnipCancel   = "snip-cancel"
	Window       = "window"
)

// ErrClosed is returned once the bus has been shut down.
var ErrClosed = errors.New("event bus is shut down")

// Event is one signal addressed to a display target (a window label).
type Event struct {
	Target  string `json:"target"`
	Name    string `json:"event"`
	Payload string `json:"payload"`
}

// Bus routes events to per-target subscribers. An event emitted to a target
// with no subscriber is held (latest only) and handed to the next subscriber.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string]map[uint64]chan Event
	pending   map[string]Event
	nextID    uint64
	ctx       context.Context
	cancel    context.CancelFunc
	logEvents bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		subs:      make(map[string]map[uint64]chan Event),
		pending:   make(map[string]Event),
		ctx:       ctx,
		cancel:    cancel,
		logEvents: true,
	}
}

// Subscribe registers a receiver for target. The returned func unsubscribes
// and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(target string, bufferSize int) (<-chan Event, func(), error) {
	if bufferSize < 1 {
		bufferSize = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx.Err() != nil {
		return nil, nil, ErrClosed
	}

	b.nextID++
	id := b.nextID
	ch := make(chan Event, bufferSize)
	if b.subs[target] == nil {
		b.subs[target] = make(map[uint64]chan Event)
	}
	b.subs[target][id] = ch

	if ev, ok := b.pending[target]; ok {
		ch <- ev
		delete(b.pending, target)
		log.Printf("events: delivered held %s to new subscriber of %s", ev.Name, target)
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { b.unsubscribe(target, id) })
	}
	return ch, unsubscribe, nil
}

func (b *Bus) unsubscribe(target string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.subs[target]
	ch, ok := set[id]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(b.subs, target)
	}
	close(ch)
}

// Emit delivers an event to every subscriber of target. Delivery never
// blocks: a subscriber whose buffer is full loses its oldest queued event.
func (b *Bus) Emit(target, name, payload string) error {
	ev := Event{Target: target, Name: name, Payload: payload}

	b.mu.RLock()
	if b.ctx.Err() != nil {
		b.mu.RUnlock()
		return ErrClosed
	}
	if b.logEvents {
		log.Printf("events: %s -> %s (%d bytes)", name, target, len(payload))
	}
	if len(b.subs[target]) == 0 {
		b.mu.RUnlock()
		return b.hold(ev)
	}
	defer b.mu.RUnlock()

	var failed []string
	for id, ch := range b.subs[target] {
		if !offer(ch, ev) {
			failed = append(failed, fmt.Sprintf("subscriber %d", id))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("dropped %s to %s: %v", name, target, failed)
	}
	return nil
}

// offer sends ev without blocking, evicting the oldest queued event when the
// buffer is full. Channels are only closed under the write lock, so callers
// holding the read lock may send safely.
func offer(ch chan Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	default:
	}
	select {
	case old := <-ch:
		log.Printf("events: subscriber of %s lagging; dropped %s", ev.Target, old.Name)
	default:
	}
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}

func (b *Bus) hold(ev Event) error {
	b.mu.Lock()
	if len(b.subs[ev.Target]) > 0 {
		// A subscriber arrived between the read and write locks.
		b.mu.Unlock()
		return b.Emit(ev.Target, ev.Name, ev.Payload)
	}
	b.pending[ev.Target] = ev
	b.mu.Unlock()
	return nil
}

// Subscribers returns the number of live subscribers for target.
func (b *Bus) Subscribers(target string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[target])
}

// SetEventLogging enables or disables per-event log lines.
func (b *Bus) SetEventLogging(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logEvents = enabled
}

// Shutdown closes every subscriber channel and rejects further events.
func (b *Bus) Shutdown() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	for target, set := range b.subs {
		for _, ch := range set {
			close(ch)
		}
		delete(b.subs, target)
	}
	b.pending = make(map[string]Event)
	log.Printf("events: bus shut down")
}

// WaitFor blocks until an event named name arrives on ch, ch closes, or ctx ends.
// An empty name accepts any event.
func WaitFor(ctx context.Context, ch <-chan Event, name string) (Event, error) {
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return Event{}, ErrClosed
			}
			if name == "" || ev.Name == name {
				return ev, nil
			}
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}
