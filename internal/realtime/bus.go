package realtime

import (
	"context"
	"errors"
	"sync"
)

// Bus carries room events between server instances. Every instance
// subscribes and delivers what it receives to its own hub, including the
// events it published itself.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context) (Subscription, error)
	Close() error
}

// Subscription is an active event stream. Events is closed after Close.
type Subscription interface {
	Events() <-chan Event
	Close()
}

var errEventInvalid = errors.New("event type and video id are required")

func validateEvent(event Event) error {
	if event.Type == "" || event.VideoID == "" {
		return errEventInvalid
	}
	return nil
}

// NewMemoryBus returns an in-process Bus for tests and for embedding several
// hubs in one process. The server itself broadcasts straight to its hub when
// no Redis bus is configured.
func NewMemoryBus(buffer int) Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &memoryBus{
		subs:   make(map[*memorySubscription]struct{}),
		buffer: buffer,
	}
}

type memoryBus struct {
	mu     sync.RWMutex
	subs   map[*memorySubscription]struct{}
	buffer int
}

func (b *memoryBus) Publish(ctx context.Context, event Event) error {
	if err := validateEvent(event); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		select {
		case sub.ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// subscriber is behind; drop rather than stall publishers
		}
	}
	return nil
}

func (b *memoryBus) Subscribe(ctx context.Context) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &memorySubscription{
		bus: b,
		ch:  make(chan Event, b.buffer),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	subs := make([]*memorySubscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
	return nil
}

type memorySubscription struct {
	once sync.Once
	bus  *memoryBus
	ch   chan Event
}

func (s *memorySubscription) Events() <-chan Event {
	return s.ch
}

func (s *memorySubscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}
