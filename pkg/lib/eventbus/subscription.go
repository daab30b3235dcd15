package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/drericflores/hstp/pkg/lib"
)

type subscribeConfig struct {
	replay int
}

type SubscribeOption func(*subscribeConfig)

// WithReplay asks for up to n retained events published before the
// subscription. Buses created without WithHistory retain nothing.
func WithReplay(n int) SubscribeOption {
	return func(c *subscribeConfig) {
		c.replay = n
	}
}

// Subscription is one subscriber's cursor on the feed. Next and C must not be
// mixed.
type Subscription struct {
	bus *Bus

	mu       sync.Mutex
	queue    []lib.Event
	capacity int
	finished bool
	notify   chan struct{}

	dropped atomic.Uint64

	pumpOnce sync.Once
	ch       chan lib.Event
	ctx      context.Context
	cancel   context.CancelFunc
}

func newSubscription(bus *Bus, capacity int) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscription{
		bus:      bus,
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// push appends ev without blocking. A full queue sheds its oldest output
// line; when it holds nothing sheddable the queue grows instead.
func (s *Subscription) push(ev lib.Event) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.capacity {
		s.shed(ev)
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// shed drops the oldest droppable event to make room for incoming. Callers
// hold s.mu.
func (s *Subscription) shed(incoming lib.Event) {
	for i, queued := range s.queue {
		if queued.Droppable() {
			copy(s.queue[i:], s.queue[i+1:])
			s.queue[len(s.queue)-1] = lib.Event{}
			s.queue = s.queue[:len(s.queue)-1]
			s.dropped.Add(1)
			return
		}
	}
	logger.WithField("kind", incoming.Kind).Debug("subscriber queue full of non-droppable events, growing")
}

// finish marks the end of the feed. With drain the queued events remain
// readable, otherwise they are discarded.
func (s *Subscription) finish(drain bool) {
	s.mu.Lock()
	s.finished = true
	if !drain {
		s.queue = nil
	}
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available, ctx ends, or the subscription is
// finished and drained, in which case it returns lib.ErrClosed.
func (s *Subscription) Next(ctx context.Context) (lib.Event, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue[0] = lib.Event{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, nil
		}
		finished := s.finished
		s.mu.Unlock()

		if finished {
			return lib.Event{}, lib.ErrClosed
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return lib.Event{}, ctx.Err()
		}
	}
}

// C returns a channel view of the subscription. The channel closes when the
// subscription ends.
func (s *Subscription) C() <-chan lib.Event {
	s.pumpOnce.Do(func() {
		s.ch = make(chan lib.Event)
		go s.pump()
	})
	return s.ch
}

func (s *Subscription) pump() {
	defer close(s.ch)
	for {
		ev, err := s.Next(s.ctx)
		if err != nil {
			return
		}
		select {
		case s.ch <- ev:
		case <-s.ctx.Done():
			return
		}
	}
}

// Dropped counts output lines shed because this subscriber fell behind.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Pending is the number of queued, unread events.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close detaches the subscription from the bus and discards unread events.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
	s.finish(false)
	s.cancel()
}
