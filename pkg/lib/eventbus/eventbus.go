// Package eventbus merges events from concurrent producers into one ordered
// feed. Every published event gets a sequence number; subscribers read from
// their own bounded queue and can never stall a producer.
package eventbus

import (
	"sync"
	"time"

	"github.com/drericflores/hstp/pkg/lib"
)

var logger = lib.Logger.WithField("component", "eventbus")

const DefaultQueueCapacity = 1024

// Bus is safe for concurrent use.
type Bus struct {
	mu          sync.Mutex
	seq         uint64
	subscribers map[*Subscription]struct{}
	closed      bool

	history     []lib.Event
	historyNext int
	historyLen  int

	queueCapacity int
	now           func() time.Time
}

type Option func(*Bus)

// WithQueueCapacity bounds every subscriber queue. Values below one fall
// back to DefaultQueueCapacity.
func WithQueueCapacity(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueCapacity = n
		}
	}
}

// WithHistory keeps the last n published events so subscribers can ask for a
// replay.
func WithHistory(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.history = make([]lib.Event, n)
		}
	}
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		b.now = now
	}
}

func New(opts ...Option) *Bus {
	b := &Bus{
		subscribers:   make(map[*Subscription]struct{}),
		queueCapacity: DefaultQueueCapacity,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish stamps ev with the next sequence number and the current time and
// appends it to every subscriber queue. It returns the stamped event. Events
// published after Close are discarded and returned with a zero Seq.
func (b *Bus) Publish(ev lib.Event) lib.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		logger.WithField("kind", ev.Kind).Debug("publish after close ignored")
		ev.Seq = 0
		return ev
	}

	b.seq++
	ev.Seq = b.seq
	ev.Time = b.now()

	if len(b.history) > 0 {
		b.history[b.historyNext] = ev
		b.historyNext = (b.historyNext + 1) % len(b.history)
		if b.historyLen < len(b.history) {
			b.historyLen++
		}
	}

	for s := range b.subscribers {
		s.push(ev)
	}
	return ev
}

// LastSeq is the sequence number of the most recently published event.
func (b *Bus) LastSeq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Subscribe starts a new cursor at the current end of the feed. After Close
// the returned subscription is already finished.
func (b *Bus) Subscribe(opts ...SubscribeOption) *Subscription {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s := newSubscription(b, b.queueCapacity)
	if b.closed {
		s.finish(true)
		return s
	}

	for _, ev := range b.replay(cfg.replay) {
		s.push(ev)
	}
	b.subscribers[s] = struct{}{}
	logger.Debugf("subscribed, %d subscribers", len(b.subscribers))
	return s
}

// replay returns up to n retained events, oldest first. Callers hold b.mu.
func (b *Bus) replay(n int) []lib.Event {
	if n <= 0 || b.historyLen == 0 {
		return nil
	}
	if n > b.historyLen {
		n = b.historyLen
	}
	out := make([]lib.Event, 0, n)
	start := b.historyNext - n
	if start < 0 {
		start += len(b.history)
	}
	for i := 0; i < n; i++ {
		out = append(out, b.history[(start+i)%len(b.history)])
	}
	return out
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, s)
}

// Close ends every subscription. Subscribers still receive what was queued
// before the call. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subscribers {
		s.finish(true)
	}
	b.subscribers = make(map[*Subscription]struct{})
	logger.Debug("bus closed")
}
