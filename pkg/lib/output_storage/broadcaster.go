package output_storage

import (
	"sync"

	"github.com/pkg/errors"
)

// Broadcaster fans a message out to every subscriber without ever blocking
// the publisher. Each subscriber channel holds one message; when it is full
// the stale message is replaced by the new one, which makes it suitable for
// wake-up notifications.
type Broadcaster[T any] struct {
	mu          sync.Mutex
	subscribers map[chan T]struct{}
	stopped     bool
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{
		subscribers: make(map[chan T]struct{}),
	}
}

// Stop closes every subscriber channel. Later publishes are ignored.
func (broadcaster *Broadcaster[T]) Stop() {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if broadcaster.stopped {
		return
	}
	for subscriberSender := range broadcaster.subscribers {
		close(subscriberSender)
	}
	broadcaster.stopped = true
	logger.Debug("broadcaster stopped")
}

func (broadcaster *Broadcaster[T]) Subscribe() (chan T, error) {
	ch := make(chan T, 1)
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if broadcaster.stopped {
		return nil, errors.New("failed to subscribe: broadcaster is stopped")
	}
	broadcaster.subscribers[ch] = struct{}{}
	return ch, nil
}

func (broadcaster *Broadcaster[T]) Publish(msg T) {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if broadcaster.stopped {
		return
	}
	for s := range broadcaster.subscribers {
		select {
		case s <- msg:
			continue
		default:
		}
		// channel is full, drop the stale message
		select {
		case <-s:
		default:
		}
		select {
		case s <- msg:
		default:
		}
	}
}
