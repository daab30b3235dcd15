package output_storage

import (
	"sync"
	"sync/atomic"

	"github.com/drericflores/hstp/pkg/lib"
)

var logger = lib.Logger.WithField("component", "output_storage")

// node is an element of the singly linked list. The list keeps a sentinel
// head whose line is never read; evicting the oldest line means promoting the
// first element to sentinel.
type node struct {
	line string
	next atomic.Pointer[node]
}

// OutputStorage is an append-only list of output lines with optional
// oldest-first eviction. Readers never lock: they walk next pointers, so a
// subscriber that fell behind an eviction still sees every line it was due.
type OutputStorage struct {
	head atomic.Pointer[node]

	appendMu sync.Mutex
	tail     *node
	capacity int
	stopped  bool

	length   atomic.Int64
	appended atomic.Uint64
	dropped  atomic.Uint64

	broadcaster *Broadcaster[struct{}]
}

// RunNewOutputStorage creates an empty storage retaining at most capacity
// lines. A capacity of zero or less retains everything.
func RunNewOutputStorage(capacity int) *OutputStorage {
	sentinel := &node{}
	s := &OutputStorage{
		tail:        sentinel,
		capacity:    capacity,
		broadcaster: NewBroadcaster[struct{}](),
	}
	s.head.Store(sentinel)
	return s
}

// Stop marks the end of the stream. Subscribers drain what is left and their
// channels close. Appends after Stop are ignored.
func (s *OutputStorage) Stop() {
	if s == nil {
		return
	}
	s.appendMu.Lock()
	s.stopped = true
	s.appendMu.Unlock()

	s.broadcaster.Stop()
}

// Append adds a line to the end of the list, evicting the oldest line when
// the capacity is exceeded.
func (s *OutputStorage) Append(line string) {
	if s == nil {
		return
	}

	s.appendMu.Lock()
	if s.stopped {
		s.appendMu.Unlock()
		logger.Debug("append after stop ignored")
		return
	}
	newTail := &node{line: line}
	s.tail.next.Store(newTail)
	s.tail = newTail
	s.appended.Add(1)

	if n := s.length.Add(1); s.capacity > 0 && n > int64(s.capacity) {
		oldHead := s.head.Load()
		s.head.Store(oldHead.next.Load())
		s.length.Add(-1)
		s.dropped.Add(1)
	}
	s.appendMu.Unlock()

	s.broadcaster.Publish(struct{}{})
}

func (s *OutputStorage) follow(start *node, notifier chan struct{}, ch chan string) {
	prev := start
	for {
		current := prev.next.Load()
		if current == nil {
			if _, ok := <-notifier; !ok {
				// stream ended; deliver anything appended before Stop
				for current = prev.next.Load(); current != nil; current = current.next.Load() {
					ch <- current.line
				}
				close(ch)
				return
			}
			continue
		}
		prev = current
		ch <- current.line
	}
}

func (s *OutputStorage) replay(start *node, ch chan string) {
	for current := start.next.Load(); current != nil; current = current.next.Load() {
		ch <- current.line
	}
	close(ch)
}

// Subscribe returns a channel that yields every retained line in order and
// then follows new appends until Stop.
func (s *OutputStorage) Subscribe(capacity int) <-chan string {
	ch := make(chan string, capacity)
	notifier, err := s.broadcaster.Subscribe()
	start := s.head.Load()
	if err == nil {
		go s.follow(start, notifier, ch)
	} else {
		go s.replay(start, ch)
	}

	return ch
}

// ForEach iterates over retained lines in insertion order. If iter returns
// false the iteration stops early. This is a best-effort view that does not
// block appends.
func (s *OutputStorage) ForEach(iter func(string) bool) {
	if s == nil || iter == nil {
		return
	}
	for cur := s.head.Load().next.Load(); cur != nil; cur = cur.next.Load() {
		if !iter(cur.line) {
			return
		}
	}
}

// Lines returns a consistent copy of the retained lines.
func (s *OutputStorage) Lines() []string {
	if s == nil {
		return nil
	}
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	out := make([]string, 0, s.length.Load())
	for cur := s.head.Load().next.Load(); cur != nil; cur = cur.next.Load() {
		out = append(out, cur.line)
	}
	return out
}

// Len returns the number of retained lines.
func (s *OutputStorage) Len() int {
	if s == nil {
		return 0
	}
	return int(s.length.Load())
}

// Appended returns the number of lines ever appended.
func (s *OutputStorage) Appended() uint64 {
	if s == nil {
		return 0
	}
	return s.appended.Load()
}

// Dropped returns the number of lines evicted to respect the capacity.
func (s *OutputStorage) Dropped() uint64 {
	if s == nil {
		return 0
	}
	return s.dropped.Load()
}
