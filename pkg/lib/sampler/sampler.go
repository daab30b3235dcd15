// Package sampler polls system resource usage on a fixed interval and
// publishes every reading, or the reason it failed, to the event feed.
package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/drericflores/hstp/pkg/lib"
)

var logger = lib.Logger.WithField("component", "sampler")

// Reader takes one metric sample.
type Reader interface {
	Read(ctx context.Context) (lib.MetricSample, error)
}

// Publisher receives sampler events.
type Publisher interface {
	Publish(lib.Event) lib.Event
}

// Sampler runs a Reader periodically. Start and Stop may be called
// repeatedly; only one loop runs at a time.
type Sampler struct {
	reader Reader
	bus    Publisher

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(reader Reader, bus Publisher) *Sampler {
	return &Sampler{reader: reader, bus: bus}
}

// Start begins sampling every interval. It fails if the sampler is already
// running or the interval is not positive.
func (s *Sampler) Start(interval time.Duration) error {
	if interval <= 0 {
		return errors.Errorf("sample interval must be greater than 0, got %s", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("sampler is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, interval, s.done)
	logger.Debugf("sampling every %s", interval)
	return nil
}

// Stop halts sampling and waits for an in-flight read to return. It is a
// no-op when the sampler is not running.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.Debug("sampling stopped")
}

// Running reports whether a sampling loop is active.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// loop fires one sample per tick. Ticks are due interval apart; a read that
// overruns its tick makes the next one fire right away, then the schedule
// restarts from that moment, so missed ticks are never replayed.
func (s *Sampler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	due := time.Now().Add(interval)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.sample(ctx)

		due = due.Add(interval)
		now := time.Now()
		if !due.After(now) {
			due = now
		}
		timer.Reset(due.Sub(now))
	}
}

func (s *Sampler) sample(ctx context.Context) {
	sample, err := s.reader.Read(ctx)
	if ctx.Err() != nil {
		// stopped while reading
		return
	}
	if err != nil {
		err = lib.NewErrSample(err)
		logger.WithError(err).Warn("error sampling metrics")
		s.bus.Publish(lib.Event{
			Kind:  lib.EventSampleError,
			Error: &lib.ErrorDetail{Kind: lib.ErrorKindSample, Message: err.Error()},
		})
		return
	}
	s.bus.Publish(lib.Event{
		Kind:   lib.EventMetricSampled,
		Metric: &sample,
	})
}
