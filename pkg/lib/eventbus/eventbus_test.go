package eventbus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drericflores/hstp/pkg/lib"
)

func outputLine(job string, n uint64) lib.Event {
	return lib.Event{
		Kind:  lib.EventJobOutputLine,
		JobID: job,
		Line:  &lib.OutputLine{Number: n, Text: fmt.Sprintf("line %d", n)},
	}
}

func stateChange(job string, from, to lib.JobState) lib.Event {
	return lib.Event{
		Kind:  lib.EventJobStateChanged,
		JobID: job,
		State: &lib.StateChange{From: from, To: to},
	}
}

func next(t *testing.T, s *Subscription) lib.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := s.Next(ctx)
	require.NoError(t, err)
	return ev
}

func TestPublishAssignsIncreasingSeq(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	b := New(WithClock(func() time.Time { return fixed }))
	s := b.Subscribe()
	defer s.Close()

	for i := uint64(1); i <= 3; i++ {
		ev := b.Publish(outputLine("cpu1", i))
		require.Equal(t, i, ev.Seq)
		require.Equal(t, fixed, ev.Time)
	}
	require.EqualValues(t, 3, b.LastSeq())

	for i := uint64(1); i <= 3; i++ {
		ev := next(t, s)
		require.Equal(t, i, ev.Seq)
		require.Equal(t, i, ev.Line.Number)
	}
}

func TestSubscriberStartsAtSubscriptionPoint(t *testing.T) {
	b := New(WithHistory(10))
	b.Publish(outputLine("cpu1", 1))
	b.Publish(outputLine("cpu1", 2))

	s := b.Subscribe()
	defer s.Close()
	b.Publish(outputLine("cpu1", 3))

	ev := next(t, s)
	require.EqualValues(t, 3, ev.Seq)
	require.Zero(t, s.Pending())
}

func TestReplayOnRequest(t *testing.T) {
	b := New(WithHistory(3))
	for i := uint64(1); i <= 5; i++ {
		b.Publish(outputLine("cpu1", i))
	}

	s := b.Subscribe(WithReplay(10))
	defer s.Close()
	b.Publish(outputLine("cpu1", 6))

	var seqs []uint64
	for i := 0; i < 4; i++ {
		seqs = append(seqs, next(t, s).Seq)
	}
	require.Equal(t, []uint64{3, 4, 5, 6}, seqs)

	partial := b.Subscribe(WithReplay(2))
	defer partial.Close()
	require.EqualValues(t, 5, next(t, partial).Seq)
	require.EqualValues(t, 6, next(t, partial).Seq)
}

func TestReplayWithoutHistory(t *testing.T) {
	b := New()
	b.Publish(outputLine("cpu1", 1))

	s := b.Subscribe(WithReplay(5))
	defer s.Close()
	require.Zero(t, s.Pending())
}

func TestSlowSubscriberDropsOldestOutputLinesOnly(t *testing.T) {
	b := New(WithQueueCapacity(4))
	slow := b.Subscribe()
	defer slow.Close()
	fast := b.Subscribe()
	defer fast.Close()

	b.Publish(stateChange("cpu1", lib.JobStatePending, lib.JobStateRunning)) // seq 1
	for i := uint64(1); i <= 6; i++ {
		b.Publish(outputLine("cpu1", i)) // seq 2..7
		next(t, fast)
	}
	b.Publish(stateChange("cpu1", lib.JobStateRunning, lib.JobStateCompleted)) // seq 8

	var got []lib.Event
	for slow.Pending() > 0 {
		got = append(got, next(t, slow))
	}

	require.Len(t, got, 4)
	require.Equal(t, lib.EventJobStateChanged, got[0].Kind)
	require.EqualValues(t, 1, got[0].Seq)
	require.EqualValues(t, 6, got[1].Seq)
	require.EqualValues(t, 7, got[2].Seq)
	require.True(t, got[3].IsTerminal())
	require.EqualValues(t, 8, got[3].Seq)
	require.EqualValues(t, 4, slow.Dropped())
	require.Zero(t, fast.Dropped())

	// the remaining seqs are still increasing
	for i := 1; i < len(got); i++ {
		require.Greater(t, got[i].Seq, got[i-1].Seq)
	}
}

func TestFullQueueOfStateEventsGrows(t *testing.T) {
	b := New(WithQueueCapacity(2))
	s := b.Subscribe()
	defer s.Close()

	for i := 0; i < 5; i++ {
		b.Publish(stateChange(fmt.Sprintf("job-%d", i), lib.JobStateRunning, lib.JobStateCompleted))
	}
	require.Equal(t, 5, s.Pending())
	require.Zero(t, s.Dropped())
}

func TestPublishNeverBlocksOnStalledSubscriber(t *testing.T) {
	b := New(WithQueueCapacity(8))
	stalled := b.Subscribe()
	defer stalled.Close()

	done := make(chan struct{})
	go func() {
		for i := uint64(1); i <= 10000; i++ {
			b.Publish(outputLine("disk1", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("publisher blocked by a stalled subscriber")
	}
	require.Equal(t, 8, stalled.Pending())
	require.EqualValues(t, 10000-8, stalled.Dropped())
}

func TestConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	b := New(WithQueueCapacity(100000))
	s := b.Subscribe()
	defer s.Close()

	const producers = 4
	const perProducer = 500
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := uint64(1); i <= perProducer; i++ {
				b.Publish(outputLine(fmt.Sprintf("job-%d", p), i))
			}
		}(p)
	}
	wg.Wait()

	last := map[string]uint64{}
	var prevSeq uint64
	for i := 0; i < producers*perProducer; i++ {
		ev := next(t, s)
		require.Greater(t, ev.Seq, prevSeq)
		prevSeq = ev.Seq
		require.Equal(t, last[ev.JobID]+1, ev.Line.Number)
		last[ev.JobID] = ev.Line.Number
	}
	require.EqualValues(t, producers*perProducer, b.LastSeq())
}

func TestNextHonoursContext(t *testing.T) {
	b := New()
	s := b.Subscribe()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseDrainsThenEnds(t *testing.T) {
	b := New()
	s := b.Subscribe()

	b.Publish(outputLine("cpu1", 1))
	b.Close()
	b.Close()

	ev := next(t, s)
	require.EqualValues(t, 1, ev.Seq)

	_, err := s.Next(context.Background())
	require.True(t, lib.IsClosed(err))

	ev = b.Publish(outputLine("cpu1", 2))
	require.Zero(t, ev.Seq)
	require.EqualValues(t, 1, b.LastSeq())

	late := b.Subscribe()
	_, err = late.Next(context.Background())
	require.True(t, lib.IsClosed(err))
}

func TestChannelView(t *testing.T) {
	b := New()
	s := b.Subscribe()

	b.Publish(outputLine("cpu1", 1))
	b.Publish(stateChange("cpu1", lib.JobStateRunning, lib.JobStateCompleted))

	ch := s.C()
	require.Equal(t, ch, s.C())

	var got []uint64
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case ev := <-ch:
			got = append(got, ev.Seq)
		case <-timeout:
			t.Fatalf("timeout waiting for events")
		}
	}
	require.Equal(t, []uint64{1, 2}, got)

	s.Close()
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatalf("channel did not close")
	}

	// detached subscribers no longer receive events
	b.Publish(outputLine("cpu1", 2))
	require.Zero(t, s.Pending())
}
