package output_storage

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recvAll(ch <-chan string) []string {
	var out []string
	for line := range ch {
		out = append(out, line)
	}
	return out
}

func TestSubscribe_ConcurrentSubscribersWhileAppending(t *testing.T) {
	s := RunNewOutputStorage(0)

	const N = 300
	expected := make([]string, 0, N)
	for i := 1; i <= N; i++ {
		expected = append(expected, fmt.Sprintf("%d", i))
	}

	const subs = 10
	chs := make([]<-chan string, 0, subs)
	for i := 0; i < subs; i++ {
		chs = append(chs, s.Subscribe(32))
	}

	go func() {
		for i := 1; i <= N; i++ {
			s.Append(fmt.Sprintf("%d", i))
			// small jitter to exercise scheduling
			time.Sleep(time.Microsecond * 200)
		}
		s.Stop()
	}()

	var wg sync.WaitGroup
	wg.Add(subs)
	outs := make([][]string, subs)
	for i := 0; i < subs; i++ {
		i := i
		go func() { defer wg.Done(); outs[i] = recvAll(chs[i]) }()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for subscribers to finish")
	}

	for i := 0; i < subs; i++ {
		require.Equal(t, expected, outs[i], "subscriber %d", i)
	}
}

func TestSubscribe_BoundedStorageDoesNotLoseLinesForFollower(t *testing.T) {
	// A follower that subscribed before the appends holds the chain from its
	// own position, so eviction never takes lines away from it.
	s := RunNewOutputStorage(5)
	ch := s.Subscribe(0)

	const N = 200
	go func() {
		for i := 1; i <= N; i++ {
			s.Append(fmt.Sprintf("%d", i))
		}
		s.Stop()
	}()

	got := recvAll(ch)
	require.Len(t, got, N)
	for i, line := range got {
		require.Equal(t, fmt.Sprintf("%d", i+1), line)
	}
	require.Equal(t, 5, s.Len())
}

func TestSubscribe_ManySubscribersCloseOnStop(t *testing.T) {
	s := RunNewOutputStorage(0)

	const subs = 50
	var wg sync.WaitGroup
	wg.Add(subs)
	for i := 0; i < subs; i++ {
		ch := s.Subscribe(1)
		go func() {
			for range ch {
			}
			wg.Done()
		}()
	}

	s.Stop()

	c := make(chan struct{})
	go func() { wg.Wait(); close(c) }()

	select {
	case <-c:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("subscribers did not close on stop in time")
	}
}
