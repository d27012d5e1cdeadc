package flow

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/prospectlab/prospector/pkg/eventbus"
)

func newDispatchListener(limit int) *Flow2Listener {
	return &Flow2Listener{
		log: slog.Default(),
		sem: make(chan struct{}, limit),
	}
}

func TestDispatchRunsJobsConcurrentlyUpToCeiling(t *testing.T) {
	l := newDispatchListener(2)

	var mu sync.Mutex
	inFlight, maxInFlight, handled := 0, 0, 0
	started := make(chan struct{}, 8)
	release := make(chan struct{})

	l.run = func(ctx context.Context, ev eventbus.Event) {
		mu.Lock()
		handled++
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		started <- struct{}{}
		<-release
		mu.Lock()
		inFlight--
		mu.Unlock()
	}

	ctx := context.Background()
	l.dispatch(ctx, eventbus.Event{JobID: "job-a"})
	l.dispatch(ctx, eventbus.Event{JobID: "job-b"})

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("second job not dispatched while the first was in flight")
		}
	}

	// A third event must wait for a slot, not run above the ceiling.
	third := make(chan struct{})
	go func() {
		l.dispatch(ctx, eventbus.Event{JobID: "job-c"})
		close(third)
	}()
	select {
	case <-started:
		t.Fatal("third job admitted above the concurrency ceiling")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-third
	l.Drain(time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, handled)
	assert.Equal(t, 2, maxInFlight)
}

func TestDispatchRefusesAfterSubscriptionCancel(t *testing.T) {
	l := newDispatchListener(1)
	l.sem <- struct{}{} // occupy the only slot

	var mu sync.Mutex
	handled := 0
	l.run = func(ctx context.Context, ev eventbus.Event) {
		mu.Lock()
		handled++
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.dispatch(ctx, eventbus.Event{JobID: "job-a"})

	<-l.sem
	l.Drain(time.Second)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, handled)
}

func TestDrainGivesUpAfterGrace(t *testing.T) {
	l := newDispatchListener(1)
	block := make(chan struct{})
	l.run = func(context.Context, eventbus.Event) { <-block }

	l.dispatch(context.Background(), eventbus.Event{JobID: "job-a"})

	done := make(chan struct{})
	go func() {
		l.Drain(30 * time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Drain kept waiting past the grace period")
	}
	close(block)
}
