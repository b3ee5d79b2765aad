package conn

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/vmhop/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (r *eventRecorder) handle(ev StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) snapshot() []StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StatusEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) waitFor(t *testing.T, n int) []StatusEvent {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.snapshot()) >= n }, 2*time.Second, 5*time.Millisecond)
	return r.snapshot()
}

func TestBroadcaster_OrderedDelivery(t *testing.T) {
	b := newBroadcaster(logger.Noop())
	rec := &eventRecorder{}
	b.subscribe(rec.handle)

	for i := 0; i < 100; i++ {
		b.publish(StatusEvent{IsConnected: i%2 == 0})
	}
	b.close()

	events := rec.snapshot()
	require.Len(t, events, 100, "close flushes queued events")
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.NotEqual(t, uuid.Nil, ev.ID)
	}
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := newBroadcaster(logger.Noop())
	release := make(chan struct{})
	rec := &eventRecorder{}
	b.subscribe(func(ev StatusEvent) {
		<-release
		rec.handle(ev)
	})
	fast := &eventRecorder{}
	b.subscribe(fast.handle)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			b.publish(StatusEvent{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	fast.waitFor(t, 50)

	close(release)
	b.close()
	assert.Len(t, rec.snapshot(), 50, "the slow subscriber loses nothing")
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := newBroadcaster(logger.Noop())
	defer b.close()
	rec := &eventRecorder{}
	unsubscribe := b.subscribe(rec.handle)

	b.publish(StatusEvent{})
	rec.waitFor(t, 1)

	unsubscribe()
	unsubscribe()
	b.publish(StatusEvent{})
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 1)
}

func TestBroadcaster_PanickingHandlerIsIsolated(t *testing.T) {
	log := logger.NewBufferLogger()
	b := newBroadcaster(log)
	b.subscribe(func(StatusEvent) { panic("bad handler") })
	rec := &eventRecorder{}
	b.subscribe(rec.handle)

	b.publish(StatusEvent{})
	b.publish(StatusEvent{})
	b.close()

	assert.Len(t, rec.snapshot(), 2)
	assert.True(t, log.Contains("error", "bad handler"))
}

func TestBroadcaster_SubscribeAfterClose(t *testing.T) {
	b := newBroadcaster(logger.Noop())
	b.close()
	b.close()

	unsubscribe := b.subscribe(func(StatusEvent) { t.Error("handler called after close") })
	b.publish(StatusEvent{})
	unsubscribe()
}
