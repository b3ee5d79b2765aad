package conn

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/vmhop/internal/logger"
	"github.com/rileyhilliard/vmhop/internal/profile"
)

// StatusEvent reports a change of the active connection. One is published
// per Connect, successful or not, and per effective Disconnect.
type StatusEvent struct {
	ID uuid.UUID

	// Seq increases by one per event. Events are published in gate order,
	// so Seq order is the order the state changes happened in.
	Seq uint64

	IsConnected  bool
	Profile      profile.Profile
	Version      string
	ErrorMessage string
	At           time.Time
}

// StatusHandler receives status events.
type StatusHandler func(StatusEvent)

// broadcaster fans events out to subscribers. Each subscriber owns an
// unbounded mailbox drained by its own goroutine, so publishing never
// blocks on a slow handler and no event is dropped.
type broadcaster struct {
	mu     sync.Mutex
	seq    uint64
	nextID int
	subs   map[int]*subscriber
	closed bool
	wg     sync.WaitGroup
	log    logger.Logger
}

func newBroadcaster(log logger.Logger) *broadcaster {
	return &broadcaster{subs: make(map[int]*subscriber), log: log}
}

type subscriber struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []StatusEvent
	draining  bool
	cancelled bool
	handler   StatusHandler
	log       logger.Logger
}

// subscribe registers h and returns a func that stops delivery to it.
// Events already queued for h are dropped on unsubscribe.
func (b *broadcaster) subscribe(h StatusHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || h == nil {
		return func() {}
	}

	s := &subscriber{handler: h, log: b.log}
	s.cond = sync.NewCond(&s.mu)
	id := b.nextID
	b.nextID++
	b.subs[id] = s

	b.wg.Add(1)
	go s.run(&b.wg)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			s.cancel()
		})
	}
}

// publish stamps ev with the next sequence number and queues it for every
// subscriber. It returns the stamped event.
func (b *broadcaster) publish(ev StatusEvent) StatusEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	ev.Seq = b.seq
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if b.closed {
		return ev
	}
	for _, s := range b.subs {
		s.push(ev)
	}
	return ev
}

// close delivers what is already queued, then waits for every subscriber
// goroutine to exit. It must not be called from a handler.
func (b *broadcaster) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[int]*subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.drain()
	}
	b.wg.Wait()
}

func (s *subscriber) push(ev StatusEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *subscriber) cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.queue = nil
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *subscriber) drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *subscriber) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.draining && !s.cancelled {
			s.cond.Wait()
		}
		if s.cancelled || len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue[0] = StatusEvent{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.deliver(ev)
	}
}

func (s *subscriber) deliver(ev StatusEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("status handler panicked on event %d: %v", ev.Seq, r)
		}
	}()
	s.handler(ev)
}
