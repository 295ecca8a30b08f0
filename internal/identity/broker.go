package identity

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// subscriber queues events for one listener. The queue is unbounded: a slow
// listener delays its own events but never loses them.
type subscriber struct {
	mu      sync.Mutex
	pending []Event
	wake    chan struct{}
	done    chan struct{}
}

func (s *subscriber) push(event Event) {
	s.mu.Lock()
	s.pending = append(s.pending, event)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) take() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch
}

func (s *subscriber) backlog() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// LocalBroker fans events out to in-process listeners. Each listener gets its
// own goroutine so events reach it in publish order without blocking the
// publisher.
type LocalBroker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
	log    zerolog.Logger
}

func NewLocalBroker(log zerolog.Logger) *LocalBroker {
	return &LocalBroker{
		subs: make(map[int]*subscriber),
		log:  log,
	}
}

func (b *LocalBroker) Publish(_ context.Context, event Event) error {
	b.dispatch(event)
	return nil
}

const backlogWarn = 1024

func (b *LocalBroker) dispatch(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		sub.push(event)
		if n := sub.backlog(); n == backlogWarn {
			b.log.Warn().Int("subscriber", id).Int("backlog", n).Msg("auth event listener falling behind")
		}
	}
}

func (b *LocalBroker) Subscribe(listener Listener) Unsubscribe {
	sub := &subscriber{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case <-sub.wake:
			}
			for _, event := range sub.take() {
				select {
				case <-sub.done:
					return
				default:
				}
				listener(event)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

// Len reports the number of live subscriptions.
func (b *LocalBroker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
