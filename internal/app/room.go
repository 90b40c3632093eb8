package app

import (
	"sync"

	"edurumble-service/internal/domain"
)

// Room fans leaderboard snapshots of one live quiz out to subscribers.
type Room struct {
	mu          sync.RWMutex
	last        *domain.Leaderboard
	closed      bool
	subscribers map[chan domain.Leaderboard]struct{}
}

// NewRoom is exported for infrastructure layers that keep rooms.
func NewRoom() *Room {
	return &Room{
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// seed stores an initial snapshot if none was published yet.
func (r *Room) seed(lb domain.Leaderboard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		r.last = &lb
	}
}

func (r *Room) publish(lb domain.Leaderboard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.last = &lb
	r.broadcastLocked(lb)
}

// subscribe returns a channel primed with the latest snapshot, if any.
func (r *Room) subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	r.mu.Lock()
	if r.closed {
		if r.last != nil {
			ch <- *r.last
		}
		close(ch)
		r.mu.Unlock()
		return ch, func() {}
	}
	r.subscribers[ch] = struct{}{}
	if r.last != nil {
		ch <- *r.last
	}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// close sends the final snapshot and detaches every subscriber.
func (r *Room) close(final domain.Leaderboard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.last = &final
	r.broadcastLocked(final)
	for ch := range r.subscribers {
		delete(r.subscribers, ch)
		close(ch)
	}
	r.closed = true
}

func (r *Room) broadcastLocked(lb domain.Leaderboard) {
	for ch := range r.subscribers {
		select {
		case ch <- lb:
		default:
			// slow subscriber: replace its oldest snapshot
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
