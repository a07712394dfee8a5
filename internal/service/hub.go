package service

import (
	"sync"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

type subscriber struct {
	id int
	fn func(domain.Snapshot)
}

// hub fans snapshots out to subscribers in subscription order.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber
}

func (h *hub) subscribe(fn func(domain.Snapshot)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(id) })
	}
}

func (h *hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, s := range h.subs {
		if s.id == id {
			h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
			return
		}
	}
}

// publish calls every current subscriber synchronously, each with its own
// copy of s. The list is copied first so a callback may unsubscribe itself.
func (h *hub) publish(s domain.Snapshot) {
	h.mu.Lock()
	subs := make([]subscriber, len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.fn(s.Clone())
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
