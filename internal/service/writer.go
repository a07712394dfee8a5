package service

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
)

// saver is the part of persistence.Persister the writer needs.
type saver interface {
	Save(ctx context.Context, key string, s domain.Snapshot)
}

// writer persists snapshots in the background. Its queue holds one slot:
// a snapshot still waiting when a newer one arrives is replaced, since the
// newer one supersedes it. Submit is called by a single producer.
type writer struct {
	key     string
	saver   saver
	timeout time.Duration
	pending chan domain.Snapshot

	closeOnce sync.Once
	done      chan struct{}
}

func newWriter(key string, s saver, timeout time.Duration) *writer {
	w := &writer{
		key:     key,
		saver:   s,
		timeout: timeout,
		pending: make(chan domain.Snapshot, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *writer) run() {
	defer close(w.done)
	for s := range w.pending {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		w.saver.Save(ctx, w.key, s)
		cancel()
	}
}

func (w *writer) submit(s domain.Snapshot) {
	for {
		select {
		case w.pending <- s:
			return
		default:
		}
		select {
		case <-w.pending:
		default:
		}
	}
}

// close stops accepting snapshots and waits until the last one is written
// or ctx is done.
func (w *writer) close(ctx context.Context) error {
	w.closeOnce.Do(func() { close(w.pending) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
