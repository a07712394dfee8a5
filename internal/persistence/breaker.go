package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerStore fails fast while the wrapped store keeps failing, so a dead
// Redis or Mongo does not stall every cart mutation behind network timeouts.
type BreakerStore struct {
	next    Store
	readCB  *gobreaker.CircuitBreaker[[]byte]
	writeCB *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerStore(next Store, name string, logger *zap.Logger) *BreakerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
	}

	return &BreakerStore{
		next:    next,
		readCB:  gobreaker.NewCircuitBreaker[[]byte](settings),
		writeCB: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

func (b *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	return b.readCB.Execute(func() ([]byte, error) {
		return b.next.Get(ctx, key)
	})
}

func (b *BreakerStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.writeCB.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Put(ctx, key, value)
	})
	return err
}

func (b *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := b.writeCB.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Delete(ctx, key)
	})
	return err
}

func (b *BreakerStore) Close() error {
	return b.next.Close()
}
