package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"go.uber.org/zap"
)

// Persister loads and saves cart snapshots. Absent or corrupt records load
// as an empty cart; only an unreachable store is reported to the caller.
// A write that fails is logged and dropped.
type Persister struct {
	store  Store
	logger *zap.Logger
}

func NewPersister(store Store, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{store: store, logger: logger}
}

// Load returns the snapshot stored under key, or an empty cart when the key
// is absent or its value cannot be decoded. A failing store yields an error
// so the caller does not mistake an unreadable cart for an empty one.
func (p *Persister) Load(ctx context.Context, key string) (domain.Snapshot, error) {
	var data []byte
	err := guard(func() error {
		var errGet error
		data, errGet = p.store.Get(ctx, key)
		return errGet
	})
	if errors.Is(err, ErrNotFound) {
		return domain.EmptySnapshot(), nil
	}
	if err != nil {
		p.logger.Warn("cart load failed", zap.String("key", key), zap.Error(err))
		return domain.Snapshot{}, fmt.Errorf("load cart failed: %w", err)
	}

	snapshot, err := Decode(data)
	if err != nil {
		p.logger.Warn("corrupt cart record, starting empty", zap.String("key", key), zap.Error(err))
		return domain.EmptySnapshot(), nil
	}
	return snapshot, nil
}

// Save writes the snapshot under key. Failures are logged and swallowed.
func (p *Persister) Save(ctx context.Context, key string, s domain.Snapshot) {
	data, err := Encode(s)
	if err != nil {
		p.logger.Warn("cart encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := guard(func() error { return p.store.Put(ctx, key, data) }); err != nil {
		p.logger.Warn("cart save failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes the record under key. Missing keys are not an error.
func (p *Persister) Delete(ctx context.Context, key string) {
	err := guard(func() error { return p.store.Delete(ctx, key) })
	if err != nil && !errors.Is(err, ErrNotFound) {
		p.logger.Warn("cart delete failed", zap.String("key", key), zap.Error(err))
	}
}

// guard turns a panicking store call into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store panicked: %v", r)
		}
	}()
	return fn()
}
