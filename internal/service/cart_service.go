package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/persistence"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CartService owns one Engine per cart session. Engines are created and
// hydrated on first use and evicted after being idle.
type CartService struct {
	persister Persister
	logger    *zap.Logger
	opts      []Option

	mu      sync.Mutex
	engines map[string]*Engine
	sfg     singleflight.Group // one hydration per session
}

func NewCartService(persister Persister, logger *zap.Logger, opts ...Option) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{
		persister: persister,
		logger:    logger,
		opts:      append([]Option{WithLogger(logger)}, opts...),
		engines:   make(map[string]*Engine),
	}
}

// Engine returns the engine of the session, loading the persisted cart the
// first time the session is seen. If the store cannot be read the error wraps
// ErrCartUnavailable and nothing is cached, so the next call retries.
func (s *CartService) Engine(ctx context.Context, sessionID string) (*Engine, error) {
	if e := s.lookup(sessionID); e != nil {
		return e, nil
	}

	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		if e := s.lookup(sessionID); e != nil {
			return e, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e := NewEngine(persistence.Key(sessionID), s.persister, s.opts...)
		if err := e.Hydrate(ctx); err != nil {
			e.Close(ctx)
			s.logger.Warn("cart hydration failed", zap.String("session_id", sessionID), zap.Error(err))
			return nil, err
		}

		s.mu.Lock()
		s.engines[sessionID] = e
		s.mu.Unlock()

		s.logger.Debug("cart engine created", zap.String("session_id", sessionID))
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Engine), nil
}

// Drop clears the cart of a session, whether or not it is loaded. Used when
// a session ends or its order has been placed. It goes through Engine so a
// hydration in flight cannot bring the cart back afterwards.
func (s *CartService) Drop(ctx context.Context, sessionID string) {
	e, err := s.Engine(ctx, sessionID)
	if err != nil {
		s.logger.Warn("cart drop without engine", zap.String("session_id", sessionID), zap.Error(err))
		s.persister.Delete(ctx, persistence.Key(sessionID))
		return
	}
	e.Clear()
}

// EvictIdle closes and forgets engines unused for maxIdle that have no
// subscribers. Their carts remain in the store. The lock is held until each
// flush is done so a new engine for the session never loads a stale cart.
func (s *CartService) EvictIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.engines {
		if !e.IdleSince().Before(cutoff) || e.Subscribers() > 0 {
			continue
		}
		if err := e.Close(ctx); err != nil {
			s.logger.Warn("cart engine flush failed on eviction", zap.String("session_id", id), zap.Error(err))
		}
		delete(s.engines, id)
		evicted++
	}
	return evicted
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (s *CartService) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.EvictIdle(ctx, maxIdle); n > 0 {
				s.logger.Info("evicted idle carts", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close flushes every engine.
func (s *CartService) Close(ctx context.Context) error {
	s.mu.Lock()
	engines := make([]*Engine, 0, len(s.engines))
	for _, e := range s.engines {
		engines = append(engines, e)
	}
	s.engines = make(map[string]*Engine)
	s.mu.Unlock()

	var errs []error
	for _, e := range engines {
		errs = append(errs, e.Close(ctx))
	}
	return errors.Join(errs...)
}

func (s *CartService) lookup(sessionID string) *Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engines[sessionID]
}
