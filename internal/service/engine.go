package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/cart"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Persister defines what the engine needs from cart persistence.
// Load fails only when the store cannot be read; absent or corrupt carts
// load as empty. Save and Delete handle their errors on their side.
type Persister interface {
	Load(ctx context.Context, key string) (domain.Snapshot, error)
	Save(ctx context.Context, key string, s domain.Snapshot)
	Delete(ctx context.Context, key string)
}

// ErrCartUnavailable is returned when the stored cart cannot be read.
var ErrCartUnavailable = errors.New("cart store unavailable")

// IDGenerator returns the id of a new line for the given add request.
type IDGenerator func(in domain.LineItemInput) string

// DefaultIDGenerator combines the line's identity with a random UUID.
func DefaultIDGenerator(in domain.LineItemInput) string {
	return fmt.Sprintf("%s-%s-%s-%s", in.ProductID, in.Color, in.Size, uuid.NewString())
}

type Option func(*Engine)

func WithIDGenerator(gen IDGenerator) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithSaveTimeout bounds every background write.
func WithSaveTimeout(d time.Duration) Option {
	return func(e *Engine) { e.saveTimeout = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine is the single entry point for reading and mutating one cart.
// Each mutation runs the reducer, notifies subscribers with the new snapshot
// and queues it for persistence, in dispatch order. Persistence happens in
// the background and never fails a mutation.
//
// Subscriber callbacks run synchronously inside the mutation and must not
// call mutating methods of the same engine.
type Engine struct {
	key       string
	persister Persister
	logger    *zap.Logger

	newID       IDGenerator
	saveTimeout time.Duration

	dispatchMu sync.Mutex
	stateMu    sync.RWMutex
	snapshot   domain.Snapshot
	closed     bool

	hub      hub
	writer   *writer
	lastUsed atomic.Int64
}

// NewEngine creates an engine holding an empty cart stored under key.
// Call Hydrate to load the previously saved cart.
func NewEngine(key string, persister Persister, opts ...Option) *Engine {
	e := &Engine{
		key:         key,
		persister:   persister,
		logger:      zap.NewNop(),
		newID:       DefaultIDGenerator,
		saveTimeout: 5 * time.Second,
		snapshot:    domain.EmptySnapshot(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.writer = newWriter(key, persister, e.saveTimeout)
	e.touch()
	return e
}

// Hydrate replaces the in-memory cart with the persisted one. When the store
// cannot be read the engine is left as it was and nothing is written back.
func (e *Engine) Hydrate(ctx context.Context) error {
	s, err := e.persister.Load(ctx, e.key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCartUnavailable, err)
	}
	e.dispatch(cart.Load{Snapshot: s})
	e.logger.Debug("cart hydrated", zap.String("key", e.key), zap.Int("lines", len(s.Items)))
	return nil
}

// AddItem adds a line or merges into the line with the same product and
// variant. The requested quantity is clamped to [1, domain.MaxLineQuantity].
// The returned snapshot is the cart right after this add.
func (e *Engine) AddItem(in domain.LineItemInput) (domain.Snapshot, error) {
	if err := in.Validate(); err != nil {
		return domain.Snapshot{}, err
	}
	in.Quantity = domain.ClampQuantity(in.Quantity)
	return e.dispatch(cart.Add{Input: in, LineID: e.newID(in)}), nil
}

// RemoveItem removes the line; unknown ids are ignored.
func (e *Engine) RemoveItem(lineID string) domain.Snapshot {
	return e.dispatch(cart.Remove{LineID: lineID})
}

// UpdateQuantity sets a line's quantity. A quantity <= 0 removes the line.
func (e *Engine) UpdateQuantity(lineID string, quantity int) domain.Snapshot {
	if quantity > domain.MaxLineQuantity {
		quantity = domain.MaxLineQuantity
	}
	return e.dispatch(cart.SetQuantity{LineID: lineID, Quantity: quantity})
}

func (e *Engine) Clear() domain.Snapshot {
	return e.dispatch(cart.Clear{})
}

// IsInCart checks for an exact variant when both color and size are given,
// otherwise for any line of the product.
func (e *Engine) IsInCart(productID, color, size string) bool {
	s := e.current()
	exact := color != "" && size != ""
	for _, item := range s.Items {
		if exact && item.Matches(productID, domain.Variant{Color: color, Size: size}) {
			return true
		}
		if !exact && item.ProductID == productID {
			return true
		}
	}
	return false
}

// Snapshot returns the current cart. The returned items are a copy.
func (e *Engine) Snapshot() domain.Snapshot {
	return e.current().Clone()
}

// Subscribe registers fn for every future snapshot and returns a function
// that removes it. Each call receives its own copy of the items. Calling the
// returned function more than once is safe.
func (e *Engine) Subscribe(fn func(domain.Snapshot)) func() {
	return e.hub.subscribe(fn)
}

// Subscribers reports how many callbacks are registered.
func (e *Engine) Subscribers() int {
	return e.hub.len()
}

// Close flushes the pending write. Mutations after Close are persisted
// synchronously.
func (e *Engine) Close(ctx context.Context) error {
	e.dispatchMu.Lock()
	e.closed = true
	e.dispatchMu.Unlock()
	return e.writer.close(ctx)
}

// IdleSince returns the time of the last read or mutation.
func (e *Engine) IdleSince() time.Time {
	return time.Unix(0, e.lastUsed.Load())
}

// dispatch applies op and returns a copy of the resulting snapshot.
func (e *Engine) dispatch(op cart.Operation) domain.Snapshot {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	e.touch()

	e.stateMu.Lock()
	next := cart.Reduce(e.snapshot, op)
	e.snapshot = next
	e.stateMu.Unlock()

	e.hub.publish(next)

	if e.closed {
		ctx, cancel := context.WithTimeout(context.Background(), e.saveTimeout)
		defer cancel()
		e.persister.Save(ctx, e.key, next)
		return next.Clone()
	}
	e.writer.submit(next)
	return next.Clone()
}

func (e *Engine) current() domain.Snapshot {
	e.touch()
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.snapshot
}

func (e *Engine) touch() {
	e.lastUsed.Store(time.Now().UnixNano())
}
