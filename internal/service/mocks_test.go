package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type mockPersister struct {
	m       sync.RWMutex
	stored  map[string]domain.Snapshot
	loadErr error
	loads   int
	saves   int
	deletes []string

	// loadStarted and loadRelease, when set, pause Load until released.
	loadStarted chan struct{}
	loadRelease chan struct{}
	// saveRelease, when set, pauses Save until closed.
	saveRelease chan struct{}
}

func newMockPersister() *mockPersister {
	return &mockPersister{stored: make(map[string]domain.Snapshot)}
}

func (m *mockPersister) Load(_ context.Context, key string) (domain.Snapshot, error) {
	if m.loadStarted != nil {
		m.loadStarted <- struct{}{}
		<-m.loadRelease
	}
	m.m.Lock()
	defer m.m.Unlock()
	m.loads++
	if m.loadErr != nil {
		return domain.Snapshot{}, m.loadErr
	}
	if s, ok := m.stored[key]; ok {
		return s, nil
	}
	return domain.EmptySnapshot(), nil
}

func (m *mockPersister) setLoadErr(err error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.loadErr = err
}

func (m *mockPersister) Save(_ context.Context, key string, s domain.Snapshot) {
	if m.saveRelease != nil {
		<-m.saveRelease
	}
	m.m.Lock()
	defer m.m.Unlock()
	m.saves++
	m.stored[key] = s
}

func (m *mockPersister) Delete(_ context.Context, key string) {
	m.m.Lock()
	defer m.m.Unlock()
	m.deletes = append(m.deletes, key)
	delete(m.stored, key)
}

func (m *mockPersister) get(key string) (domain.Snapshot, bool) {
	m.m.RLock()
	defer m.m.RUnlock()
	s, ok := m.stored[key]
	return s, ok
}

func (m *mockPersister) loadCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.loads
}

func (m *mockPersister) saveCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.saves
}

func mustAdd(t *testing.T, e *Engine, in domain.LineItemInput) domain.Snapshot {
	t.Helper()
	s, err := e.AddItem(in)
	require.NoError(t, err)
	return s
}

// sequentialIDs returns an IDGenerator producing line-1, line-2, ...
func sequentialIDs() IDGenerator {
	var mu sync.Mutex
	n := 0
	return func(domain.LineItemInput) string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("line-%d", n)
	}
}

func item(productID, color, size string, price int64, qty int) domain.LineItemInput {
	return domain.LineItemInput{
		ProductID: productID,
		Name:      "Product " + productID,
		Currency:  "VND",
		Color:     color,
		Size:      size,
		UnitPrice: decimal.NewFromInt(price),
		Quantity:  qty,
	}
}
