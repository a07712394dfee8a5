package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/auth"
	"github.com/fjod/go_cart/cart-engine/internal/checkout"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/persistence"
	"github.com/fjod/go_cart/cart-engine/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func setupTestRouter(t *testing.T) (http.Handler, *service.CartService) {
	t.Helper()

	store, err := persistence.NewBoltStore(filepath.Join(t.TempDir(), "cart.db"))
	require.NoError(t, err)

	carts := service.NewCartService(persistence.NewPersister(store, nil), nil)
	t.Cleanup(func() {
		carts.Close(context.Background())
		store.Close()
	})

	h := NewCartHandler(carts, 5*time.Second, zap.NewNop())
	return NewRouter(h, auth.NewAuthenticator(testSecret), zap.NewNop()), carts
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(auth.SessionHeader, "guest-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) domain.Snapshot {
	t.Helper()
	var s domain.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s), rec.Body.String())
	return s
}

const addBlack = `{"productId":"P1","name":"Tee","unitPrice":100000,"quantity":1,"color":"Đen","size":"M","currency":"VND"}`

func TestRouter_Health(t *testing.T) {
	router, _ := setupTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_RequiresSession(t *testing.T) {
	router, _ := setupTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unauthenticated", body.Code)
}

func TestRouter_BearerSession(t *testing.T) {
	router, carts := setupTestRouter(t)
	token, err := auth.NewAuthenticator(testSecret).Issue("user-9", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(addBlack))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	e, err := carts.Engine(context.Background(), "user-9")
	require.NoError(t, err)
	assert.Equal(t, 1, e.Snapshot().ItemCount)
}

func TestRouter_AddMergesAndGet(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/cart/items", addBlack)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, router, http.MethodPost, "/api/v1/cart/items",
		`{"productId":"P1","name":"Tee","unitPrice":"100000","quantity":2,"color":"Đen","size":"M"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	s := decodeSnapshot(t, do(t, router, http.MethodGet, "/api/v1/cart", ""))
	require.Len(t, s.Items, 1)
	assert.Equal(t, 3, s.Items[0].Quantity)
	assert.Equal(t, "VND", s.Items[0].Currency)
	assert.True(t, decimal.NewFromInt(300000).Equal(s.Total))
	assert.Equal(t, 3, s.ItemCount)
}

func TestRouter_AddValidation(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/cart/items", `{"name":"Tee","unitPrice":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_argument", body.Code)
	assert.Equal(t, "productId", body.Details)

	rec = do(t, router, http.MethodPost, "/api/v1/cart/items", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_UpdateAndRemove(t *testing.T) {
	router, _ := setupTestRouter(t)
	s := decodeSnapshot(t, do(t, router, http.MethodPost, "/api/v1/cart/items", addBlack))
	lineID := s.Items[0].ID

	s = decodeSnapshot(t, do(t, router, http.MethodPut, "/api/v1/cart/items/"+lineID, `{"quantity":5}`))
	assert.Equal(t, 5, s.ItemCount)

	rec := do(t, router, http.MethodPut, "/api/v1/cart/items/"+lineID, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodDelete, "/api/v1/cart/items/unknown", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decodeSnapshot(t, rec).ItemCount)

	s = decodeSnapshot(t, do(t, router, http.MethodPut, "/api/v1/cart/items/"+lineID, `{"quantity":0}`))
	assert.Empty(t, s.Items)
}

func TestRouter_Clear(t *testing.T) {
	router, _ := setupTestRouter(t)
	do(t, router, http.MethodPost, "/api/v1/cart/items", addBlack)

	s := decodeSnapshot(t, do(t, router, http.MethodDelete, "/api/v1/cart", ""))
	assert.Empty(t, s.Items)
	assert.True(t, s.Total.IsZero())
}

func TestRouter_Contains(t *testing.T) {
	router, _ := setupTestRouter(t)
	do(t, router, http.MethodPost, "/api/v1/cart/items", addBlack)

	tests := []struct {
		query string
		want  bool
	}{
		{"product_id=P1&color=%C4%90en&size=M", true},
		{"product_id=P1&color=Tr%E1%BA%AFng&size=M", false},
		{"product_id=P1", true},
		{"product_id=P2", false},
	}
	for _, tt := range tests {
		rec := do(t, router, http.MethodGet, "/api/v1/cart/contains?"+tt.query, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body ContainsResponseDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.want, body.InCart, tt.query)
	}

	rec := do(t, router, http.MethodGet, "/api/v1/cart/contains", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Checkout(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/v1/cart/checkout", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	do(t, router, http.MethodPost, "/api/v1/cart/items", addBlack)

	rec = do(t, router, http.MethodGet, "/api/v1/cart/checkout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary checkout.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, decimal.NewFromInt(130000).Equal(summary.Total))

	rec = do(t, router, http.MethodPost, "/api/v1/cart/checkout", `{"paymentMethod":"cod","address":"1 Le Loi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var order checkout.OrderRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, checkout.PaymentCOD, order.PaymentMethod)
	assert.Len(t, order.Items, 1)

	rec = do(t, router, http.MethodPost, "/api/v1/cart/checkout", `{"paymentMethod":"card","address":"1 Le Loi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_EventsStream(t *testing.T) {
	router, _ := setupTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/cart/events", nil)
	require.NoError(t, err)
	req.Header.Set(auth.SessionHeader, "guest-1")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan domain.Snapshot, 8)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var s domain.Snapshot
				if json.Unmarshal([]byte(data), &s) == nil {
					events <- s
				}
			}
		}
		close(events)
	}()

	select {
	case first := <-events:
		assert.Equal(t, 0, first.ItemCount)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial snapshot event")
	}

	addReq, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/cart/items", bytes.NewBufferString(addBlack))
	require.NoError(t, err)
	addReq.Header.Set(auth.SessionHeader, "guest-1")
	addResp, err := srv.Client().Do(addReq)
	require.NoError(t, err)
	addResp.Body.Close()

	select {
	case s := <-events:
		assert.Equal(t, 1, s.ItemCount)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot event after mutation")
	}
}

type unreadableStore struct {
	*persistence.BoltStore
	failing atomic.Bool
}

func (s *unreadableStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.failing.Load() {
		return nil, errors.New("connection refused")
	}
	return s.BoltStore.Get(ctx, key)
}

func TestRouter_UnreadableStoreKeepsSavedCart(t *testing.T) {
	bolt, err := persistence.NewBoltStore(filepath.Join(t.TempDir(), "cart.db"))
	require.NoError(t, err)
	defer bolt.Close()
	ctx := context.Background()

	saved := persistence.NewPersister(bolt, nil)
	saved.Save(ctx, persistence.Key("guest-1"), domain.NewSnapshot([]domain.LineItem{
		{ID: "a", ProductID: "P1", Currency: "VND", UnitPrice: decimal.NewFromInt(100000), Quantity: 2},
	}))

	store := &unreadableStore{BoltStore: bolt}
	store.failing.Store(true)
	carts := service.NewCartService(persistence.NewPersister(store, nil), nil)
	defer carts.Close(ctx)
	router := NewRouter(NewCartHandler(carts, 5*time.Second, zap.NewNop()), auth.NewAuthenticator(testSecret), zap.NewNop())

	rec := do(t, router, http.MethodGet, "/api/v1/cart", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "service_unavailable", body.Code)

	store.failing.Store(false)
	s := decodeSnapshot(t, do(t, router, http.MethodGet, "/api/v1/cart", ""))
	assert.Equal(t, 2, s.ItemCount)
}
