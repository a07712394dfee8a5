package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/persistence"
	"github.com/fjod/go_cart/cart-engine/internal/service"
	"github.com/redis/go-redis/v9"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
	"gotest.tools/v3/assert"
)

type recordingDropper struct {
	mu      sync.Mutex
	dropped []string
}

func (r *recordingDropper) Drop(_ context.Context, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, sessionID)
}

func TestPoller_Handle(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    []string
		wantErr bool
	}{
		{"string id", `{"checkout_id":"c1","user_id":"123"}`, []string{"123"}, false},
		{"numeric id", `{"user_id":42}`, []string{"42"}, false},
		{"missing id", `{"checkout_id":"c1"}`, nil, true},
		{"empty id", `{"user_id":""}`, nil, true},
		{"fractional id", `{"user_id":1.5}`, nil, true},
		{"not json", `checkout done`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &recordingDropper{}
			p := &Poller{carts: d, logger: zap.NewNop()}

			err := p.handle(context.Background(), kafkaGo.Message{Value: []byte(tt.value)})
			if tt.wantErr {
				assert.Assert(t, err != nil)
			} else {
				assert.NilError(t, err)
			}
			assert.DeepEqual(t, tt.want, d.dropped)
		})
	}
}

func setupTestCarts(t *testing.T) (*service.CartService, *persistence.RedisStore, func()) {
	// Create an in-memory Redis server
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	store := persistence.NewRedisStore(client, time.Hour)
	carts := service.NewCartService(persistence.NewPersister(store, nil), nil)

	cleanup := func() {
		carts.Close(context.Background())
		client.Close()
		mr.Close()
	}
	return carts, store, cleanup
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestPoller_Run(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	carts, store, cleanupCarts := setupTestCarts(t)
	defer cleanupCarts()
	broker, cleanupKafka := setupKafka(t)
	defer cleanupKafka()
	createTopic(t, broker, Topic)

	// a loaded session and one that only exists in the store
	loaded, err := carts.Engine(ctx, "123")
	require.NoError(t, err)
	_, err = loaded.AddItem(domain.LineItemInput{
		ProductID: "P1", Name: "Tee", Currency: "VND", Color: "Đen", Size: "M",
		UnitPrice: decimal.NewFromInt(100000), Quantity: 1,
	})
	require.NoError(t, err)
	stored, err := persistence.Encode(domain.NewSnapshot([]domain.LineItem{
		{ID: "a", ProductID: "P2", UnitPrice: decimal.NewFromInt(5), Quantity: 1},
	}))
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, persistence.Key("456"), stored))

	p := NewPoller(carts, zap.NewNop(), broker)
	defer p.Close()

	w := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(broker),
		Topic:                  Topic,
		Balancer:               &kafkaGo.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	var msgs []kafkaGo.Message
	for _, id := range []string{"123", "456"} {
		payload, err := json.Marshal(map[string]interface{}{
			"checkout_id":  "ch-" + id,
			"user_id":      id,
			"total_amount": "1",
			"currency":     "VND",
		})
		require.NoError(t, err)
		msgs = append(msgs, kafkaGo.Message{
			Key:     []byte("ch-" + id),
			Value:   payload,
			Headers: []kafkaGo.Header{{Key: "event_type", Value: []byte("checkout")}},
		})
	}
	require.NoError(t, w.WriteMessages(ctx, msgs...))
	w.Close()

	go p.Run(ctx)

	require.Eventually(t, func() bool {
		return loaded.Snapshot().IsEmpty()
	}, 30*time.Second, 500*time.Millisecond)

	require.Eventually(t, func() bool {
		raw, err := store.Get(ctx, persistence.Key("456"))
		if err != nil {
			return false
		}
		s, err := persistence.Decode(raw)
		return err == nil && s.IsEmpty()
	}, 30*time.Second, 500*time.Millisecond)
}
