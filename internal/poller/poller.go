// Package poller clears carts once their checkout has completed.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	Topic   = "checkout-outbox"
	GroupID = "cart-engine-consumer"
)

var ErrMissingUserID = errors.New("missing or invalid user_id")

// Dropper clears the cart of a session.
// Consumers define this interface.
type Dropper interface {
	Drop(ctx context.Context, sessionID string)
}

type Poller struct {
	carts  Dropper
	reader *kafka.Reader
	logger *zap.Logger
}

func NewPoller(carts Dropper, logger *zap.Logger, brokers ...string) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{carts: carts, reader: reader, logger: logger}
}

// Run consumes checkout events until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("error reading message", zap.Error(err))
				time.Sleep(time.Second)
			}
			continue
		}
		if err := p.handle(ctx, m); err != nil {
			p.logger.Warn("skipping checkout event",
				zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

func (p *Poller) Close() error {
	if err := p.reader.Close(); err != nil {
		return fmt.Errorf("error closing reader: %w", err)
	}
	return nil
}

type checkoutEvent struct {
	UserID json.RawMessage `json:"user_id"`
}

func (p *Poller) handle(ctx context.Context, m kafka.Message) error {
	var event checkoutEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("error parsing message: %w", err)
	}

	sessionID, err := parseUserID(event.UserID)
	if err != nil {
		return err
	}

	p.carts.Drop(ctx, sessionID)
	p.logger.Info("cart cleared after checkout", zap.String("session_id", sessionID))
	return nil
}

// parseUserID accepts the id as a JSON string or number.
func parseUserID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", ErrMissingUserID
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", ErrMissingUserID
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if _, err := n.Int64(); err == nil {
			return n.String(), nil
		}
	}
	return "", ErrMissingUserID
}
