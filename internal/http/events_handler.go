package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/logger"
	"go.uber.org/zap"
)

const heartbeatInterval = 15 * time.Second

// Events streams the cart as Server-Sent Events: one "snapshot" event on
// connect and one after every mutation. A slow client only gets the latest
// snapshot.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	log := logger.WithTrace(r.Context(), h.logger)

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	updates := make(chan domain.Snapshot, 1)
	unsubscribe := e.Subscribe(func(s domain.Snapshot) {
		// runs inside the mutation; never block
		for {
			select {
			case updates <- s:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSnapshotEvent(w, rc, e.Snapshot()); err != nil {
		log.Debug("event stream closed", zap.Error(err))
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case s := <-updates:
			if err := writeSnapshotEvent(w, rc, s); err != nil {
				log.Debug("event stream closed", zap.Error(err))
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func writeSnapshotEvent(w http.ResponseWriter, rc *http.ResponseController, s domain.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
