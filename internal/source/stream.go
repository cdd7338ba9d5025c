package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"GreyPulse/internal/domain/models"
	"GreyPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// wsQuote is one push frame from a streaming GMP provider.
type wsQuote struct {
	Type    string  `json:"type"`
	Company string  `json:"company"`
	GMP     float64 `json:"gmp"`
	TS      int64   `json:"ts"` // unix seconds, 0 means "now"
}

// StreamAdapter keeps a live websocket to a push-based GMP provider and
// serves the latest quote per IPO on Fetch. The connection is owned by a
// background loop started with Start; Fetch itself never blocks on the
// network.
type StreamAdapter struct {
	id             string
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	mu     sync.RWMutex
	latest map[string]models.Observation
	conn   *websocket.Conn

	cancel context.CancelFunc
	done   chan struct{}
}

func NewStreamAdapter(id, url string, log *logger.Logger) *StreamAdapter {
	return &StreamAdapter{
		id:             id,
		url:            url,
		reconnectDelay: 5 * time.Second,
		pingInterval:   30 * time.Second,
		log:            log,
		latest:         make(map[string]models.Observation),
	}
}

func (a *StreamAdapter) ID() string { return a.id }

// Fetch returns a snapshot of the latest streamed quote per IPO. An empty
// snapshot with no error means the stream is up but has seen nothing yet.
func (a *StreamAdapter) Fetch(ctx context.Context) ([]models.Observation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.done == nil {
		return nil, fmt.Errorf("source %s: stream not started", a.id)
	}
	out := make([]models.Observation, 0, len(a.latest))
	for _, obs := range a.latest {
		out = append(out, obs)
	}
	return out, nil
}

// Start launches the connect-read-reconnect loop. It returns after the first
// connection attempt; later disconnects are retried in the background.
func (a *StreamAdapter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	if err := a.connect(ctx); err != nil {
		a.log.Warn("stream connect failed, will retry",
			logger.String("source", a.id),
			logger.Error(err))
	}
	go a.run(ctx)
	return nil
}

func (a *StreamAdapter) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.url, nil)
	if err != nil {
		return fmt.Errorf("source %s: dial: %w", a.id, err)
	}
	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
	a.log.Info("stream connected", logger.String("source", a.id))
	return nil
}

func (a *StreamAdapter) run(ctx context.Context) {
	defer close(a.done)
	ticker := time.NewTicker(a.pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.mu.RLock()
				conn := a.conn
				a.mu.RUnlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		a.mu.RLock()
		conn := a.conn
		a.mu.RUnlock()
		if conn == nil {
			if !a.sleep(ctx) {
				return
			}
			if err := a.connect(ctx); err != nil {
				continue
			}
			continue
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.log.Warn("stream read failed, reconnecting",
				logger.String("source", a.id),
				logger.Error(err))
			_ = conn.Close()
			a.mu.Lock()
			a.conn = nil
			a.mu.Unlock()
			continue
		}
		a.handleFrame(frame)
	}
}

func (a *StreamAdapter) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(a.reconnectDelay):
		return true
	}
}

func (a *StreamAdapter) handleFrame(frame []byte) {
	var q wsQuote
	if err := json.Unmarshal(frame, &q); err != nil {
		return
	}
	if q.Type != "" && q.Type != "gmp" {
		return
	}
	key := models.NormalizeIPOKey(q.Company)
	if key == "" {
		return
	}
	at := time.Now()
	if q.TS > 0 {
		at = time.Unix(q.TS, 0)
	}
	obs, err := models.NewObservation(key, a.id, q.GMP, at)
	if err != nil {
		return
	}
	a.mu.Lock()
	a.latest[key] = obs
	a.mu.Unlock()
}

// Close stops the loop and drops the connection.
func (a *StreamAdapter) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	if a.done != nil {
		<-a.done
	}
	return nil
}
