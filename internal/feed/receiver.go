package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/place-better/internal/config"
	"github.com/yourusername/place-better/internal/logger"
	"github.com/yourusername/place-better/internal/metrics"
	"github.com/yourusername/place-better/internal/repository"
)

const feedSource = "feed"

// ReconnectConfig controls reconnection behavior
type ReconnectConfig struct {
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultReconnectConfig returns default reconnection configuration
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 1.5,
	}
}

func (rc ReconnectConfig) next(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * rc.BackoffMultiplier)
	if d > rc.MaxBackoff {
		return rc.MaxBackoff
	}
	return d
}

// Receiver reads telegram frames from a websocket and appends them to the
// store. Binary messages are raw payloads; text messages are JSON Frames.
type Receiver struct {
	url       string
	dataSpec  string
	store     repository.TelegramStore
	dialer    *websocket.Dialer
	reconnect ReconnectConfig
	logger    *logger.IngestLogger

	mu              sync.RWMutex
	connected       bool
	lastMessageTime time.Time
	received        int64
}

// NewReceiver creates a receiver for the feed configuration
func NewReceiver(cfg *config.FeedConfig, store repository.TelegramStore, log *logrus.Logger) *Receiver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	rc := DefaultReconnectConfig()
	if cfg.ReconnectSeconds > 0 {
		rc.InitialBackoff = time.Duration(cfg.ReconnectSeconds) * time.Second
	}
	return &Receiver{
		url:       cfg.URL,
		dataSpec:  cfg.DataSpec,
		store:     store,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		reconnect: rc,
		logger:    logger.NewIngestLogger(log),
	}
}

// WithReconnect overrides the backoff schedule
func (r *Receiver) WithReconnect(rc ReconnectConfig) *Receiver {
	r.reconnect = rc
	return r
}

// Run connects and reads until ctx is done, reconnecting with backoff after
// every dropped connection. Store failures stop the receiver.
func (r *Receiver) Run(ctx context.Context) error {
	backoff := r.reconnect.InitialBackoff
	for {
		err := r.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		var storeErr *storeError
		if errors.As(err, &storeErr) {
			return storeErr.err
		}
		if err == nil {
			backoff = r.reconnect.InitialBackoff
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = r.reconnect.next(backoff)
	}
}

type storeError struct {
	err error
}

func (e *storeError) Error() string { return e.err.Error() }

// session runs one connection. It returns nil when the connection had
// delivered messages before dropping, so the backoff resets.
func (r *Receiver) session(ctx context.Context) error {
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		r.logger.LogFeedConnection(r.url, false, err)
		return fmt.Errorf("failed to connect to feed: %w", err)
	}
	r.setConnected(true)
	r.logger.LogFeedConnection(r.url, true, nil)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer func() {
		conn.Close()
		r.setConnected(false)
	}()

	delivered := false
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				r.logger.LogFeedConnection(r.url, false, err)
			}
			if delivered {
				return nil
			}
			return err
		}
		if err := r.handle(ctx, messageType, data); err != nil {
			return err
		}
		delivered = true
	}
}

func (r *Receiver) handle(ctx context.Context, messageType int, data []byte) error {
	var frame *Frame
	switch messageType {
	case websocket.BinaryMessage:
		frame = &Frame{Payload: data}
	case websocket.TextMessage:
		f, err := ParseFrame(data)
		if err != nil {
			r.logger.LogSkippedRecord("", "invalid_frame", err)
			return nil
		}
		frame = f
	default:
		return nil
	}

	t := frame.Telegram(r.dataSpec)
	if err := r.store.Append(ctx, t); err != nil {
		return &storeError{err: fmt.Errorf("failed to append telegram: %w", err)}
	}
	metrics.RecordIngested(t.Kind, feedSource, 1)

	r.mu.Lock()
	r.lastMessageTime = time.Now()
	r.received++
	r.mu.Unlock()
	return nil
}

func (r *Receiver) setConnected(connected bool) {
	r.mu.Lock()
	r.connected = connected
	r.mu.Unlock()
	metrics.SetFeedConnected(connected)
}

// IsConnected returns whether the feed is connected
func (r *Receiver) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// LastMessageTime returns the time of the last received telegram
func (r *Receiver) LastMessageTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastMessageTime
}

// Received returns the number of telegrams appended
func (r *Receiver) Received() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.received
}
