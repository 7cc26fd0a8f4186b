package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/synthbet/arbpipeline/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	handshakeTimeout = 15 * time.Second
)

// WSConfig holds the websocket source parameters.
type WSConfig struct {
	URL string
	// ReconnectMax caps consecutive failed reconnect attempts; 0 means
	// retry forever.
	ReconnectMax     int
	ReconnectBackoff time.Duration
	// DedupTTL is the replay suppression window.
	DedupTTL time.Duration
	// Buffer is the tick channel capacity.
	Buffer int
}

// tickFrame is the upstream JSON wire format for one odds tick.
type tickFrame struct {
	Type            string    `json:"type"`
	MarketID        string    `json:"market_id"`
	EventID         string    `json:"event_id"`
	Sport           string    `json:"sport"`
	MarketType      string    `json:"market_type"`
	Side            string    `json:"side"`
	Price           float64   `json:"price"`
	Exchange        string    `json:"exchange"`
	ObservedAt      time.Time `json:"observed_at"`
	TimeRemainingMS int64     `json:"time_remaining_ms"`
	Period          int       `json:"period"`
}

// WSSource consumes odds ticks from an upstream websocket feed. It decodes
// JSON tick frames, suppresses replayed duplicates, and reconnects with
// exponential backoff on disconnect.
type WSSource struct {
	cfg    WSConfig
	dedup  *Dedup
	out    chan domain.OddsTick
	logger *slog.Logger
}

func NewWSSource(cfg WSConfig, logger *slog.Logger) *WSSource {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	return &WSSource{
		cfg:    cfg,
		dedup:  NewDedup(cfg.DedupTTL),
		out:    make(chan domain.OddsTick, cfg.Buffer),
		logger: logger.With(slog.String("component", "ws_feed")),
	}
}

func (s *WSSource) Ticks() <-chan domain.OddsTick { return s.out }

// Run connects and consumes frames until ctx is cancelled. Each disconnect
// triggers a reconnect with doubling backoff; after ReconnectMax consecutive
// failures Run gives up and returns the last error wrapped in ErrFeedClosed.
func (s *WSSource) Run(ctx context.Context) error {
	defer close(s.out)

	backoff := s.cfg.ReconnectBackoff
	failures := 0
	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	for {
		err := s.runConnection(ctx, sweep.C)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		failures++
		if s.cfg.ReconnectMax > 0 && failures > s.cfg.ReconnectMax {
			return fmt.Errorf("feed: giving up after %d reconnects: %w: %w",
				failures-1, domain.ErrFeedClosed, err)
		}
		s.logger.Warn("feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff),
			slog.Int("failures", failures),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > time.Minute {
			backoff = time.Minute
		}
	}
}

func (s *WSSource) runConnection(ctx context.Context, sweep <-chan time.Time) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect %s: %w", s.cfg.URL, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Close the connection when ctx is cancelled so ReadMessage unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
				return
			case <-stop:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	s.logger.Info("feed connected", slog.String("url", s.cfg.URL))

	for {
		select {
		case <-sweep:
			s.dedup.Sweep()
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: read: %w", err)
		}

		tick, ok := s.decode(raw)
		if !ok {
			continue
		}
		if s.dedup.Seen(tick.Hash()) {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.out <- tick:
		}
	}
}

// decode parses one frame. Non-tick frames and malformed ticks are dropped;
// the upstream mixes heartbeats and subscription acks into the same stream.
func (s *WSSource) decode(raw []byte) (domain.OddsTick, bool) {
	var frame tickFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return domain.OddsTick{}, false
	}
	if frame.Type != "tick" {
		return domain.OddsTick{}, false
	}
	if frame.MarketID == "" || frame.EventID == "" || frame.Price == 0 {
		s.logger.Debug("dropping malformed tick", slog.String("market_id", frame.MarketID))
		return domain.OddsTick{}, false
	}
	return domain.OddsTick{
		MarketID:      frame.MarketID,
		EventID:       frame.EventID,
		Sport:         domain.Sport(frame.Sport),
		MarketType:    domain.MarketType(frame.MarketType),
		Side:          domain.TickSide(frame.Side),
		Price:         frame.Price,
		Exchange:      frame.Exchange,
		ObservedAt:    frame.ObservedAt,
		TimeRemaining: time.Duration(frame.TimeRemainingMS) * time.Millisecond,
		Period:        frame.Period,
	}, true
}
