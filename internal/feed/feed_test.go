package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/synthbet/arbpipeline/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDedupWindow(t *testing.T) {
	d := NewDedup(50 * time.Millisecond)

	if d.Seen("h1") {
		t.Fatal("first sighting reported as duplicate")
	}
	if !d.Seen("h1") {
		t.Fatal("second sighting not reported as duplicate")
	}
	if d.Seen("h2") {
		t.Fatal("unrelated hash reported as duplicate")
	}

	time.Sleep(60 * time.Millisecond)
	if d.Seen("h1") {
		t.Fatal("expired hash still reported as duplicate")
	}
}

func TestDedupSweep(t *testing.T) {
	d := NewDedup(10 * time.Millisecond)
	d.Seen("h1")
	d.Seen("h2")
	time.Sleep(20 * time.Millisecond)
	d.Seen("h3")

	d.Sweep()
	if got := d.Len(); got != 1 {
		t.Fatalf("tracked = %d after sweep, want 1", got)
	}
}

func TestSliceSourceReplaysAndCloses(t *testing.T) {
	ticks := []domain.OddsTick{
		{MarketID: "mkt-1", EventID: "evt", Price: -150},
		{MarketID: "mkt-2", EventID: "evt", Price: 120},
	}
	src := NewSliceSource(ticks)

	done := make(chan error, 1)
	go func() { done <- src.Run(context.Background()) }()

	var got []domain.OddsTick
	for tick := range src.Ticks() {
		got = append(got, tick)
	}
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 2 || got[0].MarketID != "mkt-1" || got[1].MarketID != "mkt-2" {
		t.Fatalf("got %+v", got)
	}
}

func TestDecode(t *testing.T) {
	s := NewWSSource(WSConfig{URL: "ws://unused", DedupTTL: time.Minute}, testLogger())
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{
			name: "valid tick",
			raw: `{"type":"tick","market_id":"mkt-ml","event_id":"nba-lal-bos-20260314",
				"sport":"nba","market_type":"moneyline","side":"home","price":-150,
				"exchange":"pinnacle","observed_at":"2026-03-14T19:30:00Z",
				"time_remaining_ms":420000,"period":3}`,
			ok: true,
		},
		{"heartbeat", `{"type":"heartbeat"}`, false},
		{"subscription ack", `{"type":"subscribed","channel":"ticks"}`, false},
		{"missing market", `{"type":"tick","event_id":"e","price":-110}`, false},
		{"zero price", `{"type":"tick","market_id":"m","event_id":"e","price":0}`, false},
		{"not json", `tick -150`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tick, ok := s.decode([]byte(tt.raw))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if tick.MarketID != "mkt-ml" || tick.Sport != domain.SportNBA {
				t.Fatalf("decoded %+v", tick)
			}
			if tick.TimeRemaining != 7*time.Minute {
				t.Fatalf("time remaining = %v, want 7m", tick.TimeRemaining)
			}
		})
	}
}

func TestWSSourceConsumesAndDeduplicates(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frame := `{"type":"tick","market_id":"mkt-%s","event_id":"evt","sport":"nba",
		"market_type":"moneyline","side":"home","price":-150,"exchange":"pinnacle",
		"observed_at":"2026-03-14T19:30:00Z"}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		frames := []string{
			strings.Replace(frame, "%s", "a", 1),
			`{"type":"heartbeat"}`,
			strings.Replace(frame, "%s", "a", 1), // replay of the first
			strings.Replace(frame, "%s", "b", 1),
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Give the client time to drain before dropping the connection.
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	src := NewWSSource(WSConfig{
		URL:              "ws" + strings.TrimPrefix(srv.URL, "http"),
		ReconnectMax:     1,
		ReconnectBackoff: 10 * time.Millisecond,
		DedupTTL:         time.Minute,
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	var got []domain.OddsTick
	for tick := range src.Ticks() {
		got = append(got, tick)
		if len(got) == 2 {
			cancel()
		}
	}
	<-done

	if len(got) != 2 {
		t.Fatalf("got %d ticks, want 2 (replay and heartbeat dropped)", len(got))
	}
	if got[0].MarketID != "mkt-a" || got[1].MarketID != "mkt-b" {
		t.Fatalf("ticks = %s, %s", got[0].MarketID, got[1].MarketID)
	}
}

func TestWSSourceGivesUpAfterMaxReconnects(t *testing.T) {
	src := NewWSSource(WSConfig{
		URL:              "ws://127.0.0.1:1", // nothing listens here
		ReconnectMax:     2,
		ReconnectBackoff: time.Millisecond,
		DedupTTL:         time.Minute,
	}, testLogger())

	err := src.Run(context.Background())
	if !errors.Is(err, domain.ErrFeedClosed) {
		t.Fatalf("err = %v, want ErrFeedClosed", err)
	}
}
