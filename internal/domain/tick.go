// Package domain defines the core entities of the tick-processing and
// synthetic arbitrage pipeline, together with the port interfaces implemented
// by the cache, store, and blob adapters.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Sport identifies the sport a market belongs to.
type Sport string

const (
	SportNBA Sport = "nba"
	SportNFL Sport = "nfl"
	SportMLB Sport = "mlb"
	SportNHL Sport = "nhl"
)

// MarketType is the kind of market a tick prices.
type MarketType string

const (
	MarketMoneyline MarketType = "moneyline"
	MarketSpread    MarketType = "spread"
	MarketTotal     MarketType = "total"
	MarketProp      MarketType = "prop"
)

// TickSide is the side of the market the price refers to.
type TickSide string

const (
	SideHome  TickSide = "home"
	SideAway  TickSide = "away"
	SideOver  TickSide = "over"
	SideUnder TickSide = "under"
)

// OddsTick is a single timestamped price observation for one market. Ticks
// are produced by an upstream feed and are immutable once created.
type OddsTick struct {
	MarketID   string
	EventID    string
	Sport      Sport
	MarketType MarketType
	Side       TickSide
	Price      float64 // American odds; never 0
	Exchange   string
	ObservedAt time.Time
	// Live-market fields; zero values for pre-game ticks.
	TimeRemaining time.Duration
	Period        int
}

// Hash returns a deterministic content hash over the tick's source fields.
// Two ticks with identical source fields always hash identically, which makes
// the hash usable as an idempotency key for de-duplication.
func (t OddsTick) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%d|%d|%d",
		t.MarketID, t.EventID, t.Sport, t.MarketType, t.Side, t.Exchange,
		strconv.FormatFloat(t.Price, 'f', -1, 64),
		t.ObservedAt.UnixNano(),
		int64(t.TimeRemaining), t.Period,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// TickMetrics is the derived-metrics block computed for one tick.
type TickMetrics struct {
	ImpliedProbability float64
	KellyFraction      float64
	ExpectedValue      float64
}

// ProcessedTick is an OddsTick enriched with its content hash and derived
// metrics. It is created exactly once by the tick processor and never mutated
// afterwards.
type ProcessedTick struct {
	OddsTick
	TickHash    string
	Metrics     TickMetrics
	ProcessedAt time.Time
}
