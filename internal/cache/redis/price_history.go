package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// PriceHistory implements domain.PriceHistory using a Redis list per market.
// Points are LPUSHed as "price|unixnano" and the list is trimmed to
// maxPoints, giving a bounded rolling window for the correlation analyzer.
type PriceHistory struct {
	rdb       *redis.Client
	maxPoints int
}

// NewPriceHistory creates a PriceHistory backed by the given Client.
func NewPriceHistory(c *Client, maxPoints int) *PriceHistory {
	if maxPoints <= 0 {
		maxPoints = 512
	}
	return &PriceHistory{rdb: c.Underlying(), maxPoints: maxPoints}
}

func historyKey(marketID string) string {
	return "pricehist:" + marketID
}

// Append pushes one observation onto the market's rolling window and trims
// the window to its configured size. Both commands run in one pipeline.
func (ph *PriceHistory) Append(ctx context.Context, marketID string, pt domain.PricePoint) error {
	entry := strconv.FormatFloat(pt.Price, 'f', -1, 64) + "|" +
		strconv.FormatInt(pt.ObservedAt.UnixNano(), 10)

	pipe := ph.rdb.Pipeline()
	pipe.LPush(ctx, historyKey(marketID), entry)
	pipe.LTrim(ctx, historyKey(marketID), 0, int64(ph.maxPoints-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: append price history %s: %w", marketID, err)
	}
	return nil
}

// Window returns up to n most recent points, oldest first. A market with no
// history yields an empty slice, not an error.
func (ph *PriceHistory) Window(ctx context.Context, marketID string, n int) ([]domain.PricePoint, error) {
	if n <= 0 || n > ph.maxPoints {
		n = ph.maxPoints
	}

	entries, err := ph.rdb.LRange(ctx, historyKey(marketID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read price history %s: %w", marketID, err)
	}

	// LRange returns newest first; reverse into chronological order.
	points := make([]domain.PricePoint, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		pt, err := parsePoint(entries[i])
		if err != nil {
			return nil, fmt.Errorf("redis: price history %s: %w", marketID, err)
		}
		points = append(points, pt)
	}
	return points, nil
}

func parsePoint(entry string) (domain.PricePoint, error) {
	price, tsStr, ok := strings.Cut(entry, "|")
	if !ok {
		return domain.PricePoint{}, fmt.Errorf("malformed entry %q", entry)
	}
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	nano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("parse timestamp %q: %w", tsStr, err)
	}
	return domain.PricePoint{Price: p, ObservedAt: time.Unix(0, nano)}, nil
}

// Compile-time interface check.
var _ domain.PriceHistory = (*PriceHistory)(nil)
