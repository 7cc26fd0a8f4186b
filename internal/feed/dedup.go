package feed

import (
	"sync"
	"time"
)

// Dedup drops ticks whose content hash was already seen within a TTL window.
// Upstream feeds replay frames on reconnect; this keeps the replays from
// re-entering the pipeline. Safe for concurrent use.
type Dedup struct {
	seen map[string]time.Time // tick hash -> last seen
	ttl  time.Duration
	mu   sync.Mutex
}

func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Seen reports whether hash was observed within the TTL window, recording it
// either way.
func (d *Dedup) Seen(hash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if last, ok := d.seen[hash]; ok && now.Sub(last) < d.ttl {
		return true
	}
	d.seen[hash] = now
	return false
}

// Sweep drops expired entries. Call periodically to bound memory.
func (d *Dedup) Sweep() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for hash, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, hash)
		}
	}
}

// Len returns the number of tracked hashes, expired or not.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
