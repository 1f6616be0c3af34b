// Package orderbook holds the per-(venue,pair) depth cache: sorted bid/ask
// levels, bounded to a maximum depth, updated by snapshot replace or
// incremental delta apply. Each cache is exclusively owned by the adapter
// that owns the venue's socket; there is no internal locking because it is
// never shared across goroutines.
package orderbook

import (
	"sort"
	"time"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
)

// DefaultMaxLevels is the default bound on levels retained per side.
const DefaultMaxLevels = 20

// Level is one price/size pair in the book.
type Level struct {
	Price fixedpoint.FixedPoint
	Size  fixedpoint.FixedPoint
}

// Cache holds bid and ask levels for one (venue,pair), bounded to MaxLevels
// per side. Bids iterate descending by price, asks ascending.
type Cache struct {
	MaxLevels int

	bids []Level // descending by price
	asks []Level // ascending by price

	lastUpdate time.Time
}

// New creates an empty cache bounded to maxLevels per side (DefaultMaxLevels
// if maxLevels<=0).
func New(maxLevels int) *Cache {
	if maxLevels <= 0 {
		maxLevels = DefaultMaxLevels
	}
	return &Cache{MaxLevels: maxLevels}
}

// ApplySnapshot replaces the entire cached book. Levels with zero size are
// dropped; remaining levels are sorted into the correct order and trimmed
// to MaxLevels, worst-price levels first.
func (c *Cache) ApplySnapshot(bids, asks []Level) {
	c.bids = sortAndTrim(bids, true, c.MaxLevels)
	c.asks = sortAndTrim(asks, false, c.MaxLevels)
	c.lastUpdate = time.Now()
}

// ApplyDelta mutates specific price levels: a size of zero removes the
// level, otherwise the level is inserted or replaced in sorted order. The
// result is re-trimmed to MaxLevels per side.
func (c *Cache) ApplyDelta(bidDeltas, askDeltas []Level) {
	c.bids = applySide(c.bids, bidDeltas, true, c.MaxLevels)
	c.asks = applySide(c.asks, askDeltas, false, c.MaxLevels)
	c.lastUpdate = time.Now()
}

// Clear empties both sides, used on disconnect/semantic-error cache resets.
func (c *Cache) Clear() {
	c.bids = nil
	c.asks = nil
}

// Bids returns the cached bid levels, descending by price. The returned
// slice must not be mutated by the caller.
func (c *Cache) Bids() []Level { return c.bids }

// Asks returns the cached ask levels, ascending by price. The returned
// slice must not be mutated by the caller.
func (c *Cache) Asks() []Level { return c.asks }

// BestBid returns the best bid level and whether one exists.
func (c *Cache) BestBid() (Level, bool) {
	if len(c.bids) == 0 {
		return Level{}, false
	}
	return c.bids[0], true
}

// BestAsk returns the best ask level and whether one exists.
func (c *Cache) BestAsk() (Level, bool) {
	if len(c.asks) == 0 {
		return Level{}, false
	}
	return c.asks[0], true
}

// LastUpdate returns the timestamp of the most recent snapshot/delta apply.
func (c *Cache) LastUpdate() time.Time { return c.lastUpdate }

// Valid checks the book invariants: strictly ordered, no zero-size levels,
// and crossed-book prevention (best bid < best ask) when both sides are
// populated.
func (c *Cache) Valid() bool {
	for i := 1; i < len(c.bids); i++ {
		if c.bids[i].Price >= c.bids[i-1].Price {
			return false
		}
	}
	for i := 1; i < len(c.asks); i++ {
		if c.asks[i].Price <= c.asks[i-1].Price {
			return false
		}
	}
	for _, l := range c.bids {
		if l.Size == 0 {
			return false
		}
	}
	for _, l := range c.asks {
		if l.Size == 0 {
			return false
		}
	}
	if len(c.bids) > 0 && len(c.asks) > 0 && c.bids[0].Price >= c.asks[0].Price {
		return false
	}
	return true
}

// sortAndTrim sorts levels (descending for bids, ascending for asks),
// drops zero-size levels, and trims to maxLevels keeping the best prices.
func sortAndTrim(levels []Level, descending bool, maxLevels int) []Level {
	out := make([]Level, 0, len(levels))
	for _, l := range levels {
		if l.Size == 0 {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	// dedupe same-price levels (keep last write, which is already in place
	// since delta application always supersedes; for snapshot input this
	// only matters if the wire format sent dup levels).
	out = dedupe(out)
	if len(out) > maxLevels {
		out = out[:maxLevels]
	}
	return out
}

func dedupe(levels []Level) []Level {
	if len(levels) < 2 {
		return levels
	}
	out := levels[:1]
	for _, l := range levels[1:] {
		if l.Price == out[len(out)-1].Price {
			out[len(out)-1] = l
			continue
		}
		out = append(out, l)
	}
	return out
}

// applySide merges deltas into an already-sorted side, maintaining order
// and the MaxLevels bound. size=0 in a delta removes the level.
func applySide(current []Level, deltas []Level, descending bool, maxLevels int) []Level {
	byPrice := make(map[fixedpoint.FixedPoint]fixedpoint.FixedPoint, len(current)+len(deltas))
	for _, l := range current {
		byPrice[l.Price] = l.Size
	}
	for _, d := range deltas {
		if d.Size == 0 {
			delete(byPrice, d.Price)
			continue
		}
		byPrice[d.Price] = d.Size
	}
	merged := make([]Level, 0, len(byPrice))
	for p, s := range byPrice {
		merged = append(merged, Level{Price: p, Size: s})
	}
	return sortAndTrim(merged, descending, maxLevels)
}
