// Package aggregator implements the concurrent (venue,pair) -> PriceTick
// store. Each key is backed by an atomically-swapped pointer so readers
// never observe a torn tick; the outer map uses sync.Map so inserting a new
// key never blocks an unrelated reader.
package aggregator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
)

// slot wraps a single key's latest tick behind an atomic.Pointer so
// replacement is a single atomic store, independent of other keys.
type slot struct {
	tick atomic.Pointer[market.PriceTick]
}

// Aggregator is the lock-free concurrent map keyed by (venue,pair).
// Many readers, few writers: each venue's adapter task is the sole writer
// for the keys it owns, but any goroutine may read any key.
type Aggregator struct {
	slots sync.Map // market.Key -> *slot
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// Update inserts or replaces the tick for (tick.Venue, tick.PairID). Wait-
// free under no contention on an existing key, lock-free when a new key's
// slot must be created.
func (a *Aggregator) Update(tick market.PriceTick) {
	key := market.Key{Venue: tick.Venue, PairID: tick.PairID}
	v, _ := a.slots.LoadOrStore(key, &slot{})
	s := v.(*slot)
	t := tick
	s.tick.Store(&t)
}

// Get returns the latest tick for (venue,pairID), if any.
func (a *Aggregator) Get(venue market.Venue, pairID uint32) (market.PriceTick, bool) {
	v, ok := a.slots.Load(market.Key{Venue: venue, PairID: pairID})
	if !ok {
		return market.PriceTick{}, false
	}
	s := v.(*slot)
	p := s.tick.Load()
	if p == nil {
		return market.PriceTick{}, false
	}
	return *p, true
}

// GetAllForPair returns the latest tick from every venue that has priced
// pairID. Order is unspecified.
func (a *Aggregator) GetAllForPair(pairID uint32) []market.PriceTick {
	var out []market.PriceTick
	a.slots.Range(func(k, v any) bool {
		key := k.(market.Key)
		if key.PairID != pairID {
			return true
		}
		s := v.(*slot)
		if p := s.tick.Load(); p != nil {
			out = append(out, *p)
		}
		return true
	})
	return out
}

// GetAll returns every tick currently held, across all venues and pairs.
func (a *Aggregator) GetAll() []market.PriceTick {
	var out []market.PriceTick
	a.slots.Range(func(_, v any) bool {
		s := v.(*slot)
		if p := s.tick.Load(); p != nil {
			out = append(out, *p)
		}
		return true
	})
	return out
}

// CalculatePremium returns the raw bps premium buying on buyVenue's ask and
// selling on sellVenue's bid for pairID, with no quote normalization. This
// is the quick single-key version; PremiumMatrix is the authoritative,
// quote-aware path used by the detector.
func (a *Aggregator) CalculatePremium(buyVenue, sellVenue market.Venue, pairID uint32) (int32, bool) {
	buy, ok1 := a.Get(buyVenue, pairID)
	sell, ok2 := a.Get(sellVenue, pairID)
	if !ok1 || !ok2 || buy.Ask == 0 || sell.Bid == 0 {
		return 0, false
	}
	return fixedpoint.PremiumBPS(buy.Ask, sell.Bid), true
}

// FindBestOpportunity is a quick-scan preview: across every venue pricing
// pairID, it returns the venue with the lowest ask and the venue with the
// highest bid, and the naive bps between them, with no quote normalization
// applied. It exists purely to cheaply decide whether a pair is worth
// handing to the authoritative PremiumMatrix evaluation.
func (a *Aggregator) FindBestOpportunity(pairID uint32) (buyVenue, sellVenue market.Venue, bps int32, ok bool) {
	ticks := a.GetAllForPair(pairID)
	if len(ticks) < 2 {
		return 0, 0, 0, false
	}
	var minAskTick, maxBidTick market.PriceTick
	haveMin, haveMax := false, false
	for _, t := range ticks {
		if t.Ask != 0 && (!haveMin || t.Ask < minAskTick.Ask) {
			minAskTick = t
			haveMin = true
		}
		if t.Bid != 0 && (!haveMax || t.Bid > maxBidTick.Bid) {
			maxBidTick = t
			haveMax = true
		}
	}
	if !haveMin || !haveMax {
		return 0, 0, 0, false
	}
	return minAskTick.Venue, maxBidTick.Venue, fixedpoint.PremiumBPS(minAskTick.Ask, maxBidTick.Bid), true
}

// IsStale reports whether the tick at (venue,pairID) is older than
// maxAgeMs, or is considered stale when missing entirely.
func (a *Aggregator) IsStale(venue market.Venue, pairID uint32, maxAgeMs int64, now time.Time) bool {
	t, ok := a.Get(venue, pairID)
	if !ok {
		return true
	}
	age := now.UnixMilli() - t.TimestampMs
	return age > maxAgeMs
}

// Len returns the number of distinct (venue,pair) keys held. Intended for
// metrics/diagnostics, not the hot path.
func (a *Aggregator) Len() int {
	n := 0
	a.slots.Range(func(_, _ any) bool { n++; return true })
	return n
}
