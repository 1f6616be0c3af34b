// Package matrix implements the per-pair premium matrix: the set of venue
// entries pricing one asset pair, and the quote-normalization rules that
// turn a pair of venue entries into a usdlike premium and, for Korean
// venues, a kimchi premium.
package matrix

import (
	"sort"
	"sync"
	"time"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
)

// Entry holds the latest state known for one venue on one pair.
type Entry struct {
	Venue       market.Venue
	Quote       market.QuoteCurrency
	Bid, Ask    fixedpoint.FixedPoint
	BidSize     fixedpoint.FixedPoint
	AskSize     fixedpoint.FixedPoint
	LastUpdate  int64 // unix millis
}

// Rates are the per-call forex/stablecoin inputs the matrix needs to
// normalize KRW-quoted venues. A zero value in any field means "not
// available" and normalization degrades accordingly.
type Rates struct {
	UsdKrw           fixedpoint.FixedPoint
	UsdtKrwPerVenue  map[market.Venue]fixedpoint.FixedPoint
	UsdcKrwPerVenue  map[market.Venue]fixedpoint.FixedPoint
	UsdtUsd          fixedpoint.FixedPoint
	UsdcUsd          fixedpoint.FixedPoint
}

func (r Rates) usdtKrw(v market.Venue) (fixedpoint.FixedPoint, bool) {
	rate, ok := r.UsdtKrwPerVenue[v]
	return rate, ok && !rate.IsZero()
}

func (r Rates) usdcKrw(v market.Venue) (fixedpoint.FixedPoint, bool) {
	rate, ok := r.UsdcKrwPerVenue[v]
	return rate, ok && !rate.IsZero()
}

// SizeReason mirrors the detector's optimal_size_reason vocabulary for the
// conversion-failure case the matrix itself can produce.
type SizeReason int

const (
	ReasonOk SizeReason = iota
	ReasonNoConversionRate
)

// Evaluation is the result of evaluating one ordered (buy,sell) venue pair.
type Evaluation struct {
	BuyVenue, SellVenue   market.Venue
	BuyQuote, SellQuote   market.QuoteCurrency
	BestAsk, BestBid      fixedpoint.FixedPoint // native-quote prices
	RawAsk, RawBid        fixedpoint.FixedPoint // same as BestAsk/BestBid; kept distinct for Korean raw-KRW callers
	AskSize, BidSize      fixedpoint.FixedPoint
	UsdlikeBPS            int32
	UsdlikeOk              bool
	KimchiBPS             int32
	KimchiOk               bool
	BuyTS, SellTS          int64
	Reason                 SizeReason
}

// Matrix holds every venue's latest entry for one pair. Entries are
// protected by a single mutex: unlike the aggregator, a Matrix instance is
// owned and single-writer-updated by one detector goroutine per pair, so a
// plain RWMutex is simpler and sufficient here.
type Matrix struct {
	mu      sync.RWMutex
	entries map[market.Venue]Entry
}

// New creates an empty per-pair matrix.
func New() *Matrix {
	return &Matrix{entries: make(map[market.Venue]Entry)}
}

// Update inserts or replaces the entry for tick.Venue.
func (m *Matrix) Update(tick market.PriceTick) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[tick.Venue] = Entry{
		Venue:      tick.Venue,
		Quote:      tick.Quote,
		Bid:        tick.Bid,
		Ask:        tick.Ask,
		BidSize:    tick.BidSize,
		AskSize:    tick.AskSize,
		LastUpdate: tick.TimestampMs,
	}
}

// Entry returns the stored entry for venue, if any.
func (m *Matrix) Entry(venue market.Venue) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[venue]
	return e, ok
}

// Len returns the number of venues currently pricing this pair.
func (m *Matrix) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// parityOrUnity returns rate if it's configured, else 1.0 — used as the
// "global fallback" stablecoin parity when a venue-specific USDT/USD or
// USDC/USD observation isn't available.
func parityOrUnity(rate fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	if rate.IsZero() {
		return fixedpoint.FromDecimal(1)
	}
	return rate
}

// usdEquivalent converts price (quoted in e.Quote on venue e.Venue) to a
// USD-equivalent value. counterpartyQuote picks which KRW cross-rate to use
// when e is KRW-quoted. ok is false only when a required KRW cross-rate is
// missing; USD-like legs always succeed (falling back to 1:1 parity).
func usdEquivalent(e Entry, price fixedpoint.FixedPoint, counterpartyQuote market.QuoteCurrency, rates Rates) (fixedpoint.FixedPoint, bool) {
	switch e.Quote {
	case market.QuoteKRW:
		if counterpartyQuote == market.QuoteUSDC {
			rate, ok := rates.usdcKrw(e.Venue)
			if !ok {
				return 0, false
			}
			return price.Div(rate), true
		}
		rate, ok := rates.usdtKrw(e.Venue)
		if !ok {
			return 0, false
		}
		return price.Div(rate), true
	case market.QuoteUSDC:
		return price.Mul(parityOrUnity(rates.UsdcUsd)), true
	case market.QuoteUSDT, market.QuoteBUSD:
		return price.Mul(parityOrUnity(rates.UsdtUsd)), true
	case market.QuoteUSD:
		return price, true
	default:
		return price, true
	}
}

// kimchiEquivalent converts price to USD using the flat central-bank-style
// usd_krw rate rather than any on-exchange stablecoin rate.
func kimchiEquivalent(quote market.QuoteCurrency, price fixedpoint.FixedPoint, rates Rates) (fixedpoint.FixedPoint, bool) {
	if quote != market.QuoteKRW {
		// overseas side: project through the usual usdlike path, which
		// always succeeds for non-KRW quotes.
		e := Entry{Quote: quote}
		return usdEquivalent(e, price, market.QuoteUSD, rates)
	}
	if rates.UsdKrw.IsZero() {
		return 0, false
	}
	return price.Div(rates.UsdKrw), true
}

// Evaluate computes the usdlike and kimchi premiums for buying on
// buyVenue's ask and selling on sellVenue's bid. Returns ok=false if either
// venue has no entry.
func (m *Matrix) Evaluate(buyVenue, sellVenue market.Venue, rates Rates) (Evaluation, bool) {
	m.mu.RLock()
	buy, okBuy := m.entries[buyVenue]
	sell, okSell := m.entries[sellVenue]
	m.mu.RUnlock()
	if !okBuy || !okSell {
		return Evaluation{}, false
	}

	eval := Evaluation{
		BuyVenue:  buyVenue,
		SellVenue: sellVenue,
		BuyQuote:  buy.Quote,
		SellQuote: sell.Quote,
		BestAsk:   buy.Ask,
		BestBid:   sell.Bid,
		RawAsk:    buy.Ask,
		RawBid:    sell.Bid,
		AskSize:   buy.AskSize,
		BidSize:   sell.BidSize,
		BuyTS:     buy.LastUpdate,
		SellTS:    sell.LastUpdate,
		Reason:    ReasonOk,
	}

	usdAsk, okAsk := usdEquivalent(buy, buy.Ask, sell.Quote, rates)
	usdBid, okBid := usdEquivalent(sell, sell.Bid, buy.Quote, rates)
	if okAsk && okBid && !usdAsk.IsZero() {
		eval.UsdlikeBPS = fixedpoint.PremiumBPS(usdAsk, usdBid)
		eval.UsdlikeOk = true
	} else {
		eval.Reason = ReasonNoConversionRate
	}

	if buy.Quote == market.QuoteKRW || sell.Quote == market.QuoteKRW {
		kAsk, okKAsk := kimchiEquivalent(buy.Quote, buy.Ask, rates)
		kBid, okKBid := kimchiEquivalent(sell.Quote, sell.Bid, rates)
		if okKAsk && okKBid && !kAsk.IsZero() {
			eval.KimchiBPS = fixedpoint.PremiumBPS(kAsk, kBid)
			eval.KimchiOk = true
		} else {
			eval.Reason = ReasonNoConversionRate
		}
	}

	return eval, true
}

// Enumerate evaluates every ordered, distinct (buy,sell) venue pair with
// non-zero ask-or-bid size, applying the staleness filter, and returns the
// results sorted descending by usdlike_bps, then descending kimchi_bps,
// then ascending buy-venue id — matching the detector's emission order.
func (m *Matrix) Enumerate(rates Rates, maxStalenessMs int64, now time.Time) []Evaluation {
	m.mu.RLock()
	venues := make([]market.Venue, 0, len(m.entries))
	entries := make(map[market.Venue]Entry, len(m.entries))
	for v, e := range m.entries {
		venues = append(venues, v)
		entries[v] = e
	}
	m.mu.RUnlock()

	nowMs := now.UnixMilli()
	fresh := func(e Entry) bool {
		if maxStalenessMs <= 0 {
			return true
		}
		return nowMs-e.LastUpdate <= maxStalenessMs
	}

	var out []Evaluation
	for _, bv := range venues {
		be := entries[bv]
		if !fresh(be) {
			continue
		}
		for _, sv := range venues {
			if sv == bv {
				continue
			}
			se := entries[sv]
			if !fresh(se) {
				continue
			}
			if be.AskSize.IsZero() && se.BidSize.IsZero() {
				continue
			}
			eval, ok := m.Evaluate(bv, sv, rates)
			if !ok {
				continue
			}
			out = append(out, eval)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UsdlikeBPS != b.UsdlikeBPS {
			return a.UsdlikeBPS > b.UsdlikeBPS
		}
		if a.KimchiBPS != b.KimchiBPS {
			return a.KimchiBPS > b.KimchiBPS
		}
		return a.BuyVenue < b.BuyVenue
	})

	return out
}
