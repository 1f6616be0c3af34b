// Package detector turns per-pair price data into ranked arbitrage
// opportunities: it owns the symbol-to-pair-id registry, one PremiumMatrix
// per pair, the depth-walking call for sizing, and a bounded deduplicated
// list of the most recently seen opportunities.
package detector

import (
	"sort"
	"sync"
	"time"

	"github.com/arbitrage-core/arbitrage-core/internal/depthwalk"
	"github.com/arbitrage-core/arbitrage-core/internal/feeregistry"
	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/matrix"
	"github.com/arbitrage-core/arbitrage-core/internal/orderbook"
)

func timeNow(unixMs int64) time.Time {
	return time.UnixMilli(unixMs)
}

// SizeReason is the outcome of sizing an opportunity against live depth.
type SizeReason string

const (
	ReasonOk                 SizeReason = "Ok"
	ReasonNoOrderbook        SizeReason = "NoOrderbook"
	ReasonNotProfitable      SizeReason = "NotProfitable"
	ReasonNoConversionRate   SizeReason = "NoConversionRate"
)

// Opportunity is one detected cross-venue premium, sized against live
// depth.
type Opportunity struct {
	ID                uint64
	SourceVenue       market.Venue // buy here
	TargetVenue       market.Venue // sell here
	SourceQuote       market.QuoteCurrency
	TargetQuote       market.QuoteCurrency
	Asset             string
	PairID            uint32
	SourcePrice       fixedpoint.FixedPoint // USD-normalized
	TargetPrice       fixedpoint.FixedPoint
	RawSourcePrice    fixedpoint.FixedPoint // native quote
	RawTargetPrice    fixedpoint.FixedPoint
	SourceTimestampMs int64
	TargetTimestampMs int64
	PremiumBPS        int32 // primary: usdlike_bps
	UsdlikePremiumBPS int32
	UsdlikeOk         bool
	KimchiPremiumBPS  int32
	GasCost           fixedpoint.FixedPoint
	BridgeFee         fixedpoint.FixedPoint
	TradingFee        fixedpoint.FixedPoint
	NetProfitEstimate int64
	MinAmount         fixedpoint.FixedPoint
	MaxAmount         fixedpoint.FixedPoint
	SourceDepth       int
	TargetDepth       int
	OptimalSize       fixedpoint.FixedPoint
	OptimalProfit     int64
	OptimalSizeReason SizeReason
	ConfidenceScore   uint8
	DiscoveredAtMs    int64
}

// dedupKey groups opportunities for the bounded recent list.
type dedupKey struct {
	Asset       string
	SourceVenue market.Venue
	TargetVenue market.Venue
}

// Config holds the detector's tunables.
type Config struct {
	MinPremiumBPS    int32
	MaxStalenessMs   int64
	EnabledExchanges map[market.Venue]bool // nil/empty means "all enabled"
}

// DefaultConfig matches spec defaults: 30bps floor, staleness filter off.
func DefaultConfig() Config {
	return Config{MinPremiumBPS: 30, MaxStalenessMs: 0}
}

func (c Config) venueEnabled(v market.Venue) bool {
	if len(c.EnabledExchanges) == 0 {
		return true
	}
	return c.EnabledExchanges[v]
}

// DepthSource supplies live order book levels for a (venue,pairID), used to
// size a candidate opportunity. Returns ok=false when no book is known.
type DepthSource interface {
	AsksFor(venue market.Venue, pairID uint32) ([]orderbook.Level, bool)
	BidsFor(venue market.Venue, pairID uint32) ([]orderbook.Level, bool)
}

const maxRecent = 100

// Detector owns the pair registry, one matrix per pair, and the recent
// opportunity list.
type Detector struct {
	cfg   Config
	fees  *feeregistry.Registry
	depth DepthSource

	mu         sync.RWMutex
	matrices   map[uint32]*matrix.Matrix
	pairSymbol map[uint32]string

	recentMu sync.Mutex
	recent   []Opportunity
	recentBy map[dedupKey]int // index into recent

	nextID uint64
}

// New constructs a Detector. depth may be nil, in which case every
// candidate is emitted with OptimalSizeReason=NoOrderbook.
func New(cfg Config, fees *feeregistry.Registry, depth DepthSource) *Detector {
	return &Detector{
		cfg:        cfg,
		fees:       fees,
		depth:      depth,
		matrices:   make(map[uint32]*matrix.Matrix),
		pairSymbol: make(map[uint32]string),
		recentBy:   make(map[dedupKey]int),
	}
}

// RegisterSymbol assigns (or returns the existing) stable pair id for
// symbol, creating its matrix on first touch.
func (d *Detector) RegisterSymbol(symbol string) uint32 {
	pairID := market.PairID(symbol)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.matrices[pairID]; !ok {
		d.matrices[pairID] = matrix.New()
		d.pairSymbol[pairID] = symbol
	}
	return pairID
}

// Ingest routes a price tick into the matrix for its pair, registering the
// symbol if this is the first touch for that pair.
func (d *Detector) Ingest(symbol string, tick market.PriceTick) {
	d.RegisterSymbol(symbol)
	d.mu.RLock()
	m := d.matrices[tick.PairID]
	d.mu.RUnlock()
	if m != nil {
		m.Update(tick)
	}
}

func (d *Detector) matrixFor(pairID uint32) (*matrix.Matrix, string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.matrices[pairID]
	if !ok {
		return nil, "", false
	}
	return m, d.pairSymbol[pairID], true
}

// Detect enumerates the matrix for pairID, applies fee/rate/depth inputs,
// and returns zero or more opportunities sorted descending by usdlike_bps,
// then kimchi_bps, then ascending buy-venue id.
func (d *Detector) Detect(pairID uint32, rates matrix.Rates, now int64) []Opportunity {
	m, symbol, ok := d.matrixFor(pairID)
	if !ok {
		return nil
	}

	evals := m.Enumerate(rates, d.cfg.MaxStalenessMs, timeNow(now))

	var out []Opportunity
	for _, ev := range evals {
		if !d.cfg.venueEnabled(ev.BuyVenue) || !d.cfg.venueEnabled(ev.SellVenue) {
			continue
		}
		if ev.UsdlikeOk && ev.UsdlikeBPS < d.cfg.MinPremiumBPS {
			continue
		}
		opp := d.buildOpportunity(symbol, pairID, ev)
		out = append(out, opp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.PremiumBPS != b.PremiumBPS {
			return a.PremiumBPS > b.PremiumBPS
		}
		if a.KimchiPremiumBPS != b.KimchiPremiumBPS {
			return a.KimchiPremiumBPS > b.KimchiPremiumBPS
		}
		return a.SourceVenue < b.SourceVenue
	})

	d.commitRecent(out)
	return out
}

// DetectAll runs Detect across every registered pair.
func (d *Detector) DetectAll(rates matrix.Rates, now int64) []Opportunity {
	d.mu.RLock()
	pairIDs := make([]uint32, 0, len(d.matrices))
	for id := range d.matrices {
		pairIDs = append(pairIDs, id)
	}
	d.mu.RUnlock()

	var out []Opportunity
	for _, id := range pairIDs {
		out = append(out, d.Detect(id, rates, now)...)
	}
	return out
}

func (d *Detector) buildOpportunity(symbol string, pairID uint32, ev matrix.Evaluation) Opportunity {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.mu.Unlock()

	opp := Opportunity{
		ID:                id,
		SourceVenue:       ev.BuyVenue,
		TargetVenue:       ev.SellVenue,
		SourceQuote:       ev.BuyQuote,
		TargetQuote:       ev.SellQuote,
		Asset:             symbol,
		PairID:            pairID,
		RawSourcePrice:    ev.RawAsk,
		RawTargetPrice:    ev.RawBid,
		SourceTimestampMs: ev.BuyTS,
		TargetTimestampMs: ev.SellTS,
		PremiumBPS:        ev.UsdlikeBPS,
		UsdlikePremiumBPS: ev.UsdlikeBPS,
		UsdlikeOk:         ev.UsdlikeOk,
		KimchiPremiumBPS:  ev.KimchiBPS,
		OptimalSizeReason: ReasonOk,
	}

	if ev.Reason == matrix.ReasonNoConversionRate {
		opp.OptimalSizeReason = ReasonNoConversionRate
		return opp
	}

	buyTaker, sellTaker, withdrawal := d.fees.GetArbitrageFees(ev.BuyVenue, ev.SellVenue, symbol)

	if d.depth == nil {
		opp.OptimalSizeReason = ReasonNoOrderbook
		return opp
	}
	asks, okA := d.depth.AsksFor(ev.BuyVenue, pairID)
	bids, okB := d.depth.BidsFor(ev.SellVenue, pairID)
	if !okA || !okB || len(asks) == 0 || len(bids) == 0 {
		opp.OptimalSizeReason = ReasonNoOrderbook
		return opp
	}
	opp.SourceDepth = len(asks)
	opp.TargetDepth = len(bids)

	walk := depthwalk.Walk(asks, bids, depthwalk.Fees{
		BuyFeeBPS:     buyTaker,
		SellFeeBPS:    sellTaker,
		WithdrawalFee: withdrawal,
	})
	if !walk.IsProfitable() {
		opp.OptimalSizeReason = ReasonNotProfitable
		return opp
	}

	opp.OptimalSize = walk.Amount
	opp.OptimalProfit = walk.Profit
	opp.NetProfitEstimate = walk.Profit
	opp.TradingFee = fixedpoint.Zero
	opp.SourcePrice = walk.AvgBuyPrice
	opp.TargetPrice = walk.AvgSellPrice
	opp.MinAmount = fixedpoint.Zero
	opp.MaxAmount = walk.Amount
	opp.OptimalSizeReason = ReasonOk

	return opp
}

// commitRecent merges newly detected opportunities into the bounded
// recent-opportunities list, updating in place on a dedup-key match and
// evicting the oldest entry when the list would exceed maxRecent.
func (d *Detector) commitRecent(opps []Opportunity) {
	d.recentMu.Lock()
	defer d.recentMu.Unlock()
	for _, o := range opps {
		key := dedupKey{Asset: o.Asset, SourceVenue: o.SourceVenue, TargetVenue: o.TargetVenue}
		if idx, ok := d.recentBy[key]; ok {
			d.recent[idx] = o
			continue
		}
		if len(d.recent) >= maxRecent {
			oldest := d.recent[0]
			d.recent = d.recent[1:]
			delete(d.recentBy, dedupKey{Asset: oldest.Asset, SourceVenue: oldest.SourceVenue, TargetVenue: oldest.TargetVenue})
			for k, v := range d.recentBy {
				d.recentBy[k] = v - 1
			}
		}
		d.recent = append(d.recent, o)
		d.recentBy[key] = len(d.recent) - 1
	}
}

// Recent returns a snapshot clone of the bounded recent-opportunities list.
func (d *Detector) Recent() []Opportunity {
	d.recentMu.Lock()
	defer d.recentMu.Unlock()
	out := make([]Opportunity, len(d.recent))
	copy(out, d.recent)
	return out
}
