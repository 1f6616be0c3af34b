package detector

import (
	"fmt"
	"testing"

	"github.com/arbitrage-core/arbitrage-core/internal/feeregistry"
	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/matrix"
	"github.com/arbitrage-core/arbitrage-core/internal/orderbook"
)

type fakeDepth struct {
	asks map[market.Key][]orderbook.Level
	bids map[market.Key][]orderbook.Level
}

func newFakeDepth() *fakeDepth {
	return &fakeDepth{asks: map[market.Key][]orderbook.Level{}, bids: map[market.Key][]orderbook.Level{}}
}

func (f *fakeDepth) setAsks(v market.Venue, pairID uint32, levels []orderbook.Level) {
	f.asks[market.Key{Venue: v, PairID: pairID}] = levels
}
func (f *fakeDepth) setBids(v market.Venue, pairID uint32, levels []orderbook.Level) {
	f.bids[market.Key{Venue: v, PairID: pairID}] = levels
}
func (f *fakeDepth) AsksFor(v market.Venue, pairID uint32) ([]orderbook.Level, bool) {
	l, ok := f.asks[market.Key{Venue: v, PairID: pairID}]
	return l, ok
}
func (f *fakeDepth) BidsFor(v market.Venue, pairID uint32) ([]orderbook.Level, bool) {
	l, ok := f.bids[market.Key{Venue: v, PairID: pairID}]
	return l, ok
}

func lvl(price, size float64) orderbook.Level {
	return orderbook.Level{Price: fixedpoint.FromDecimal(price), Size: fixedpoint.FromDecimal(size)}
}

func tick(v market.Venue, pairID uint32, bid, ask float64) market.PriceTick {
	t := market.NewPriceTick(v, pairID, 0, fixedpoint.FromDecimal(bid), fixedpoint.FromDecimal(ask)).WithQuote(market.QuoteUSDT)
	return t.WithSizes(fixedpoint.FromDecimal(1), fixedpoint.FromDecimal(1))
}

func TestDetectBasicOpportunity(t *testing.T) {
	depth := newFakeDepth()
	d := New(DefaultConfig(), feeregistry.NewDefault(), depth)
	pairID := d.RegisterSymbol("BTC")

	d.Ingest("BTC", tick(market.VenueBinance, pairID, 49999, 50000))
	d.Ingest("BTC", tick(market.VenueCoinbase, pairID, 50500, 50501))
	depth.setAsks(market.VenueBinance, pairID, []orderbook.Level{lvl(50000, 1)})
	depth.setBids(market.VenueCoinbase, pairID, []orderbook.Level{lvl(50500, 1)})

	opps := d.Detect(pairID, matrix.Rates{}, 0)
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	o := opps[0]
	if o.SourceVenue != market.VenueBinance || o.TargetVenue != market.VenueCoinbase {
		t.Errorf("unexpected venues: %+v", o)
	}
	if o.PremiumBPS != 100 {
		t.Errorf("expected 100bps premium, got %d", o.PremiumBPS)
	}
	if o.OptimalSizeReason != ReasonOk || o.OptimalSize.ToDecimal() != 1 {
		t.Errorf("expected Ok sizing with 1.0 amount, got reason=%v size=%v", o.OptimalSizeReason, o.OptimalSize.ToDecimal())
	}
	if o.OptimalProfit <= 0 {
		t.Errorf("expected positive profit, got %d", o.OptimalProfit)
	}
}

func TestDetectBelowThresholdDropped(t *testing.T) {
	depth := newFakeDepth()
	d := New(DefaultConfig(), feeregistry.NewDefault(), depth)
	pairID := d.RegisterSymbol("BTC")

	d.Ingest("BTC", tick(market.VenueBinance, pairID, 49999, 50000))
	d.Ingest("BTC", tick(market.VenueCoinbase, pairID, 50005, 50006)) // 1bps, below 30bps floor

	opps := d.Detect(pairID, matrix.Rates{}, 0)
	if len(opps) != 0 {
		t.Fatalf("expected premium below floor to be dropped, got %+v", opps)
	}
}

func TestDetectNoOrderbookReason(t *testing.T) {
	d := New(DefaultConfig(), feeregistry.NewDefault(), newFakeDepth())
	pairID := d.RegisterSymbol("BTC")
	d.Ingest("BTC", tick(market.VenueBinance, pairID, 49999, 50000))
	d.Ingest("BTC", tick(market.VenueCoinbase, pairID, 50500, 50501))

	opps := d.Detect(pairID, matrix.Rates{}, 0)
	if len(opps) != 1 || opps[0].OptimalSizeReason != ReasonNoOrderbook {
		t.Fatalf("expected NoOrderbook reason with no depth registered, got %+v", opps)
	}
}

func TestDetectNoConversionRateReason(t *testing.T) {
	depth := newFakeDepth()
	d := New(DefaultConfig(), feeregistry.NewDefault(), depth)
	pairID := d.RegisterSymbol("BTC")

	binanceTick := tick(market.VenueBinance, pairID, 49999, 50000)
	upbitTick := market.NewPriceTick(market.VenueUpbit, pairID, 0, fixedpoint.FromDecimal(70_000_000), fixedpoint.FromDecimal(70_000_100)).
		WithQuote(market.QuoteKRW).WithSizes(fixedpoint.FromDecimal(1), fixedpoint.FromDecimal(1))
	d.Ingest("BTC", binanceTick)
	d.Ingest("BTC", upbitTick)

	opps := d.Detect(pairID, matrix.Rates{}, 0)
	found := false
	for _, o := range opps {
		if o.SourceVenue == market.VenueBinance && o.TargetVenue == market.VenueUpbit {
			found = true
			if o.OptimalSizeReason != ReasonNoConversionRate {
				t.Errorf("expected NoConversionRate without fx rates, got %v", o.OptimalSizeReason)
			}
		}
	}
	if !found {
		t.Fatal("expected a binance->upbit candidate even without conversion rates")
	}
}

func TestDetectUnknownPairReturnsNil(t *testing.T) {
	d := New(DefaultConfig(), feeregistry.NewDefault(), newFakeDepth())
	if opps := d.Detect(999, matrix.Rates{}, 0); opps != nil {
		t.Fatalf("expected nil for an unregistered pair, got %+v", opps)
	}
}

func TestRecentListDedupUpdatesInPlace(t *testing.T) {
	depth := newFakeDepth()
	d := New(DefaultConfig(), feeregistry.NewDefault(), depth)
	pairID := d.RegisterSymbol("BTC")
	depth.setAsks(market.VenueBinance, pairID, []orderbook.Level{lvl(50000, 1)})
	depth.setBids(market.VenueCoinbase, pairID, []orderbook.Level{lvl(50500, 1)})

	d.Ingest("BTC", tick(market.VenueBinance, pairID, 49999, 50000))
	d.Ingest("BTC", tick(market.VenueCoinbase, pairID, 50500, 50501))
	d.Detect(pairID, matrix.Rates{}, 0)
	firstLen := len(d.Recent())

	// same (asset, source, target) key fires again with a different price.
	d.Ingest("BTC", tick(market.VenueBinance, pairID, 49899, 49900))
	d.Detect(pairID, matrix.Rates{}, 0)
	secondLen := len(d.Recent())

	if firstLen != 1 || secondLen != 1 {
		t.Fatalf("expected the dedup key to update in place, lens were %d then %d", firstLen, secondLen)
	}
}

func TestRecentListBounded(t *testing.T) {
	depth := newFakeDepth()
	d := New(DefaultConfig(), feeregistry.NewDefault(), depth)
	for i := 0; i < maxRecent+10; i++ {
		symbol := fmt.Sprintf("SYM%d", i)
		pairID := d.RegisterSymbol(symbol)
		depth.setAsks(market.VenueBinance, pairID, []orderbook.Level{lvl(50000, 1)})
		depth.setBids(market.VenueCoinbase, pairID, []orderbook.Level{lvl(50500, 1)})
		d.Ingest(symbol, tick(market.VenueBinance, pairID, 49999, 50000))
		d.Ingest(symbol, tick(market.VenueCoinbase, pairID, 50500, 50501))
		d.Detect(pairID, matrix.Rates{}, 0)
	}
	if len(d.Recent()) > maxRecent {
		t.Fatalf("expected recent list bounded at %d, got %d", maxRecent, len(d.Recent()))
	}
}

func TestDetectSortOrderDescendingPremium(t *testing.T) {
	depth := newFakeDepth()
	d := New(DefaultConfig(), feeregistry.NewDefault(), depth)
	pairID := d.RegisterSymbol("BTC")
	depth.setAsks(market.VenueBinance, pairID, []orderbook.Level{lvl(50000, 10)})
	depth.setBids(market.VenueCoinbase, pairID, []orderbook.Level{lvl(50500, 10)})
	depth.setBids(market.VenueKraken, pairID, []orderbook.Level{lvl(51000, 10)})

	d.Ingest("BTC", tick(market.VenueBinance, pairID, 49999, 50000))
	d.Ingest("BTC", tick(market.VenueCoinbase, pairID, 50500, 50501))
	d.Ingest("BTC", tick(market.VenueKraken, pairID, 51000, 51001))

	opps := d.Detect(pairID, matrix.Rates{}, 0)
	for i := 1; i < len(opps); i++ {
		if opps[i-1].PremiumBPS < opps[i].PremiumBPS {
			t.Fatalf("expected descending premium order, got %d before %d", opps[i-1].PremiumBPS, opps[i].PremiumBPS)
		}
	}
}
