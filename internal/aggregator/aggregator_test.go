package aggregator

import (
	"sync"
	"testing"
	"time"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
)

func tick(v market.Venue, pair uint32, bid, ask float64) market.PriceTick {
	return market.NewPriceTick(v, pair, 0, fixedpoint.FromDecimal(bid), fixedpoint.FromDecimal(ask))
}

func TestUpdateGetRoundtrip(t *testing.T) {
	a := New()
	pair := market.PairID("BTC")
	a.Update(tick(market.VenueBinance, pair, 49999, 50000))
	got, ok := a.Get(market.VenueBinance, pair)
	if !ok || got.Bid.ToDecimal() != 49999 {
		t.Fatalf("expected stored tick, got %+v ok=%v", got, ok)
	}
}

func TestUpdateReplaces(t *testing.T) {
	a := New()
	pair := market.PairID("BTC")
	a.Update(tick(market.VenueBinance, pair, 1, 2))
	a.Update(tick(market.VenueBinance, pair, 3, 4))
	got, _ := a.Get(market.VenueBinance, pair)
	if got.Bid.ToDecimal() != 3 {
		t.Fatalf("expected replacement to win, got bid=%v", got.Bid.ToDecimal())
	}
}

func TestGetAllForPair(t *testing.T) {
	a := New()
	pair := market.PairID("BTC")
	other := market.PairID("ETH")
	a.Update(tick(market.VenueBinance, pair, 1, 2))
	a.Update(tick(market.VenueCoinbase, pair, 1, 2))
	a.Update(tick(market.VenueBybit, other, 1, 2))
	ticks := a.GetAllForPair(pair)
	if len(ticks) != 2 {
		t.Fatalf("expected 2 ticks for pair, got %d", len(ticks))
	}
}

func TestFindBestOpportunity(t *testing.T) {
	a := New()
	pair := market.PairID("BTC")
	a.Update(tick(market.VenueBinance, pair, 49999, 50000))
	a.Update(tick(market.VenueCoinbase, pair, 50500, 50501))
	buy, sell, bps, ok := a.FindBestOpportunity(pair)
	if !ok || buy != market.VenueBinance || sell != market.VenueCoinbase || bps != 100 {
		t.Fatalf("unexpected result buy=%v sell=%v bps=%d ok=%v", buy, sell, bps, ok)
	}
}

func TestFindBestOpportunityInsufficientData(t *testing.T) {
	a := New()
	pair := market.PairID("BTC")
	a.Update(tick(market.VenueBinance, pair, 1, 2))
	_, _, _, ok := a.FindBestOpportunity(pair)
	if ok {
		t.Fatal("expected false with only one venue priced")
	}
}

func TestIsStale(t *testing.T) {
	a := New()
	pair := market.PairID("BTC")
	if !a.IsStale(market.VenueBinance, pair, 1000, time.Now()) {
		t.Fatal("missing key should be stale")
	}
	tk := tick(market.VenueBinance, pair, 1, 2).WithTimestamp(time.Now().Add(-time.Hour).UnixMilli())
	a.Update(tk)
	if !a.IsStale(market.VenueBinance, pair, 1000, time.Now()) {
		t.Fatal("old tick should be stale")
	}
	a.Update(tick(market.VenueBinance, pair, 1, 2))
	if a.IsStale(market.VenueBinance, pair, 60_000, time.Now()) {
		t.Fatal("fresh tick should not be stale")
	}
}

func TestConcurrentUpdatesNoTorn(t *testing.T) {
	a := New()
	pair := market.PairID("BTC")
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			a.Update(tick(market.VenueBinance, pair, float64(n), float64(n)+1))
		}(i)
	}
	wg.Wait()
	got, ok := a.Get(market.VenueBinance, pair)
	if !ok {
		t.Fatal("expected a tick after concurrent updates")
	}
	if got.Ask.ToDecimal() != got.Bid.ToDecimal()+1 {
		t.Fatal("tick fields must not be torn across concurrent writers")
	}
}
