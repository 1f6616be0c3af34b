package matrix

import (
	"testing"
	"time"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
)

func usdtTick(v market.Venue, bid, ask float64, ts int64) market.PriceTick {
	t := market.NewPriceTick(v, 1, 0, fixedpoint.FromDecimal(bid), fixedpoint.FromDecimal(ask)).WithQuote(market.QuoteUSDT)
	t = t.WithSizes(fixedpoint.FromDecimal(1), fixedpoint.FromDecimal(1))
	return t.WithTimestamp(ts)
}

func krwTick(v market.Venue, bid, ask float64, ts int64) market.PriceTick {
	t := market.NewPriceTick(v, 1, 0, fixedpoint.FromDecimal(bid), fixedpoint.FromDecimal(ask)).WithQuote(market.QuoteKRW)
	t = t.WithSizes(fixedpoint.FromDecimal(1), fixedpoint.FromDecimal(1))
	return t.WithTimestamp(ts)
}

func TestSameQuoteDirectPremium(t *testing.T) {
	m := New()
	now := time.Now().UnixMilli()
	m.Update(usdtTick(market.VenueBinance, 49999, 50000, now))
	m.Update(usdtTick(market.VenueCoinbase, 50500, 50501, now))
	eval, ok := m.Evaluate(market.VenueBinance, market.VenueCoinbase, Rates{})
	if !ok || !eval.UsdlikeOk {
		t.Fatalf("expected a usdlike evaluation, got %+v ok=%v", eval, ok)
	}
	if eval.UsdlikeBPS != 100 {
		t.Errorf("expected 100bps premium, got %d", eval.UsdlikeBPS)
	}
	if eval.KimchiOk {
		t.Error("kimchi should not apply when neither side is KRW")
	}
}

func TestKimchiPremiumScenario(t *testing.T) {
	m := New()
	now := time.Now().UnixMilli()
	m.Update(usdtTick(market.VenueBinance, 49999, 50000, now))
	m.Update(krwTick(market.VenueUpbit, 70_000_000, 70_000_100, now))

	rates := Rates{
		UsdKrw:          fixedpoint.FromDecimal(1400),
		UsdtKrwPerVenue: map[market.Venue]fixedpoint.FixedPoint{market.VenueUpbit: fixedpoint.FromDecimal(1380)},
	}
	eval, ok := m.Evaluate(market.VenueBinance, market.VenueUpbit, rates)
	if !ok {
		t.Fatal("expected evaluation to succeed")
	}
	if !eval.UsdlikeOk {
		t.Fatal("expected usdlike to resolve via the venue usdt/krw rate")
	}
	if eval.UsdlikeBPS < 140 || eval.UsdlikeBPS > 150 {
		t.Errorf("expected usdlike premium near 145bps, got %d", eval.UsdlikeBPS)
	}
	if !eval.KimchiOk {
		t.Fatal("expected kimchi to resolve via usd_krw")
	}
	if eval.KimchiBPS != 0 {
		t.Errorf("expected ~0bps kimchi premium (both sides ~50000 USD), got %d", eval.KimchiBPS)
	}
	if eval.Reason != ReasonOk {
		t.Errorf("expected reason Ok, got %v", eval.Reason)
	}
}

func TestMissingFXRateDegradesGracefully(t *testing.T) {
	m := New()
	now := time.Now().UnixMilli()
	m.Update(usdtTick(market.VenueBinance, 49999, 50000, now))
	m.Update(krwTick(market.VenueUpbit, 70_000_000, 70_000_100, now))

	eval, ok := m.Evaluate(market.VenueBinance, market.VenueUpbit, Rates{})
	if !ok {
		t.Fatal("expected evaluation to succeed even without rates")
	}
	if eval.UsdlikeOk {
		t.Fatal("expected usdlike to be unavailable without a venue usdt/krw rate")
	}
	if eval.KimchiOk {
		t.Fatal("expected kimchi to be unavailable without usd_krw")
	}
	if eval.KimchiBPS != 0 {
		t.Errorf("expected kimchi_bps=0 when unavailable, got %d", eval.KimchiBPS)
	}
	if eval.Reason != ReasonNoConversionRate {
		t.Errorf("expected reason NoConversionRate, got %v", eval.Reason)
	}
}

func TestEvaluateMissingVenueFails(t *testing.T) {
	m := New()
	m.Update(usdtTick(market.VenueBinance, 1, 2, 0))
	_, ok := m.Evaluate(market.VenueBinance, market.VenueCoinbase, Rates{})
	if ok {
		t.Fatal("expected failure when sell venue has no entry")
	}
}

func TestEnumerateStalenessFilter(t *testing.T) {
	m := New()
	now := time.Now()
	m.Update(usdtTick(market.VenueBinance, 49999, 50000, now.UnixMilli()))
	m.Update(usdtTick(market.VenueCoinbase, 50500, 50501, now.Add(-time.Hour).UnixMilli()))
	out := m.Enumerate(Rates{}, 60_000, now)
	if len(out) != 0 {
		t.Fatalf("expected stale coinbase entry to be excluded from every pair, got %d results", len(out))
	}
}

func TestEnumerateSortOrder(t *testing.T) {
	m := New()
	now := time.Now().UnixMilli()
	m.Update(usdtTick(market.VenueBinance, 49999, 50000, now))
	m.Update(usdtTick(market.VenueCoinbase, 50500, 50501, now))
	m.Update(usdtTick(market.VenueKraken, 49000, 49001, now))
	out := m.Enumerate(Rates{}, 0, time.Now())
	if len(out) < 2 {
		t.Fatalf("expected multiple ordered pairs, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i-1].UsdlikeBPS < out[i].UsdlikeBPS {
			t.Fatalf("expected descending usdlike_bps order, got %d before %d", out[i-1].UsdlikeBPS, out[i].UsdlikeBPS)
		}
	}
}

func TestEnumerateSkipsZeroSizePairs(t *testing.T) {
	m := New()
	now := time.Now().UnixMilli()
	zero := market.NewPriceTick(market.VenueBinance, 1, 0, fixedpoint.FromDecimal(100), fixedpoint.FromDecimal(101)).WithQuote(market.QuoteUSDT).WithTimestamp(now)
	m.Update(zero)
	other := usdtTick(market.VenueCoinbase, 100, 101, now)
	m.Update(other)
	out := m.Enumerate(Rates{}, 0, time.Now())
	for _, e := range out {
		if e.AskSize.IsZero() && e.BidSize.IsZero() {
			t.Fatal("pairs with both sizes zero must be excluded")
		}
	}
}
