package exchange

import (
	"testing"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/orderbook"
	"github.com/arbitrage-core/arbitrage-core/internal/wsclient"
)

type recordingSink struct {
	ticks     []market.PriceTick
	snapshots int
	deltas    int
	fxRates   []fixedpoint.FixedPoint
}

func (s *recordingSink) OnTick(tick market.PriceTick) { s.ticks = append(s.ticks, tick) }
func (s *recordingSink) OnBookSnapshot(pairID uint32, bids, asks []orderbook.Level) {
	s.snapshots++
}
func (s *recordingSink) OnBookDelta(pairID uint32, bids, asks []orderbook.Level) {
	s.deltas++
}
func (s *recordingSink) OnFXRate(venue market.Venue, quote market.QuoteCurrency, rate fixedpoint.FixedPoint) {
	s.fxRates = append(s.fxRates, rate)
}

func TestBinanceParseMessageEmitsTickAndSnapshot(t *testing.T) {
	b := NewBinance()
	msg := []byte(`{"stream":"btcusdt@depth20@100ms","data":{"lastUpdateId":1,"bids":[["50000.00","1.5"]],"asks":[["50010.00","2.0"]]}}`)
	sink := &recordingSink{}
	if err := b.ParseMessage(msg, sink); err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if sink.snapshots != 1 || len(sink.ticks) != 1 {
		t.Fatalf("expected one snapshot and one tick, got %d/%d", sink.snapshots, len(sink.ticks))
	}
	if sink.ticks[0].Bid.ToDecimal() != 50000.00 {
		t.Errorf("unexpected bid: %v", sink.ticks[0].Bid.ToDecimal())
	}
}

func TestBinanceSubscriptionBuilderBatchesByFifty(t *testing.T) {
	b := NewBinance()
	builder := b.SubscriptionBuilder()
	symbols := make([]string, 120)
	for i := range symbols {
		symbols[i] = "SYM"
	}
	msgs, err := builder(wsclient.SubscriptionChange{Kind: wsclient.Subscribe, Symbols: symbols})
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 batches of <=50, got %d", len(msgs))
	}
}

func TestCoinbaseParseMessageHandlesSnapshotAndUpdate(t *testing.T) {
	c := NewCoinbase(nil)
	msg := []byte(`{"channel":"l2_data","events":[{"type":"snapshot","product_id":"BTC-USD","updates":[{"side":"bid","price_level":"50000","new_quantity":"1"},{"side":"offer","price_level":"50010","new_quantity":"2"}]}]}`)
	sink := &recordingSink{}
	if err := c.ParseMessage(msg, sink); err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if sink.snapshots != 1 || len(sink.ticks) != 1 {
		t.Fatalf("expected snapshot+tick, got %d/%d", sink.snapshots, len(sink.ticks))
	}
}

func TestCoinbaseSubscriptionBuilderAddsHeartbeatsOnSubscribe(t *testing.T) {
	c := NewCoinbase(nil)
	builder := c.SubscriptionBuilder()
	msgs, err := builder(wsclient.SubscriptionChange{Kind: wsclient.Subscribe, Symbols: []string{"BTC-USD"}})
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected l2_data + heartbeats messages, got %d", len(msgs))
	}
	msgs, err = builder(wsclient.SubscriptionChange{Kind: wsclient.Unsubscribe, Symbols: []string{"BTC-USD"}})
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected only l2_data message on unsubscribe, got %d", len(msgs))
	}
}

func TestBybitParseMessageOnlySnapshotsOnSnapshotType(t *testing.T) {
	b := NewBybit()
	sink := &recordingSink{}
	delta := []byte(`{"topic":"orderbook.50.BTCUSDT","type":"delta","data":{"s":"BTCUSDT","b":[["50000","1"]],"a":[["50010","1"]]}}`)
	if err := b.ParseMessage(delta, sink); err != nil {
		t.Fatalf("ParseMessage delta: %v", err)
	}
	if sink.snapshots != 0 || len(sink.ticks) != 1 {
		t.Fatalf("delta frame should tick but not snapshot, got snapshots=%d ticks=%d", sink.snapshots, len(sink.ticks))
	}
	snap := []byte(`{"topic":"orderbook.50.BTCUSDT","type":"snapshot","data":{"s":"BTCUSDT","b":[["50000","1"]],"a":[["50010","1"]]}}`)
	if err := b.ParseMessage(snap, sink); err != nil {
		t.Fatalf("ParseMessage snapshot: %v", err)
	}
	if sink.snapshots != 1 {
		t.Fatalf("expected snapshot frame to call OnBookSnapshot, got %d", sink.snapshots)
	}
}

func TestBybitSubscriptionBuilderCapsArgsAtTen(t *testing.T) {
	b := NewBybit()
	builder := b.SubscriptionBuilder()
	symbols := make([]string, 25)
	for i := range symbols {
		symbols[i] = "SYM"
	}
	msgs, err := builder(wsclient.SubscriptionChange{Kind: wsclient.Subscribe, Symbols: symbols})
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 batches of <=10 args, got %d", len(msgs))
	}
}

func TestGateIOParseMessageOnlyOnUpdateEvent(t *testing.T) {
	g := NewGateIO()
	sink := &recordingSink{}
	other := []byte(`{"channel":"spot.order_book","event":"subscribe","result":{"status":"success"}}`)
	if err := g.ParseMessage(other, sink); err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(sink.ticks) != 0 {
		t.Fatalf("ack frame should not produce a tick")
	}
	upd := []byte(`{"channel":"spot.order_book","event":"update","result":{"s":"BTC_USDT","bids":[["50000","1"]],"asks":[["50010","1"]]}}`)
	if err := g.ParseMessage(upd, sink); err != nil {
		t.Fatalf("ParseMessage update: %v", err)
	}
	if len(sink.ticks) != 1 || sink.snapshots != 1 {
		t.Fatalf("expected update frame to snapshot+tick, got snapshots=%d ticks=%d", sink.snapshots, len(sink.ticks))
	}
}

func TestOKXExtractBaseQuote(t *testing.T) {
	o := NewOKX()
	base, quote, ok := o.ExtractBaseQuote("BTC-USDT")
	if !ok || base != "BTC" || quote != market.QuoteUSDT {
		t.Fatalf("unexpected extraction: %s %v %v", base, quote, ok)
	}
}

func TestKrakenExtractBaseQuotePrefersZUSDOverUSD(t *testing.T) {
	k := NewKraken()
	base, quote, ok := k.ExtractBaseQuote("XBTZUSD")
	if !ok || quote != market.QuoteUSD {
		t.Fatalf("unexpected extraction: %s %v %v", base, quote, ok)
	}
	if base == "XBTZ" {
		t.Fatalf("ZUSD suffix should have been matched before USD, got base %q", base)
	}
}

func TestUpbitRoutesUSDTTickToFXRateNotPipeline(t *testing.T) {
	u := NewUpbit()
	sink := &recordingSink{}
	msg := []byte(`{"ty":"orderbook","cd":"KRW-USDT","obu":[{"ap":1350.5,"bp":1349.5,"as":100,"bs":100}]}`)
	if err := u.ParseMessage(msg, sink); err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(sink.ticks) != 0 || sink.snapshots != 0 {
		t.Fatalf("KRW-USDT should never enter the tick/book pipeline, got ticks=%d snapshots=%d", len(sink.ticks), sink.snapshots)
	}
	if len(sink.fxRates) != 1 {
		t.Fatalf("expected one FX rate observation, got %d", len(sink.fxRates))
	}
}

func TestUpbitRoutesTradableSymbolToNormalPipeline(t *testing.T) {
	u := NewUpbit()
	sink := &recordingSink{}
	msg := []byte(`{"ty":"orderbook","cd":"KRW-BTC","obu":[{"ap":70000000,"bp":69990000,"as":1,"bs":1}]}`)
	if err := u.ParseMessage(msg, sink); err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(sink.ticks) != 1 || sink.snapshots != 1 {
		t.Fatalf("expected tradable symbol to tick and snapshot, got ticks=%d snapshots=%d", len(sink.ticks), sink.snapshots)
	}
	if len(sink.fxRates) != 0 {
		t.Fatalf("tradable symbol should not emit an FX rate")
	}
}

func TestBithumbDecodeFrameStripsBinaryPrefix(t *testing.T) {
	clean := []byte(`{"ty":"orderbook"}`)
	framed := append([]byte{0x01, 0x02}, clean...)
	got := decodeBithumbFrame(framed)
	if string(got) != string(clean) {
		t.Fatalf("expected framing stripped, got %q", got)
	}
}

func TestBithumbRoutesUSDCTickToFXRate(t *testing.T) {
	b := NewBithumb()
	sink := &recordingSink{}
	msg := []byte(`{"ty":"orderbook","cd":"KRW-USDC","obu":[{"ap":1350.0,"bp":1349.0,"as":100,"bs":100}]}`)
	if err := b.ParseMessage(msg, sink); err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(sink.fxRates) != 1 || len(sink.ticks) != 0 {
		t.Fatalf("expected fx rate only, got ticks=%d fx=%d", len(sink.ticks), len(sink.fxRates))
	}
}
