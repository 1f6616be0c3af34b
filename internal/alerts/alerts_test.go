package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/arbitrage-core/arbitrage-core/internal/detector"
	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
)

type stubSender struct {
	sent []string
	err  error
}

func (s *stubSender) Send(ctx context.Context, chatID, message string) error {
	s.sent = append(s.sent, chatID)
	return s.err
}

func opp(asset string, premiumBPS int32, profit int64) detector.Opportunity {
	return detector.Opportunity{
		Asset:         asset,
		SourceVenue:   market.VenueBinance,
		TargetVenue:   market.VenueUpbit,
		SourceQuote:   market.QuoteUSDT,
		TargetQuote:   market.QuoteKRW,
		SourcePrice:   fixedpoint.FromDecimal(100),
		TargetPrice:   fixedpoint.FromDecimal(104),
		PremiumBPS:    premiumBPS,
		OptimalSize:   fixedpoint.FromDecimal(1),
		OptimalProfit: profit,
	}
}

func TestProcessOpportunitySkipsZeroSizeOrNonPositiveProfit(t *testing.T) {
	sender := &stubSender{}
	rule := Rule{ChatID: "1", Enabled: true}
	n := NewNotifier(sender, []Rule{rule}, time.Minute)

	o := opp("BTC", 500, 0)
	o.OptimalSize = 0
	if sent, err := n.ProcessOpportunity(context.Background(), o, time.Unix(0, 0)); err != nil || sent != 0 {
		t.Fatalf("expected zero-size opportunity to be skipped, got sent=%d err=%v", sent, err)
	}

	o2 := opp("BTC", 500, -1)
	if sent, err := n.ProcessOpportunity(context.Background(), o2, time.Unix(0, 0)); err != nil || sent != 0 {
		t.Fatalf("expected non-positive-profit opportunity to be skipped, got sent=%d err=%v", sent, err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no sends, got %v", sender.sent)
	}
}

func TestProcessOpportunityFiltersByRuleThreshold(t *testing.T) {
	sender := &stubSender{}
	rule := Rule{ChatID: "1", Enabled: true, MinPremiumBPS: 400}
	n := NewNotifier(sender, []Rule{rule}, time.Minute)

	below := opp("BTC", 300, int64(fixedpoint.FromDecimal(1)))
	if sent, err := n.ProcessOpportunity(context.Background(), below, time.Unix(0, 0)); err != nil || sent != 0 {
		t.Fatalf("expected below-threshold premium to be filtered, got sent=%d err=%v", sent, err)
	}

	above := opp("BTC", 500, int64(fixedpoint.FromDecimal(1)))
	if sent, err := n.ProcessOpportunity(context.Background(), above, time.Unix(0, 0)); err != nil || sent != 1 {
		t.Fatalf("expected above-threshold premium to send once, got sent=%d err=%v", sent, err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "1" {
		t.Fatalf("expected one send to chat 1, got %v", sender.sent)
	}
}

func TestProcessOpportunitySuppressesRepeatsWithinCooldown(t *testing.T) {
	sender := &stubSender{}
	rule := Rule{ChatID: "1", Enabled: true, MinPremiumBPS: 100}
	n := NewNotifier(sender, []Rule{rule}, 5*time.Minute)

	start := time.Unix(1000, 0)
	o := opp("ETH", 500, int64(fixedpoint.FromDecimal(1)))

	if sent, err := n.ProcessOpportunity(context.Background(), o, start); err != nil || sent != 1 {
		t.Fatalf("expected first sighting to send, got sent=%d err=%v", sent, err)
	}
	if sent, err := n.ProcessOpportunity(context.Background(), o, start.Add(time.Minute)); err != nil || sent != 0 {
		t.Fatalf("expected repeat within cooldown to be suppressed, got sent=%d err=%v", sent, err)
	}
	if sent, err := n.ProcessOpportunity(context.Background(), o, start.Add(10*time.Minute)); err != nil || sent != 1 {
		t.Fatalf("expected re-alert once cooldown elapses, got sent=%d err=%v", sent, err)
	}
}

func TestRuleMatchesSymbolRespectsExclusion(t *testing.T) {
	r := Rule{Symbols: []string{"BTC", "ETH"}, ExcludedSymbols: []string{"ETH"}}
	if r.matchesSymbol("BTC") != true {
		t.Fatal("expected BTC to match")
	}
	if r.matchesSymbol("ETH") != false {
		t.Fatal("expected ETH to be excluded even though it's in Symbols")
	}
	if r.matchesSymbol("SOL") != false {
		t.Fatal("expected SOL, not in Symbols, to not match")
	}
}

func TestRuleMatchesExchangeEmptyMeansAll(t *testing.T) {
	r := Rule{}
	if !r.matchesExchange("binance", "upbit") {
		t.Fatal("expected empty Exchanges to match any pair")
	}
	r2 := Rule{Exchanges: []string{"bybit"}}
	if r2.matchesExchange("binance", "upbit") {
		t.Fatal("expected no match when neither leg is in Exchanges")
	}
}

func TestPruneDropsStaleActivePaths(t *testing.T) {
	sender := &stubSender{}
	n := NewNotifier(sender, []Rule{{ChatID: "1", Enabled: true}}, time.Minute)
	start := time.Unix(1000, 0)
	o := opp("BTC", 500, int64(fixedpoint.FromDecimal(1)))
	if _, err := n.ProcessOpportunity(context.Background(), o, start); err != nil {
		t.Fatalf("ProcessOpportunity: %v", err)
	}
	n.Prune(start.Add(time.Hour), 30*time.Minute)
	if len(n.active) != 0 {
		t.Fatalf("expected stale active path pruned, got %d entries", len(n.active))
	}
}
