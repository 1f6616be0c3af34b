package config

import (
	"testing"
	"time"

	"github.com/arbitrage-core/arbitrage-core/internal/market"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Detector.MinPremiumBPS != 30 {
		t.Errorf("expected default min_premium_bps 30, got %d", cfg.Detector.MinPremiumBPS)
	}
	if cfg.Detector.MaxStalenessMS != 0 {
		t.Errorf("expected default max_staleness_ms 0 (disabled), got %v", cfg.Detector.MaxStalenessMS)
	}
	if cfg.Subscription.BatchSize != 10 {
		t.Errorf("expected default batch_size 10, got %d", cfg.Subscription.BatchSize)
	}
	if cfg.Subscription.BatchDelayMS != 100*time.Millisecond {
		t.Errorf("expected default batch_delay_ms 100ms, got %v", cfg.Subscription.BatchDelayMS)
	}
	if cfg.Exchanges.WSPort != 9001 {
		t.Errorf("expected default ws_port 9001, got %d", cfg.Exchanges.WSPort)
	}
	if len(cfg.Exchanges.Enabled) != 0 {
		t.Errorf("expected no enabled_exchanges filter by default, got %v", cfg.Exchanges.Enabled)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("MIN_PREMIUM_BPS", "50")
	t.Setenv("MAX_STALENESS_MS", "2000")
	t.Setenv("ENABLED_EXCHANGES", "binance, kraken ,upbit")
	t.Setenv("FEE_OVERRIDE_BINANCE_TAKER_BPS", "8")
	t.Setenv("FEE_OVERRIDE_BINANCE_MAKER_BPS", "6")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Detector.MinPremiumBPS != 50 {
		t.Errorf("expected overridden min_premium_bps 50, got %d", cfg.Detector.MinPremiumBPS)
	}
	if cfg.Detector.MaxStalenessMS != 2000*time.Millisecond {
		t.Errorf("expected overridden max_staleness_ms, got %v", cfg.Detector.MaxStalenessMS)
	}
	want := []market.Venue{market.VenueBinance, market.VenueKraken, market.VenueUpbit}
	if len(cfg.Exchanges.Enabled) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Exchanges.Enabled)
	}
	for i, v := range want {
		if cfg.Exchanges.Enabled[i] != v {
			t.Errorf("index %d: expected %v, got %v", i, v, cfg.Exchanges.Enabled[i])
		}
	}
	fee, ok := cfg.FeeOverrides.VenueFees[market.VenueBinance]
	if !ok || fee.TakerBPS != 8 || fee.MakerBPS != 6 {
		t.Errorf("unexpected Binance fee override: %+v ok=%v", fee, ok)
	}
}

func TestExchangesConfigIsEnabled(t *testing.T) {
	empty := ExchangesConfig{}
	if !empty.IsEnabled(market.VenueOkx) {
		t.Error("empty Enabled list should allow every venue")
	}

	filtered := ExchangesConfig{Enabled: []market.Venue{market.VenueBinance}}
	if !filtered.IsEnabled(market.VenueBinance) {
		t.Error("expected Binance to be enabled")
	}
	if filtered.IsEnabled(market.VenueOkx) {
		t.Error("expected OKX to be disabled when not in the list")
	}
}
