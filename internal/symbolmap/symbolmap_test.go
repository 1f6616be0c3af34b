package symbolmap

import (
	"testing"

	"github.com/arbitrage-core/arbitrage-core/internal/market"
)

func TestCanonicalizeDefaultsToUpperLocal(t *testing.T) {
	m := New()
	if got := m.Canonicalize(market.VenueBinance, "btc"); got != "BTC" {
		t.Fatalf("expected default upper-cased symbol, got %q", got)
	}
}

func TestCanonicalizeRemap(t *testing.T) {
	m := New()
	m.SetRemap(market.VenueKraken, "xxbt", "BTC")
	if got := m.Canonicalize(market.VenueKraken, "XXBT"); got != "BTC" {
		t.Fatalf("expected remap to apply regardless of case, got %q", got)
	}
	if got := m.Canonicalize(market.VenueBinance, "xxbt"); got != "XXBT" {
		t.Fatal("remap must be scoped to the venue it was registered for")
	}
}

func TestExclusion(t *testing.T) {
	m := New()
	if m.IsExcluded(market.VenueBinance, "LUNA") {
		t.Fatal("should not be excluded by default")
	}
	m.SetExcluded(market.VenueBinance, "luna")
	if !m.IsExcluded(market.VenueBinance, "LUNA") {
		t.Fatal("expected exclusion to apply case-insensitively")
	}
	if m.IsExcluded(market.VenueCoinbase, "LUNA") {
		t.Fatal("exclusion must be scoped to the venue it was registered for")
	}
}

func TestNormalizeKrakenAsset(t *testing.T) {
	cases := map[string]string{
		"XXBT": "BTC",
		"XETH": "ETH",
		"ZUSD": "USD",
		"XLTC": "LTC",
		"DOGE": "DOGE",
	}
	for in, want := range cases {
		if got := NormalizeKrakenAsset(in); got != want {
			t.Errorf("NormalizeKrakenAsset(%q) = %q, want %q", in, got, want)
		}
	}
}
