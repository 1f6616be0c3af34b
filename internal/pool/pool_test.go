package pool

import (
	"testing"

	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/wsclient"
)

func noopBuilder(change wsclient.SubscriptionChange) ([][]byte, error) {
	return nil, nil
}

func TestDistributeSymbolsChunksByLimit(t *testing.T) {
	symbols := make([]string, 75)
	for i := range symbols {
		symbols[i] = "S"
	}
	chunks := DistributeSymbols(symbols, 30)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks of <=30, got %d", len(chunks))
	}
	if len(chunks[0]) != 30 || len(chunks[1]) != 30 || len(chunks[2]) != 15 {
		t.Errorf("unexpected chunk sizes: %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestDistributeSymbolsEmpty(t *testing.T) {
	chunks := DistributeSymbols(nil, 30)
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestCoinbaseLimitIsThirty(t *testing.T) {
	if maxStreams(market.VenueCoinbase) != 30 {
		t.Errorf("expected Coinbase's per-connection limit to be 30, got %d", maxStreams(market.VenueCoinbase))
	}
}

func TestAddSymbolPicksMostFreeCapacity(t *testing.T) {
	p := New(market.VenueCoinbase, wsclient.Config{URL: "ws://example.invalid"}, noopBuilder)
	p.connections = []*ConnectionInfo{
		{Index: 0, Symbols: toSet([]string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"})},
		{Index: 1, Symbols: toSet([]string{"K"})},
	}
	// attach clients with buffered Changes channels so the send doesn't block
	for _, c := range p.connections {
		c.Client = wsclient.New(wsclient.Config{URL: "ws://example.invalid"}, noopBuilder)
	}

	if err := p.AddSymbol("NEW"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.connections[1].Symbols["NEW"] {
		t.Error("expected NEW to land on connection 1, which had the most free capacity")
	}
}

func TestPoolOverflowReturnsCapacityErrorWithoutExpanding(t *testing.T) {
	p := New(market.VenueCoinbase, wsclient.Config{URL: "ws://example.invalid"}, noopBuilder)
	full := make(map[string]bool, 30)
	for i := 0; i < 30; i++ {
		full[string(rune('A'+i%26))+string(rune('0'+i/26))] = true
	}
	p.connections = []*ConnectionInfo{
		{Index: 0, Symbols: full, Client: wsclient.New(wsclient.Config{URL: "ws://example.invalid"}, noopBuilder)},
	}

	err := p.AddSymbol("OVERFLOW")
	if err == nil {
		t.Fatal("expected a capacity error when every connection is full")
	}
	if _, ok := err.(*ErrPoolAtCapacity); !ok {
		t.Fatalf("expected *ErrPoolAtCapacity, got %T", err)
	}
	if len(p.connections) != 1 {
		t.Errorf("expected the pool NOT to auto-create a new connection on overflow, got %d connections", len(p.connections))
	}
}

func TestRemoveSymbolDropsFromOwningConnection(t *testing.T) {
	p := New(market.VenueBinance, wsclient.Config{URL: "ws://example.invalid"}, noopBuilder)
	p.connections = []*ConnectionInfo{
		{Index: 0, Symbols: toSet([]string{"BTCUSDT"}), Client: wsclient.New(wsclient.Config{URL: "ws://example.invalid"}, noopBuilder)},
	}
	p.RemoveSymbol("BTCUSDT")
	if p.connections[0].Symbols["BTCUSDT"] {
		t.Error("expected BTCUSDT to be removed")
	}
}

func TestAllSymbolsAggregatesAcrossConnections(t *testing.T) {
	p := New(market.VenueBinance, wsclient.Config{URL: "ws://example.invalid"}, noopBuilder)
	p.connections = []*ConnectionInfo{
		{Index: 0, Symbols: toSet([]string{"BTCUSDT", "ETHUSDT"})},
		{Index: 1, Symbols: toSet([]string{"SOLUSDT"})},
	}
	all := p.AllSymbols()
	if len(all) != 3 {
		t.Fatalf("expected 3 symbols total, got %d", len(all))
	}
}
