package depthwalk

import (
	"testing"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/orderbook"
)

func level(price, size float64) orderbook.Level {
	return orderbook.Level{Price: fixedpoint.FromDecimal(price), Size: fixedpoint.FromDecimal(size)}
}

func TestWalkEitherSideEmpty(t *testing.T) {
	r := Walk(nil, []orderbook.Level{level(100, 1)}, Fees{})
	if r.Amount != 0 || r.Profit != 0 {
		t.Fatal("empty buy side should yield a zero result")
	}
	r2 := Walk([]orderbook.Level{level(100, 1)}, nil, Fees{})
	if r2.Amount != 0 {
		t.Fatal("empty sell side should yield a zero result")
	}
}

func TestWalkSingleLevelProfitable(t *testing.T) {
	buyAsks := []orderbook.Level{level(50000, 1)}
	sellBids := []orderbook.Level{level(50500, 1)}
	r := Walk(buyAsks, sellBids, Fees{BuyFeeBPS: 10, SellFeeBPS: 10})
	if !r.IsProfitable() {
		t.Fatalf("expected a profitable trade, got %+v", r)
	}
	if r.Amount.ToDecimal() != 1 {
		t.Errorf("expected full amount of 1, got %v", r.Amount.ToDecimal())
	}
}

func TestWalkMultiLevelPartialFill(t *testing.T) {
	buyAsks := []orderbook.Level{level(100, 5), level(100.5, 5), level(101, 5)}
	sellBids := []orderbook.Level{level(101.5, 15)}
	r := Walk(buyAsks, sellBids, Fees{BuyFeeBPS: 10, SellFeeBPS: 10})
	if r.Amount.ToDecimal() != 15 {
		t.Fatalf("expected full 15 consumed across levels, got %v", r.Amount.ToDecimal())
	}
	if !r.IsProfitable() {
		t.Fatalf("expected profitable trade, got %+v", r)
	}
	if r.BuyLevelsUsed != 3 {
		t.Errorf("expected all 3 buy levels consumed, got %d", r.BuyLevelsUsed)
	}
}

func TestWalkStopsWhenNotProfitable(t *testing.T) {
	buyAsks := []orderbook.Level{level(100, 10)}
	sellBids := []orderbook.Level{level(100.01, 10)}
	r := Walk(buyAsks, sellBids, Fees{BuyFeeBPS: 50, SellFeeBPS: 50})
	if r.Amount != 0 {
		t.Fatalf("fees should eliminate the thin spread, got amount=%v", r.Amount.ToDecimal())
	}
}

func TestWalkWithdrawalFeeCanFlipProfitNegative(t *testing.T) {
	buyAsks := []orderbook.Level{level(100, 1)}
	sellBids := []orderbook.Level{level(100.2, 1)}
	noWithdrawal := Walk(buyAsks, sellBids, Fees{})
	withWithdrawal := Walk(buyAsks, sellBids, Fees{WithdrawalFee: fixedpoint.FromDecimal(1)})
	if withWithdrawal.Profit >= noWithdrawal.Profit {
		t.Fatal("increasing withdrawal fee must not increase profit")
	}
}

func TestWalkMonotonicityIncreasingFeeNeverIncreasesProfit(t *testing.T) {
	buyAsks := []orderbook.Level{level(100, 3)}
	sellBids := []orderbook.Level{level(101, 3)}
	low := Walk(buyAsks, sellBids, Fees{BuyFeeBPS: 5, SellFeeBPS: 5})
	high := Walk(buyAsks, sellBids, Fees{BuyFeeBPS: 20, SellFeeBPS: 20})
	if high.Profit > low.Profit {
		t.Fatalf("higher fees must not increase profit: low=%d high=%d", low.Profit, high.Profit)
	}
}

func TestWalkLevelMergeInvariance(t *testing.T) {
	split := []orderbook.Level{level(100, 2), level(100.5, 2)}
	merged := []orderbook.Level{level(100.25, 4)} // same total size, single "average" level
	sellBids := []orderbook.Level{level(102, 10)}
	rs := Walk(split, sellBids, Fees{})
	rm := Walk(merged, sellBids, Fees{})
	// Both books cost 401 for 4 units against a 408 bid, so the walks
	// must agree on amount and profit.
	if !rs.IsProfitable() || !rm.IsProfitable() {
		t.Fatalf("both split and merged walks should be profitable: split=%+v merged=%+v", rs, rm)
	}
	if rs.Profit != rm.Profit || rs.Amount != rm.Amount {
		t.Fatalf("merging levels changed the result: split=%+v merged=%+v", rs, rm)
	}
}
