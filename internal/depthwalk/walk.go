// Package depthwalk implements the two-pointer optimal-size algorithm: the
// simultaneous walk of a buy venue's asks and a sell venue's bids, net of
// maker/taker/withdrawal fees, that produces the maximum profitable trade
// size for an arbitrage opportunity.
package depthwalk

import (
	"math"
	"math/big"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/orderbook"
)

// Fees are the inputs to the walk: taker fees on both legs plus a flat
// withdrawal fee denominated in base asset (same fixed-point scale as the
// traded quantity).
type Fees struct {
	BuyFeeBPS      int32
	SellFeeBPS     int32
	WithdrawalFee  fixedpoint.FixedPoint
}

// Result is the outcome of a depth walk.
type Result struct {
	Amount          fixedpoint.FixedPoint // base units transacted
	Profit          int64                 // signed, in quote-equivalent fixed-point units; may be negative after withdrawal fee
	AvgBuyPrice     fixedpoint.FixedPoint
	AvgSellPrice    fixedpoint.FixedPoint
	BuyLevelsUsed   int
	SellLevelsUsed  int
}

// IsProfitable reports whether the walk found a positive-profit, non-zero
// amount trade.
func (r Result) IsProfitable() bool {
	return r.Profit > 0 && r.Amount > 0
}

// Walk performs the two-pointer simultaneous walk of buyAsks (ascending by
// price, the side we buy from) against sellBids (descending by price, the
// side we sell into), net of fees. Either side empty returns a zero Result.
func Walk(buyAsks, sellBids []orderbook.Level, fees Fees) Result {
	if len(buyAsks) == 0 || len(sellBids) == 0 {
		return Result{}
	}

	i, j := 0, 0
	remainingBuy := buyAsks[0].Size
	remainingSell := sellBids[0].Size

	var totalAmount fixedpoint.FixedPoint
	var totalCost, totalRevenue *big.Int = big.NewInt(0), big.NewInt(0)
	var totalProfit *big.Int = big.NewInt(0)
	buyLevelsUsed, sellLevelsUsed := 0, 0

	for i < len(buyAsks) && j < len(sellBids) {
		pb := buyAsks[i].Price
		ps := sellBids[j].Price

		pbEff := effectiveBuyPrice(pb, fees.BuyFeeBPS)
		psEff := effectiveSellPrice(ps, fees.SellFeeBPS)

		if psEff <= pbEff {
			break
		}

		q := remainingBuy
		if remainingSell < q {
			q = remainingSell
		}
		if q == 0 {
			break
		}

		totalAmount = totalAmount.Add(q)
		totalCost.Add(totalCost, mulBig(q, pb))
		totalRevenue.Add(totalRevenue, mulBig(q, ps))
		totalProfit.Add(totalProfit, mulBig(q, psEff.Sub(pbEff)))

		remainingBuy = remainingBuy.Sub(q)
		remainingSell = remainingSell.Sub(q)

		if remainingBuy == 0 {
			i++
			buyLevelsUsed = i
			if i < len(buyAsks) {
				remainingBuy = buyAsks[i].Size
			}
		}
		if remainingSell == 0 {
			j++
			sellLevelsUsed = j
			if j < len(sellBids) {
				remainingSell = sellBids[j].Size
			}
		}
	}

	if buyLevelsUsed == 0 && totalAmount > 0 {
		buyLevelsUsed = i + 1
	}
	if sellLevelsUsed == 0 && totalAmount > 0 {
		sellLevelsUsed = j + 1
	}

	// totalProfit currently holds sum(q*(ps_eff-pb_eff)) scaled by Scale^2;
	// rescale down to Scale, then subtract the flat withdrawal fee
	// (denominated directly in base-asset fixed-point units, so it must be
	// converted to the same quote-equivalent unit via the average sell
	// price before subtraction — approximated here using the raw average
	// sell price (total revenue / total amount, before fees), consistent
	// with "profit net of withdrawal fee in quote terms").
	profitScale := new(big.Int).Quo(totalProfit, big.NewInt(fixedpoint.Scale))

	avgBuy, avgSell := fixedpoint.Zero, fixedpoint.Zero
	if totalAmount > 0 {
		avgBuy = divBigToFixed(totalCost, totalAmount)
		avgSell = divBigToFixed(totalRevenue, totalAmount)
	}

	withdrawalCostInQuote := fees.WithdrawalFee.Mul(avgSell)
	profitScale.Sub(profitScale, big.NewInt(0).SetUint64(uint64(withdrawalCostInQuote)))

	profit := saturateInt64(profitScale)

	return Result{
		Amount:         totalAmount,
		Profit:         profit,
		AvgBuyPrice:    avgBuy,
		AvgSellPrice:   avgSell,
		BuyLevelsUsed:  buyLevelsUsed,
		SellLevelsUsed: sellLevelsUsed,
	}
}

// effectiveBuyPrice returns p*(1+feeBps/10000).
func effectiveBuyPrice(p fixedpoint.FixedPoint, feeBps int32) fixedpoint.FixedPoint {
	num := big.NewInt(10000 + int64(feeBps))
	prod := new(big.Int).Mul(big.NewInt(0).SetUint64(uint64(p)), num)
	prod.Quo(prod, big.NewInt(10000))
	return fixedpoint.FixedPoint(saturateUint64(prod))
}

// effectiveSellPrice returns p*(1-feeBps/10000).
func effectiveSellPrice(p fixedpoint.FixedPoint, feeBps int32) fixedpoint.FixedPoint {
	num := big.NewInt(10000 - int64(feeBps))
	if num.Sign() < 0 {
		num = big.NewInt(0)
	}
	prod := new(big.Int).Mul(big.NewInt(0).SetUint64(uint64(p)), num)
	prod.Quo(prod, big.NewInt(10000))
	return fixedpoint.FixedPoint(saturateUint64(prod))
}

func mulBig(a, b fixedpoint.FixedPoint) *big.Int {
	return new(big.Int).Mul(big.NewInt(0).SetUint64(uint64(a)), big.NewInt(0).SetUint64(uint64(b)))
}

func divBigToFixed(numScaled *big.Int, denom fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	// numScaled is already in Scale^2 units (product of two Scale-1e8
	// values); dividing by a Scale-1e8 denominator yields a Scale-1e8
	// result directly: (num*Scale)/(denom) requires care since numScaled
	// is already num*Scale^... Using: avg = totalCost/totalAmount where
	// totalCost is sum(price*qty) in Scale^2 units and totalAmount is in
	// Scale units, so avg = totalCost/totalAmount is in Scale units.
	if denom == 0 {
		return 0
	}
	q := new(big.Int).Quo(numScaled, big.NewInt(0).SetUint64(uint64(denom)))
	return fixedpoint.FixedPoint(saturateUint64(q))
}

func saturateUint64(v *big.Int) uint64 {
	if v.Sign() < 0 {
		return 0
	}
	maxU := new(big.Int).SetUint64(math.MaxUint64)
	if v.Cmp(maxU) > 0 {
		return math.MaxUint64
	}
	return v.Uint64()
}

func saturateInt64(v *big.Int) int64 {
	maxI := big.NewInt(math.MaxInt64)
	minI := big.NewInt(math.MinInt64)
	if v.Cmp(maxI) > 0 {
		return math.MaxInt64
	}
	if v.Cmp(minI) < 0 {
		return math.MinInt64
	}
	return v.Int64()
}
