package exchange

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
)

// wsJSON is the codec every adapter uses to decode inbound frames.
var wsJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// parseFixed converts a venue's string-encoded price/size field into a
// FixedPoint, returning zero on a malformed or empty value rather than
// erroring — one bad field in a ticker update should not drop the tick.
func parseFixed(s string) fixedpoint.FixedPoint {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return fixedpoint.FromDecimal(f)
}

// parseFixedNum converts a JSON numeric field (decoded as float64) into a
// FixedPoint.
func parseFixedNum(f float64) fixedpoint.FixedPoint {
	return fixedpoint.FromDecimal(f)
}

// stripSuffix extracts base/quote from a concatenated symbol such as
// BTCUSDT given a list of quote suffixes to try, longest first.
func stripSuffix(symbol string, quotes []string) (base, quote string, ok bool) {
	for _, q := range quotes {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return strings.TrimSuffix(symbol, q), q, true
		}
	}
	return "", "", false
}

// fxQuote maps a KRW-quoted FX feed's base asset (USDT or USDC) to the
// QuoteCurrency Sink.OnFXRate reports it under.
func fxQuote(base string) market.QuoteCurrency {
	if base == "USDC" {
		return market.QuoteUSDC
	}
	return market.QuoteUSDT
}
