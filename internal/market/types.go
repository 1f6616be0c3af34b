// Package market holds the closed-set enums and the packed PriceTick record
// shared by every subsystem: feed adapters, the aggregator, the premium
// matrix and the opportunity detector.
package market

import (
	"hash/fnv"
	"strings"
	"time"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
)

// Venue is a closed set of supported exchanges, each with a stable 16-bit
// id. DEX placeholders are reserved but never emit ticks in the CORE.
type Venue uint16

const (
	VenueUnknown Venue = iota
	VenueBinance
	VenueCoinbase
	VenueKraken
	VenueBybit
	VenueOkx
	VenueGateIO
	VenueUpbit
	VenueBithumb
	// DEX placeholders, reserved but unimplemented in the CORE.
	VenueUniswapV3
	VenueCurve
)

func (v Venue) String() string {
	switch v {
	case VenueBinance:
		return "binance"
	case VenueCoinbase:
		return "coinbase"
	case VenueKraken:
		return "kraken"
	case VenueBybit:
		return "bybit"
	case VenueOkx:
		return "okx"
	case VenueGateIO:
		return "gateio"
	case VenueUpbit:
		return "upbit"
	case VenueBithumb:
		return "bithumb"
	case VenueUniswapV3:
		return "uniswap_v3"
	case VenueCurve:
		return "curve"
	default:
		return "unknown"
	}
}

// IsKorean reports whether the venue natively quotes in KRW.
func (v Venue) IsKorean() bool {
	return v == VenueUpbit || v == VenueBithumb
}

// ParseVenue parses the lowercase names String returns, case-insensitively.
// It reports false for anything it doesn't recognize rather than silently
// returning VenueUnknown, so callers can distinguish "explicitly unknown"
// from "not present in the input".
func ParseVenue(name string) (Venue, bool) {
	switch strings.ToLower(name) {
	case "binance":
		return VenueBinance, true
	case "coinbase":
		return VenueCoinbase, true
	case "kraken":
		return VenueKraken, true
	case "bybit":
		return VenueBybit, true
	case "okx":
		return VenueOkx, true
	case "gateio":
		return VenueGateIO, true
	case "upbit":
		return VenueUpbit, true
	case "bithumb":
		return VenueBithumb, true
	case "uniswap_v3":
		return VenueUniswapV3, true
	case "curve":
		return VenueCurve, true
	default:
		return VenueUnknown, false
	}
}

// QuoteCurrency is a closed set of quote denominations.
type QuoteCurrency uint8

const (
	QuoteUnknown QuoteCurrency = iota
	QuoteUSD
	QuoteUSDT
	QuoteUSDC
	QuoteBUSD
	QuoteKRW
)

func (q QuoteCurrency) String() string {
	switch q {
	case QuoteUSD:
		return "USD"
	case QuoteUSDT:
		return "USDT"
	case QuoteUSDC:
		return "USDC"
	case QuoteBUSD:
		return "BUSD"
	case QuoteKRW:
		return "KRW"
	default:
		return "UNKNOWN"
	}
}

// IsUSDLike reports whether q is one of the USD-equivalent stablecoins.
func (q QuoteCurrency) IsUSDLike() bool {
	switch q {
	case QuoteUSD, QuoteUSDT, QuoteUSDC, QuoteBUSD:
		return true
	default:
		return false
	}
}

// quoteSuffixPriority lists recognized quote suffixes longest-first so that
// e.g. "USDT" matches before "USD" when splitting a combined symbol.
var quoteSuffixPriority = []string{"USDT", "USDC", "BUSD", "KRW", "USD"}

// quoteFromSuffix maps a matched suffix string to its QuoteCurrency.
func quoteFromSuffix(suffix string) QuoteCurrency {
	switch suffix {
	case "USDT":
		return QuoteUSDT
	case "USDC":
		return QuoteUSDC
	case "BUSD":
		return QuoteBUSD
	case "KRW":
		return QuoteKRW
	case "USD":
		return QuoteUSD
	default:
		return QuoteUnknown
	}
}

// ExtractBaseQuote splits a combined venue symbol (e.g. "BTCUSDT",
// "BTC-USDT", "KRW-BTC") into base and quote parts by matching the longest
// recognized quote suffix first. The caller indicates whether the quote
// appears as a prefix (Korean venues, "KRW-BTC") or a suffix (everyone
// else, "BTCUSDT"/"BTC-USDT").
func ExtractBaseQuote(symbol string, quotePrefixed bool) (base string, quote QuoteCurrency, ok bool) {
	clean := strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
	sep := strings.Contains(symbol, "-")

	if quotePrefixed {
		for _, suf := range quoteSuffixPriority {
			if strings.HasPrefix(clean, suf) {
				base = clean[len(suf):]
				if base == "" {
					continue
				}
				return base, quoteFromSuffix(suf), true
			}
		}
		return "", QuoteUnknown, false
	}

	_ = sep
	for _, suf := range quoteSuffixPriority {
		if strings.HasSuffix(clean, suf) {
			base = clean[:len(clean)-len(suf)]
			if base == "" {
				continue
			}
			return base, quoteFromSuffix(suf), true
		}
	}
	return "", QuoteUnknown, false
}

// DefaultChain and DefaultDecimals are used for assets whose chain metadata
// is otherwise unknown at discovery time.
const (
	DefaultChain    = "unknown"
	DefaultDecimals = 18
)

// Asset identifies a tradable base currency.
type Asset struct {
	Symbol   string // canonical upper-cased symbol, <=16 bytes
	Chain    string
	Decimals uint8
}

// NewAsset builds an Asset, applying default chain/decimals when unknown.
func NewAsset(symbol, chain string, decimals uint8) Asset {
	if chain == "" {
		chain = DefaultChain
	}
	if decimals == 0 {
		decimals = DefaultDecimals
	}
	if len(symbol) > 16 {
		symbol = symbol[:16]
	}
	return Asset{Symbol: strings.ToUpper(symbol), Chain: chain, Decimals: decimals}
}

// PairID returns the stable 32-bit FNV-1a hash of the upper-cased base
// symbol, used as the pair identifier throughout the system.
func PairID(baseSymbol string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToUpper(baseSymbol)))
	return h.Sum32()
}

// LiquidityHint is a coarse classification of how much size a venue tends
// to show at top-of-book for a pair, used by consumers as a cheap filter
// before walking full depth.
type LiquidityHint uint8

const (
	LiquidityUnknown LiquidityHint = iota
	LiquidityThin
	LiquidityNormal
	LiquidityDeep
)

// PriceTick is one normalized market snapshot from a venue for one pair.
// It is immutable once constructed and is safely copied by value; the
// aggregator replaces the whole record atomically on update, so readers
// never observe a torn tick. The record has a fixed size: 64 bytes of
// field data, laid out unpacked with Go's natural alignment to 80 bytes
// on 64-bit targets.
type PriceTick struct {
	Venue         Venue
	PairID        uint32
	Quote         QuoteCurrency
	Mid           fixedpoint.FixedPoint
	Bid           fixedpoint.FixedPoint
	Ask           fixedpoint.FixedPoint
	BidSize       fixedpoint.FixedPoint
	AskSize       fixedpoint.FixedPoint
	Volume24h     fixedpoint.FixedPoint // 0 = not reported
	TimestampMs   int64
	Liquidity     LiquidityHint
}

// NewPriceTick stamps "now" as TimestampMs and computes Mid from bid/ask
// when both are non-zero.
func NewPriceTick(venue Venue, pairID uint32, price, bid, ask fixedpoint.FixedPoint) PriceTick {
	mid := price
	if bid != 0 && ask != 0 {
		mid = bid.Add(ask).Div(fixedpoint.FromDecimal(2))
	}
	return PriceTick{
		Venue:       venue,
		PairID:      pairID,
		Mid:         mid,
		Bid:         bid,
		Ask:         ask,
		TimestampMs: time.Now().UnixMilli(),
	}
}

// WithSizes returns a copy of t with bid/ask sizes set.
func (t PriceTick) WithSizes(bidSize, askSize fixedpoint.FixedPoint) PriceTick {
	t.BidSize = bidSize
	t.AskSize = askSize
	return t
}

// WithQuote returns a copy of t with its quote currency set.
func (t PriceTick) WithQuote(qc QuoteCurrency) PriceTick {
	t.Quote = qc
	return t
}

// WithVolume returns a copy of t with its 24h volume set.
func (t PriceTick) WithVolume(v fixedpoint.FixedPoint) PriceTick {
	t.Volume24h = v
	return t
}

// WithTimestamp returns a copy of t with an explicit event timestamp,
// overriding the construction-time "now" stamp. Used when the wire message
// itself carries an authoritative timestamp.
func (t PriceTick) WithTimestamp(ms int64) PriceTick {
	t.TimestampMs = ms
	return t
}

// Valid checks the tick invariants from the data model: bid<=ask when both
// are non-zero.
func (t PriceTick) Valid() bool {
	if t.Bid != 0 && t.Ask != 0 && t.Bid > t.Ask {
		return false
	}
	return true
}

// Key returns the (venue,pair) composite used to index the aggregator.
type Key struct {
	Venue  Venue
	PairID uint32
}
