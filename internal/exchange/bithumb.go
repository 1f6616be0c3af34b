package exchange

import (
	"strings"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/orderbook"
	"github.com/arbitrage-core/arbitrage-core/internal/wsclient"
)

const bithumbWSPublic = "wss://pubwss.bithumb.com/pub/ws"

// Bithumb mirrors Upbit's composite subscribe protocol (same ticket/type
// array shape) but requests orderbook level 1 rather than level 0, and its
// frames sometimes arrive flagged as raw binary-framed JSON rather than a
// text frame; decodeBithumbFrame strips that framing before unmarshaling.
type Bithumb struct{}

func NewBithumb() *Bithumb { return &Bithumb{} }

func (b *Bithumb) Venue() market.Venue { return market.VenueBithumb }
func (b *Bithumb) WSURL() string       { return bithumbWSPublic }

func (b *Bithumb) ExtractBaseQuote(nativeSymbol string) (string, market.QuoteCurrency, bool) {
	symbol := strings.ToUpper(nativeSymbol)
	if !strings.HasPrefix(symbol, "KRW-") {
		return "", market.QuoteUnknown, false
	}
	return strings.TrimPrefix(symbol, "KRW-"), market.QuoteKRW, true
}

func (b *Bithumb) toCode(nativeSymbol string) string {
	if strings.Contains(nativeSymbol, "-") {
		return strings.ToUpper(nativeSymbol)
	}
	return "KRW-" + strings.ToUpper(nativeSymbol)
}

func (b *Bithumb) isFXBase(base string) bool {
	return base == "USDT" || base == "USDC"
}

func (b *Bithumb) SubscriptionBuilder() wsclient.SubscriptionBuilder {
	return upbitStyleBuilder(b.toCode, 1)
}

// decodeBithumbFrame strips Bithumb's occasional leading framing byte on
// frames the gateway marks binary rather than text; a well-formed JSON
// frame (starting with '{' or '[') passes through untouched.
func decodeBithumbFrame(msg []byte) []byte {
	for i, c := range msg {
		if c == '{' || c == '[' {
			return msg[i:]
		}
		if i > 4 {
			break
		}
	}
	return msg
}

type bithumbOrderbookMsg struct {
	Type    string `json:"ty"`
	Code    string `json:"cd"`
	Amounts []struct {
		AskPrice float64 `json:"ap"`
		BidPrice float64 `json:"bp"`
		AskSize  float64 `json:"as"`
		BidSize  float64 `json:"bs"`
	} `json:"obu"`
}

func (b *Bithumb) ParseMessage(raw []byte, sink Sink) error {
	msg := decodeBithumbFrame(raw)
	var m bithumbOrderbookMsg
	if err := wsJSON.Unmarshal(msg, &m); err != nil {
		return err
	}
	if m.Type != "orderbook" || len(m.Amounts) == 0 {
		return nil
	}
	base, quote, ok := b.ExtractBaseQuote(m.Code)
	if !ok {
		return nil
	}

	top := m.Amounts[0]
	bid := fixedpoint.FromDecimal(top.BidPrice)
	ask := fixedpoint.FromDecimal(top.AskPrice)
	bidSize := fixedpoint.FromDecimal(top.BidSize)
	askSize := fixedpoint.FromDecimal(top.AskSize)

	if b.isFXBase(base) {
		if !ask.IsZero() {
			sink.OnFXRate(market.VenueBithumb, fxQuote(base), ask)
		}
		return nil
	}

	bids := make([]orderbook.Level, 0, len(m.Amounts))
	asks := make([]orderbook.Level, 0, len(m.Amounts))
	for _, lvl := range m.Amounts {
		bids = append(bids, orderbook.Level{Price: fixedpoint.FromDecimal(lvl.BidPrice), Size: fixedpoint.FromDecimal(lvl.BidSize)})
		asks = append(asks, orderbook.Level{Price: fixedpoint.FromDecimal(lvl.AskPrice), Size: fixedpoint.FromDecimal(lvl.AskSize)})
	}
	pairID := market.PairID(base)
	sink.OnBookSnapshot(pairID, bids, asks)

	tick := market.NewPriceTick(market.VenueBithumb, pairID, 0, bid, ask).
		WithQuote(quote).
		WithSizes(bidSize, askSize)
	sink.OnTick(tick)
	return nil
}
