package exchange

import (
	"strings"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/orderbook"
	"github.com/arbitrage-core/arbitrage-core/internal/wsclient"
)

const upbitWSPublic = "wss://api.upbit.com/websocket/v1"

// Upbit implements Adapter against Upbit's single composite subscribe
// message: one JSON array naming a ticket, a ticker request, an orderbook
// request (level 0 — full precision, no price grouping) and a SIMPLE
// format flag. KRW-USDT and KRW-USDC are FX feeds, not tradable pairs, and
// are routed to Sink.OnFXRate instead of the tick/book path.
type Upbit struct{}

func NewUpbit() *Upbit { return &Upbit{} }

func (u *Upbit) Venue() market.Venue { return market.VenueUpbit }
func (u *Upbit) WSURL() string       { return upbitWSPublic }

func (u *Upbit) ExtractBaseQuote(nativeSymbol string) (string, market.QuoteCurrency, bool) {
	symbol := strings.ToUpper(nativeSymbol)
	if !strings.HasPrefix(symbol, "KRW-") {
		return "", market.QuoteUnknown, false
	}
	return strings.TrimPrefix(symbol, "KRW-"), market.QuoteKRW, true
}

func (u *Upbit) toCode(nativeSymbol string) string {
	if strings.Contains(nativeSymbol, "-") {
		return strings.ToUpper(nativeSymbol)
	}
	return "KRW-" + strings.ToUpper(nativeSymbol)
}

func (u *Upbit) isFXBase(base string) bool {
	return base == "USDT" || base == "USDC"
}

// SubscriptionBuilder ignores Unsubscribe: Upbit's composite message is a
// stateless full replacement, so unsubscribing a symbol is accomplished by
// the next Subscribe replay (internal/wsclient.resubscribeAll) carrying the
// reduced set, never by sending a delete.
func (u *Upbit) SubscriptionBuilder() wsclient.SubscriptionBuilder {
	return upbitStyleBuilder(u.toCode, 0)
}

// upbitStyleBuilder is shared with Bithumb, which differs only in its
// orderbook level (1 instead of 0); both send the same ticket.
func upbitStyleBuilder(toCode func(string) string, level int) wsclient.SubscriptionBuilder {
	return func(change wsclient.SubscriptionChange) ([][]byte, error) {
		if change.Kind == wsclient.Unsubscribe || len(change.Symbols) == 0 {
			return nil, nil
		}
		codes := make([]string, 0, len(change.Symbols))
		for _, s := range change.Symbols {
			codes = append(codes, toCode(s))
		}
		payload := []any{
			map[string]string{"ticket": "arbitrage-core"},
			map[string]any{"type": "ticker", "codes": codes},
			map[string]any{"type": "orderbook", "codes": codes, "level": level},
			map[string]string{"format": "SIMPLE"},
		}
		buf, err := wsJSON.Marshal(payload)
		if err != nil {
			return nil, err
		}
		return [][]byte{buf}, nil
	}
}

type upbitOrderbookMsg struct {
	Type        string `json:"ty"`
	Code        string `json:"cd"`
	OrderbookUs []struct {
		AskPrice float64 `json:"ap"`
		BidPrice float64 `json:"bp"`
		AskSize  float64 `json:"as"`
		BidSize  float64 `json:"bs"`
	} `json:"obu"`
}

// ParseMessage handles the SIMPLE-format orderbook event ("ty":"orderbook").
// Ticker events ("ty":"ticker") carry last-trade data this module doesn't
// need once the orderbook feed is live and are ignored.
func (u *Upbit) ParseMessage(msg []byte, sink Sink) error {
	var m upbitOrderbookMsg
	if err := wsJSON.Unmarshal(msg, &m); err != nil {
		return err
	}
	if m.Type != "orderbook" || len(m.OrderbookUs) == 0 {
		return nil
	}
	base, quote, ok := u.ExtractBaseQuote(m.Code)
	if !ok {
		return nil
	}

	top := m.OrderbookUs[0]
	bid := fixedpoint.FromDecimal(top.BidPrice)
	ask := fixedpoint.FromDecimal(top.AskPrice)
	bidSize := fixedpoint.FromDecimal(top.BidSize)
	askSize := fixedpoint.FromDecimal(top.AskSize)

	if u.isFXBase(base) {
		if !ask.IsZero() {
			sink.OnFXRate(market.VenueUpbit, fxQuote(base), ask)
		}
		return nil
	}

	bids := make([]orderbook.Level, 0, len(m.OrderbookUs))
	asks := make([]orderbook.Level, 0, len(m.OrderbookUs))
	for _, lvl := range m.OrderbookUs {
		bids = append(bids, orderbook.Level{Price: fixedpoint.FromDecimal(lvl.BidPrice), Size: fixedpoint.FromDecimal(lvl.BidSize)})
		asks = append(asks, orderbook.Level{Price: fixedpoint.FromDecimal(lvl.AskPrice), Size: fixedpoint.FromDecimal(lvl.AskSize)})
	}
	pairID := market.PairID(base)
	sink.OnBookSnapshot(pairID, bids, asks)

	tick := market.NewPriceTick(market.VenueUpbit, pairID, 0, bid, ask).
		WithQuote(quote).
		WithSizes(bidSize, askSize)
	sink.OnTick(tick)
	return nil
}
