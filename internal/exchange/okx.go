package exchange

import (
	"strings"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/wsclient"
)

const okxWSPublicSpot = "wss://ws.okx.com:8443/ws/v5/public"

var okxQuotes = []string{"USDT", "USDC", "USD"}

// OKX is discovery-led: markets are enumerated over REST by the instruments
// fetcher, and the live feed follows the same books channel pattern as the
// other order-book venues, without any venue-specific quirks worth pinning
// down beyond the instrument ID format.
type OKX struct{}

func NewOKX() *OKX { return &OKX{} }

func (o *OKX) Venue() market.Venue { return market.VenueOkx }
func (o *OKX) WSURL() string       { return okxWSPublicSpot }

func (o *OKX) toInstID(nativeSymbol string) string {
	if strings.Contains(nativeSymbol, "-") {
		return strings.ToUpper(nativeSymbol)
	}
	base, quote, ok := o.ExtractBaseQuote(nativeSymbol)
	if !ok {
		return strings.ToUpper(nativeSymbol)
	}
	return base + "-" + quote.String()
}

func (o *OKX) ExtractBaseQuote(nativeSymbol string) (string, market.QuoteCurrency, bool) {
	symbol := strings.ToUpper(strings.ReplaceAll(nativeSymbol, "-", ""))
	base, quote, ok := stripSuffix(symbol, okxQuotes)
	if !ok {
		return "", market.QuoteUnknown, false
	}
	qc := market.QuoteUSDT
	switch quote {
	case "USDC":
		qc = market.QuoteUSDC
	case "USD":
		qc = market.QuoteUSD
	}
	return base, qc, true
}

// SubscriptionBuilder subscribes to the books5 channel (5-level top of
// book), OKX's lightest order-book stream, one arg per instrument in a
// single subscribe message.
func (o *OKX) SubscriptionBuilder() wsclient.SubscriptionBuilder {
	return func(change wsclient.SubscriptionChange) ([][]byte, error) {
		if len(change.Symbols) == 0 {
			return nil, nil
		}
		op := "subscribe"
		if change.Kind == wsclient.Unsubscribe {
			op = "unsubscribe"
		}
		args := make([]map[string]string, 0, len(change.Symbols))
		for _, s := range change.Symbols {
			args = append(args, map[string]string{"channel": "books5", "instId": o.toInstID(s)})
		}
		buf, err := wsJSON.Marshal(map[string]any{"op": op, "args": args})
		if err != nil {
			return nil, err
		}
		return [][]byte{buf}, nil
	}
}

type okxBooksMsg struct {
	Arg struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data []struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	} `json:"data"`
}

func (o *OKX) ParseMessage(msg []byte, sink Sink) error {
	var m okxBooksMsg
	if err := wsJSON.Unmarshal(msg, &m); err != nil {
		return err
	}
	if m.Arg.Channel != "books5" || len(m.Data) == 0 {
		return nil
	}
	base, quote, ok := o.ExtractBaseQuote(m.Arg.InstID)
	if !ok {
		return nil
	}
	pairID := market.PairID(base)
	d := m.Data[0]
	bids := levelsFromStrings(d.Bids)
	asks := levelsFromStrings(d.Asks)
	sink.OnBookSnapshot(pairID, bids, asks)

	var bid, ask, bidSize, askSize fixedpoint.FixedPoint
	if len(bids) > 0 {
		bid, bidSize = bids[0].Price, bids[0].Size
	}
	if len(asks) > 0 {
		ask, askSize = asks[0].Price, asks[0].Size
	}
	tick := market.NewPriceTick(market.VenueOkx, pairID, 0, bid, ask).
		WithQuote(quote).
		WithSizes(bidSize, askSize)
	sink.OnTick(tick)
	return nil
}
