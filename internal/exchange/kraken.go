package exchange

import (
	"strings"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/orderbook"
	"github.com/arbitrage-core/arbitrage-core/internal/symbolmap"
	"github.com/arbitrage-core/arbitrage-core/internal/wsclient"
)

const krakenWSPublic = "wss://ws.kraken.com/v2"

// ZUSD must be tried before USD: every ZUSD symbol also ends in USD, and
// stripSuffix takes the first match in order.
var krakenQuotes = []string{"USDT", "USDC", "ZUSD", "USD"}

// Kraken is discovery-led like OKX: the instrument universe comes from
// the AssetPairs REST endpoint, with symbolmap.NormalizeKrakenAsset
// unwinding the legacy X/Z asset-code prefixes. The live feed follows the
// same v2 book-channel pattern the other venues use.
type Kraken struct{}

func NewKraken() *Kraken { return &Kraken{} }

func (k *Kraken) Venue() market.Venue { return market.VenueKraken }
func (k *Kraken) WSURL() string       { return krakenWSPublic }

func (k *Kraken) ExtractBaseQuote(nativeSymbol string) (string, market.QuoteCurrency, bool) {
	symbol := strings.ToUpper(strings.ReplaceAll(nativeSymbol, "/", ""))
	base, quote, ok := stripSuffix(symbol, krakenQuotes)
	if !ok {
		return "", market.QuoteUnknown, false
	}
	base = symbolmap.NormalizeKrakenAsset(base)
	qc := market.QuoteUSDT
	switch quote {
	case "USDC":
		qc = market.QuoteUSDC
	case "USD", "ZUSD":
		qc = market.QuoteUSD
	}
	return base, qc, true
}

func (k *Kraken) toPair(nativeSymbol string) string {
	if strings.Contains(nativeSymbol, "/") {
		return strings.ToUpper(nativeSymbol)
	}
	base, quote, ok := k.ExtractBaseQuote(nativeSymbol)
	if !ok {
		return strings.ToUpper(nativeSymbol)
	}
	return base + "/" + quote.String()
}

// SubscriptionBuilder subscribes to the v2 "book" channel at its lightest
// depth (10 levels), one message naming every symbol.
func (k *Kraken) SubscriptionBuilder() wsclient.SubscriptionBuilder {
	return func(change wsclient.SubscriptionChange) ([][]byte, error) {
		if len(change.Symbols) == 0 {
			return nil, nil
		}
		method := "subscribe"
		if change.Kind == wsclient.Unsubscribe {
			method = "unsubscribe"
		}
		pairs := make([]string, 0, len(change.Symbols))
		for _, s := range change.Symbols {
			pairs = append(pairs, k.toPair(s))
		}
		payload := map[string]any{
			"method": method,
			"params": map[string]any{
				"channel": "book",
				"symbol":  pairs,
				"depth":   10,
			},
		}
		buf, err := wsJSON.Marshal(payload)
		if err != nil {
			return nil, err
		}
		return [][]byte{buf}, nil
	}
}

type krakenBookMsg struct {
	Channel string `json:"channel"`
	Type    string `json:"type"` // "snapshot" | "update"
	Data    []struct {
		Symbol string `json:"symbol"`
		Bids   []struct {
			Price float64 `json:"price"`
			Qty   float64 `json:"qty"`
		} `json:"bids"`
		Asks []struct {
			Price float64 `json:"price"`
			Qty   float64 `json:"qty"`
		} `json:"asks"`
	} `json:"data"`
}

func (k *Kraken) ParseMessage(msg []byte, sink Sink) error {
	var m krakenBookMsg
	if err := wsJSON.Unmarshal(msg, &m); err != nil {
		return err
	}
	if m.Channel != "book" || len(m.Data) == 0 {
		return nil
	}
	d := m.Data[0]
	base, quote, ok := k.ExtractBaseQuote(d.Symbol)
	if !ok {
		return nil
	}
	pairID := market.PairID(base)

	bids := make([]orderbook.Level, 0, len(d.Bids))
	for _, b := range d.Bids {
		bids = append(bids, orderbook.Level{Price: parseFixedNum(b.Price), Size: parseFixedNum(b.Qty)})
	}
	asks := make([]orderbook.Level, 0, len(d.Asks))
	for _, a := range d.Asks {
		asks = append(asks, orderbook.Level{Price: parseFixedNum(a.Price), Size: parseFixedNum(a.Qty)})
	}

	if m.Type == "snapshot" {
		sink.OnBookSnapshot(pairID, bids, asks)
	} else {
		sink.OnBookDelta(pairID, bids, asks)
	}

	var bid, ask, bidSize, askSize fixedpoint.FixedPoint
	if len(bids) > 0 {
		bid, bidSize = bids[0].Price, bids[0].Size
	}
	if len(asks) > 0 {
		ask, askSize = asks[0].Price, asks[0].Size
	}
	tick := market.NewPriceTick(market.VenueKraken, pairID, 0, bid, ask).
		WithQuote(quote).
		WithSizes(bidSize, askSize)
	sink.OnTick(tick)
	return nil
}
