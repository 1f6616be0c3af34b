package exchange

import (
	"strings"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/wsclient"
)

const gateioWSURL = "wss://api.gateio.ws/ws/v4/"

var gateioQuotes = []string{"USDT", "USDC", "USD"}

// GateIO implements Adapter against the spot.order_book channel: every
// update is a full 20-level snapshot, so no delta reconciliation is
// needed, mirroring Binance's depth20 contract.
type GateIO struct{}

func NewGateIO() *GateIO { return &GateIO{} }

func (g *GateIO) Venue() market.Venue { return market.VenueGateIO }
func (g *GateIO) WSURL() string       { return gateioWSURL }

func (g *GateIO) toPair(nativeSymbol string) string {
	if strings.Contains(nativeSymbol, "_") {
		return strings.ToUpper(nativeSymbol)
	}
	base, quote, ok := g.ExtractBaseQuote(nativeSymbol)
	if !ok {
		return strings.ToUpper(nativeSymbol)
	}
	return base + "_" + quote.String()
}

func (g *GateIO) ExtractBaseQuote(nativeSymbol string) (string, market.QuoteCurrency, bool) {
	symbol := strings.ToUpper(strings.ReplaceAll(nativeSymbol, "_", ""))
	base, quote, ok := stripSuffix(symbol, gateioQuotes)
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

// SubscriptionBuilder issues one spot.order_book subscribe per symbol,
// per spec's literal [<PAIR>, "20", "100ms"] payload.
func (g *GateIO) SubscriptionBuilder() wsclient.SubscriptionBuilder {
	return func(change wsclient.SubscriptionChange) ([][]byte, error) {
		if len(change.Symbols) == 0 {
			return nil, nil
		}
		event := "subscribe"
		if change.Kind == wsclient.Unsubscribe {
			event = "unsubscribe"
		}
		var out [][]byte
		for _, s := range change.Symbols {
			payload := map[string]any{
				"time":    0,
				"channel": "spot.order_book",
				"event":   event,
				"payload": []string{g.toPair(s), "20", "100ms"},
			}
			buf, err := wsJSON.Marshal(payload)
			if err != nil {
				return nil, err
			}
			out = append(out, buf)
		}
		return out, nil
	}
}

type gateioOrderBookFrame struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Result  struct {
		S    string     `json:"s"`
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	} `json:"result"`
}

func (g *GateIO) ParseMessage(msg []byte, sink Sink) error {
	var f gateioOrderBookFrame
	if err := wsJSON.Unmarshal(msg, &f); err != nil {
		return err
	}
	if f.Channel != "spot.order_book" || f.Event != "update" {
		return nil
	}
	base, quote, ok := g.ExtractBaseQuote(f.Result.S)
	if !ok {
		return nil
	}
	pairID := market.PairID(base)
	bids := levelsFromStrings(f.Result.Bids)
	asks := levelsFromStrings(f.Result.Asks)
	sink.OnBookSnapshot(pairID, bids, asks)

	var bid, ask, bidSize, askSize fixedpoint.FixedPoint
	if len(bids) > 0 {
		bid, bidSize = bids[0].Price, bids[0].Size
	}
	if len(asks) > 0 {
		ask, askSize = asks[0].Price, asks[0].Size
	}
	tick := market.NewPriceTick(market.VenueGateIO, pairID, 0, bid, ask).
		WithQuote(quote).
		WithSizes(bidSize, askSize)
	sink.OnTick(tick)
	return nil
}
