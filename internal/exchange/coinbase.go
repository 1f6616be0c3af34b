package exchange

import (
	"strings"

	"github.com/arbitrage-core/arbitrage-core/internal/exchange/coinbaseauth"
	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/orderbook"
	"github.com/arbitrage-core/arbitrage-core/internal/wsclient"
)

// CoinbaseMaxStreamsPerConnection is the hard cap Coinbase imposes on L2
// subscriptions per websocket connection.
const CoinbaseMaxStreamsPerConnection = 30

const coinbaseWSURL = "wss://advanced-trade-ws.coinbase.com"

var coinbaseQuotes = []string{"USDT", "USDC", "USD"}

// Coinbase implements Adapter against the Advanced Trade l2_data channel.
// Every connection also subscribes to heartbeats, required to keep the
// 60-90s idle timeout from firing.
type Coinbase struct {
	signer *coinbaseauth.Signer
}

// NewCoinbase builds a Coinbase adapter. signer may be nil in which case
// subscribe payloads omit the jwt field (useful against a public sandbox
// or in tests); production use requires a signer.
func NewCoinbase(signer *coinbaseauth.Signer) *Coinbase {
	return &Coinbase{signer: signer}
}

func (c *Coinbase) Venue() market.Venue { return market.VenueCoinbase }
func (c *Coinbase) WSURL() string       { return coinbaseWSURL }

func (c *Coinbase) ExtractBaseQuote(nativeSymbol string) (string, market.QuoteCurrency, bool) {
	symbol := strings.ToUpper(strings.ReplaceAll(nativeSymbol, "-", ""))
	base, quote, ok := stripSuffix(symbol, coinbaseQuotes)
	if !ok {
		return "", market.QuoteUnknown, false
	}
	qc := market.QuoteUSD
	switch quote {
	case "USDT":
		qc = market.QuoteUSDT
	case "USDC":
		qc = market.QuoteUSDC
	}
	return base, qc, true
}

func (c *Coinbase) toProductID(nativeSymbol string) string {
	if strings.Contains(nativeSymbol, "-") {
		return strings.ToUpper(nativeSymbol)
	}
	base, quote, ok := c.ExtractBaseQuote(nativeSymbol)
	if !ok {
		return strings.ToUpper(nativeSymbol)
	}
	return base + "-" + quote.String()
}

func (c *Coinbase) jwt() (string, error) {
	if c.signer == nil {
		return "", nil
	}
	return c.signer.Token()
}

// SubscriptionBuilder emits one l2_data subscribe/unsubscribe message per
// change plus, on every Subscribe, a heartbeats subscribe to keep the
// connection alive.
func (c *Coinbase) SubscriptionBuilder() wsclient.SubscriptionBuilder {
	return func(change wsclient.SubscriptionChange) ([][]byte, error) {
		if len(change.Symbols) == 0 {
			return nil, nil
		}
		token, err := c.jwt()
		if err != nil {
			return nil, err
		}
		productIDs := make([]string, len(change.Symbols))
		for i, s := range change.Symbols {
			productIDs[i] = c.toProductID(s)
		}

		msgType := "subscribe"
		if change.Kind == wsclient.Unsubscribe {
			msgType = "unsubscribe"
		}

		l2msg := map[string]any{
			"type":        msgType,
			"product_ids": productIDs,
			"channel":     "l2_data",
		}
		if token != "" {
			l2msg["jwt"] = token
		}
		l2buf, err := wsJSON.Marshal(l2msg)
		if err != nil {
			return nil, err
		}

		out := [][]byte{l2buf}
		if change.Kind == wsclient.Subscribe {
			hbMsg := map[string]any{
				"type":    "subscribe",
				"channel": "heartbeats",
			}
			if token != "" {
				hbMsg["jwt"] = token
			}
			hbBuf, err := wsJSON.Marshal(hbMsg)
			if err != nil {
				return out, nil
			}
			out = append(out, hbBuf)
		}
		return out, nil
	}
}

type coinbaseL2Event struct {
	Channel string `json:"channel"`
	Events  []struct {
		Type      string `json:"type"` // "snapshot" | "update"
		ProductID string `json:"product_id"`
		Updates   []struct {
			Side        string `json:"side"` // "bid"/"buy" or "offer"/"sell"
			PriceLevel  string `json:"price_level"`
			NewQuantity string `json:"new_quantity"`
		} `json:"updates"`
	} `json:"events"`
}

func normalizeCoinbaseSide(side string) string {
	switch strings.ToLower(side) {
	case "bid", "buy":
		return "buy"
	case "offer", "ask", "sell":
		return "sell"
	default:
		return strings.ToLower(side)
	}
}

// ParseMessage handles both snapshot and update events. A snapshot
// replaces the book via sink.OnBookSnapshot; an update applies deltas via
// sink.OnBookDelta, with new_quantity=0 removing the level. Heartbeat
// frames are ignored.
func (c *Coinbase) ParseMessage(msg []byte, sink Sink) error {
	var ev coinbaseL2Event
	if err := wsJSON.Unmarshal(msg, &ev); err != nil {
		return err
	}
	if ev.Channel != "l2_data" {
		return nil
	}
	for _, e := range ev.Events {
		base, quote, ok := c.ExtractBaseQuote(e.ProductID)
		if !ok {
			continue
		}
		pairID := market.PairID(base)

		var bids, asks []orderbook.Level
		for _, u := range e.Updates {
			lvl := orderbook.Level{Price: parseFixed(u.PriceLevel), Size: parseFixed(u.NewQuantity)}
			if normalizeCoinbaseSide(u.Side) == "buy" {
				bids = append(bids, lvl)
			} else {
				asks = append(asks, lvl)
			}
		}
		if e.Type == "snapshot" {
			sink.OnBookSnapshot(pairID, bids, asks)
		} else {
			sink.OnBookDelta(pairID, bids, asks)
		}

		if len(bids) > 0 || len(asks) > 0 {
			var bid, ask, bidSize, askSize fixedpoint.FixedPoint
			if len(bids) > 0 {
				bid, bidSize = bids[0].Price, bids[0].Size
			}
			if len(asks) > 0 {
				ask, askSize = asks[0].Price, asks[0].Size
			}
			tick := market.NewPriceTick(market.VenueCoinbase, pairID, 0, bid, ask).
				WithQuote(quote).
				WithSizes(bidSize, askSize)
			sink.OnTick(tick)
		}
	}
	return nil
}
