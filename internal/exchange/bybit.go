package exchange

import (
	"strings"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/wsclient"
)

// BybitMaxArgsPerMessage bounds how many topics one SUBSCRIBE frame may
// name.
const BybitMaxArgsPerMessage = 10

const bybitWSSpotPublic = "wss://stream.bybit.com/v5/public/spot"

var bybitQuotes = []string{"USDT", "USDC", "USD"}

// Bybit implements Adapter against the orderbook.50.<symbol> spot topic:
// a `snapshot` message replaces the book, a `delta` message applies
// changes (size "0" removes a level).
type Bybit struct{}

func NewBybit() *Bybit { return &Bybit{} }

func (b *Bybit) Venue() market.Venue { return market.VenueBybit }
func (b *Bybit) WSURL() string       { return bybitWSSpotPublic }

func (b *Bybit) ExtractBaseQuote(nativeSymbol string) (string, market.QuoteCurrency, bool) {
	base, quote, ok := stripSuffix(strings.ToUpper(nativeSymbol), bybitQuotes)
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

func (b *Bybit) topic(symbol string) string {
	return "orderbook.50." + strings.ToUpper(symbol)
}

// SubscriptionBuilder batches topics into messages of at most
// BybitMaxArgsPerMessage args, per spec's per-message cap.
func (b *Bybit) SubscriptionBuilder() wsclient.SubscriptionBuilder {
	return func(change wsclient.SubscriptionChange) ([][]byte, error) {
		if len(change.Symbols) == 0 {
			return nil, nil
		}
		op := "subscribe"
		if change.Kind == wsclient.Unsubscribe {
			op = "unsubscribe"
		}
		var out [][]byte
		for i := 0; i < len(change.Symbols); i += BybitMaxArgsPerMessage {
			end := i + BybitMaxArgsPerMessage
			if end > len(change.Symbols) {
				end = len(change.Symbols)
			}
			args := make([]string, 0, end-i)
			for _, s := range change.Symbols[i:end] {
				args = append(args, b.topic(s))
			}
			buf, err := wsJSON.Marshal(map[string]any{"op": op, "args": args})
			if err != nil {
				return nil, err
			}
			out = append(out, buf)
		}
		return out, nil
	}
}

type bybitOrderbookMsg struct {
	Topic string `json:"topic"`
	Type  string `json:"type"` // "snapshot" | "delta"
	Data  struct {
		Symbol string     `json:"s"`
		Bids   [][]string `json:"b"`
		Asks   [][]string `json:"a"`
	} `json:"data"`
}

// ParseMessage routes a snapshot frame to sink.OnBookSnapshot (a full
// 50-level replace) and a delta frame to sink.OnBookDelta (size "0"
// removes a level). Bybit never drops below a full periodic snapshot, so
// losing an individual delta frame self-heals on the next snapshot.
func (b *Bybit) ParseMessage(msg []byte, sink Sink) error {
	var m bybitOrderbookMsg
	if err := wsJSON.Unmarshal(msg, &m); err != nil {
		return err
	}
	if !strings.HasPrefix(m.Topic, "orderbook.") {
		return nil
	}
	base, quote, ok := b.ExtractBaseQuote(m.Data.Symbol)
	if !ok {
		return nil
	}
	pairID := market.PairID(base)
	bids := levelsFromStrings(m.Data.Bids)
	asks := levelsFromStrings(m.Data.Asks)

	if m.Type == "snapshot" {
		sink.OnBookSnapshot(pairID, bids, asks)
	} else {
		sink.OnBookDelta(pairID, bids, asks)
	}

	if len(bids) == 0 && len(asks) == 0 {
		return nil
	}
	var bid, ask, bidSize, askSize fixedpoint.FixedPoint
	if len(bids) > 0 {
		bid, bidSize = bids[0].Price, bids[0].Size
	}
	if len(asks) > 0 {
		ask, askSize = asks[0].Price, asks[0].Size
	}
	tick := market.NewPriceTick(market.VenueBybit, pairID, 0, bid, ask).
		WithQuote(quote).
		WithSizes(bidSize, askSize)
	sink.OnTick(tick)
	return nil
}
