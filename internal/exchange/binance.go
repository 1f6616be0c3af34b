package exchange

import (
	"strings"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/orderbook"
	"github.com/arbitrage-core/arbitrage-core/internal/wsclient"
)

// BinanceMaxStreamsPerConnection is the stream ceiling documented for
// Binance's combined-stream endpoint.
const BinanceMaxStreamsPerConnection = 1024

// BinanceMaxStreamsPerMessage bounds how many stream names one SUBSCRIBE
// frame may name; larger batches must be split and sent sequentially.
const BinanceMaxStreamsPerMessage = 50

const binanceWSURL = "wss://stream.binance.com:9443/stream"

var binanceQuotes = []string{"USDT", "BUSD", "USDC", "USD"}

// Binance implements Adapter against the depth20@100ms combined stream:
// every message is a full 20-level snapshot, so no delta reconciliation is
// needed.
type Binance struct{}

func NewBinance() *Binance { return &Binance{} }

func (b *Binance) Venue() market.Venue { return market.VenueBinance }
func (b *Binance) WSURL() string       { return binanceWSURL }

func (b *Binance) ExtractBaseQuote(nativeSymbol string) (string, market.QuoteCurrency, bool) {
	base, quote, ok := stripSuffix(strings.ToUpper(nativeSymbol), binanceQuotes)
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

func (b *Binance) streamName(symbol string) string {
	return strings.ToLower(symbol) + "@depth20@100ms"
}

// SubscriptionBuilder batches stream names into messages of at most
// BinanceMaxStreamsPerMessage, per spec's per-message cap.
func (b *Binance) SubscriptionBuilder() wsclient.SubscriptionBuilder {
	return func(change wsclient.SubscriptionChange) ([][]byte, error) {
		if len(change.Symbols) == 0 {
			return nil, nil
		}
		method := "SUBSCRIBE"
		if change.Kind == wsclient.Unsubscribe {
			method = "UNSUBSCRIBE"
		}
		var out [][]byte
		for i := 0; i < len(change.Symbols); i += BinanceMaxStreamsPerMessage {
			end := i + BinanceMaxStreamsPerMessage
			if end > len(change.Symbols) {
				end = len(change.Symbols)
			}
			streams := make([]string, 0, end-i)
			for _, s := range change.Symbols[i:end] {
				streams = append(streams, b.streamName(s))
			}
			buf, err := wsJSON.Marshal(map[string]any{
				"method": method,
				"params": streams,
				"id":     i + 1,
			})
			if err != nil {
				return nil, err
			}
			out = append(out, buf)
		}
		return out, nil
	}
}

type binanceCombinedFrame struct {
	Stream string `json:"stream"`
	Data   struct {
		LastUpdateID int64      `json:"lastUpdateId"`
		Bids         [][]string `json:"bids"`
		Asks         [][]string `json:"asks"`
	} `json:"data"`
}

func (b *Binance) ParseMessage(msg []byte, sink Sink) error {
	var frame binanceCombinedFrame
	if err := wsJSON.Unmarshal(msg, &frame); err != nil {
		return err
	}
	if frame.Stream == "" {
		return nil // control-plane ack (SUBSCRIBE response), not a data frame
	}
	nativeSymbol := strings.ToUpper(strings.SplitN(frame.Stream, "@", 2)[0])
	base, quote, ok := b.ExtractBaseQuote(nativeSymbol)
	if !ok {
		return nil
	}
	bids := levelsFromStrings(frame.Data.Bids)
	asks := levelsFromStrings(frame.Data.Asks)
	pairID := market.PairID(base)

	var bid, ask, bidSize, askSize fixedpoint.FixedPoint
	if len(bids) > 0 {
		bid, bidSize = bids[0].Price, bids[0].Size
	}
	if len(asks) > 0 {
		ask, askSize = asks[0].Price, asks[0].Size
	}

	tick := market.NewPriceTick(market.VenueBinance, pairID, 0, bid, ask).
		WithQuote(quote).
		WithSizes(bidSize, askSize)
	sink.OnTick(tick)
	sink.OnBookSnapshot(pairID, bids, asks)
	return nil
}

func levelsFromStrings(raw [][]string) []orderbook.Level {
	levels := make([]orderbook.Level, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		levels = append(levels, orderbook.Level{Price: parseFixed(lvl[0]), Size: parseFixed(lvl[1])})
	}
	return levels
}
