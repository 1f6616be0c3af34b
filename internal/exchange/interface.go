// Package exchange holds one Adapter per venue: the capability set the
// runtime wires against internal/wsclient and internal/pool to connect,
// subscribe, and turn inbound frames into price ticks and book updates.
package exchange

import (
	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/orderbook"
	"github.com/arbitrage-core/arbitrage-core/internal/wsclient"
)

// Adapter is the unified interface every venue implements. It carries no
// connection state of its own; a single Adapter value is shared across
// every wsclient.Client the pool opens for that venue.
type Adapter interface {
	Venue() market.Venue
	WSURL() string

	// SubscriptionBuilder converts a wsclient.SubscriptionChange (native
	// symbols) into the venue's wire payload(s).
	SubscriptionBuilder() wsclient.SubscriptionBuilder

	// ExtractBaseQuote parses a venue-native symbol into its canonical base
	// asset and quote currency, e.g. "BTCUSDT" -> ("BTC", QuoteUSDT).
	ExtractBaseQuote(nativeSymbol string) (base string, quote market.QuoteCurrency, ok bool)

	// ParseMessage decodes one inbound websocket frame and reports any
	// resulting price/book updates to sink. An error is non-fatal; the
	// caller logs it and keeps the connection open.
	ParseMessage(msg []byte, sink Sink) error
}

// Sink receives the updates an Adapter extracts from inbound frames.
type Sink interface {
	OnTick(tick market.PriceTick)
	OnBookSnapshot(pairID uint32, bids, asks []orderbook.Level)

	// OnBookDelta reports an incremental book update: bids/asks carry only
	// the price levels that changed since the last snapshot or delta, zero
	// size meaning "remove this level". The receiver applies it against the
	// cache orderbook.Cache.ApplyDelta expects, never orderbook.Cache.ApplySnapshot.
	OnBookDelta(pairID uint32, bids, asks []orderbook.Level)

	// OnFXRate reports a venue-quoted stablecoin/KRW cross rate, e.g.
	// Upbit's KRW-USDT ticker. These feed internal/matrix.Rates directly
	// and never enter the tradable-pair pipeline: KRW-USDT and KRW-USDC
	// are forex feeds, not assets a detector should price arbitrage on.
	OnFXRate(venue market.Venue, quote market.QuoteCurrency, rateKRW fixedpoint.FixedPoint)
}

// AuthAdapter is implemented by venues whose private/user channels require
// a signed login frame before the subscribe. None of the spot market-data
// feeds in this module currently need it, but Coinbase's JWT signer
// (internal/exchange/coinbaseauth) is kept available for that extension.
type AuthAdapter interface {
	Adapter
	AuthPayload() ([]byte, error)
}
