// Package events defines the tagged-union messages the core emits to any
// downstream fan-out (websocket clients, a bridge process, a dashboard):
// price updates, aggregate stats, detected opportunities, FX/stablecoin
// rates, and the common-markets intersection snapshot.
package events

import (
	"github.com/arbitrage-core/arbitrage-core/internal/detector"
	"github.com/arbitrage-core/arbitrage-core/internal/discovery"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/matrix"
)

// Tag identifies the payload shape of an Envelope.
type Tag string

const (
	TagPrice         Tag = "price"
	TagPrices        Tag = "prices"
	TagStats         Tag = "stats"
	TagOpportunity   Tag = "opportunity"
	TagExchangeRate  Tag = "exchange_rate"
	TagCommonMarkets Tag = "common_markets"
)

// Envelope is the wire-level tagged union: Tag names which of the other
// fields is populated. Exactly one payload field is non-nil per message.
type Envelope struct {
	Tag           Tag            `json:"tag" msgpack:"tag"`
	Price         *PricePayload  `json:"price,omitempty" msgpack:"price,omitempty"`
	Prices        []PricePayload `json:"prices,omitempty" msgpack:"prices,omitempty"`
	Stats         *StatsPayload  `json:"stats,omitempty" msgpack:"stats,omitempty"`
	Opportunity   *OpportunityPayload   `json:"opportunity,omitempty" msgpack:"opportunity,omitempty"`
	ExchangeRate  *ExchangeRatePayload  `json:"exchange_rate,omitempty" msgpack:"exchange_rate,omitempty"`
	CommonMarkets *CommonMarketsPayload `json:"common_markets,omitempty" msgpack:"common_markets,omitempty"`
}

// PricePayload is one venue's latest tick, with every fixed-point field
// already converted to decimal for transport.
type PricePayload struct {
	Venue       string  `json:"venue" msgpack:"venue"`
	Symbol      string  `json:"symbol" msgpack:"symbol"`
	PairID      uint32  `json:"pair_id" msgpack:"pair_id"`
	Price       float64 `json:"price" msgpack:"price"`
	Bid         float64 `json:"bid" msgpack:"bid"`
	Ask         float64 `json:"ask" msgpack:"ask"`
	Volume24h   float64 `json:"volume_24h" msgpack:"volume_24h"`
	TimestampMs int64   `json:"timestamp_ms" msgpack:"timestamp_ms"`
	Quote       string  `json:"quote" msgpack:"quote"`
}

// NewPricePayload converts a market.PriceTick into its transport form.
func NewPricePayload(symbol string, tick market.PriceTick) PricePayload {
	return PricePayload{
		Venue:       tick.Venue.String(),
		Symbol:      symbol,
		PairID:      tick.PairID,
		Price:       tick.Mid.ToDecimal(),
		Bid:         tick.Bid.ToDecimal(),
		Ask:         tick.Ask.ToDecimal(),
		Volume24h:   tick.Volume24h.ToDecimal(),
		TimestampMs: tick.TimestampMs,
		Quote:       tick.Quote.String(),
	}
}

// StatsPayload is a periodic health/throughput summary.
type StatsPayload struct {
	UptimeSecs            int64 `json:"uptime_secs" msgpack:"uptime_secs"`
	PriceUpdates          int64 `json:"price_updates" msgpack:"price_updates"`
	OpportunitiesDetected int64 `json:"opportunities_detected" msgpack:"opportunities_detected"`
	TradesExecuted        int64 `json:"trades_executed" msgpack:"trades_executed"`
	IsRunning             bool  `json:"is_running" msgpack:"is_running"`
}

// OpportunityPayload flattens a detector.Opportunity for transport, adding
// the two fields that exist only at the transport boundary:
// has_transfer_path (derived externally, from a wallet-status registry
// this core does not own) and optimal_size_reason as a plain string.
type OpportunityPayload struct {
	ID                 uint64  `json:"id" msgpack:"id"`
	SourceVenue        string  `json:"source_venue" msgpack:"source_venue"`
	TargetVenue        string  `json:"target_venue" msgpack:"target_venue"`
	SourceQuote        string  `json:"source_quote" msgpack:"source_quote"`
	TargetQuote        string  `json:"target_quote" msgpack:"target_quote"`
	Asset              string  `json:"asset" msgpack:"asset"`
	PairID             uint32  `json:"pair_id" msgpack:"pair_id"`
	SourcePrice        float64 `json:"source_price" msgpack:"source_price"`
	TargetPrice        float64 `json:"target_price" msgpack:"target_price"`
	RawSourcePrice     float64 `json:"raw_source_price" msgpack:"raw_source_price"`
	RawTargetPrice     float64 `json:"raw_target_price" msgpack:"raw_target_price"`
	SourceTimestampMs  int64   `json:"source_timestamp_ms" msgpack:"source_timestamp_ms"`
	TargetTimestampMs  int64   `json:"target_timestamp_ms" msgpack:"target_timestamp_ms"`
	PremiumBPS         int32   `json:"premium_bps" msgpack:"premium_bps"`
	UsdlikePremiumBPS  int32   `json:"usdlike_premium_bps" msgpack:"usdlike_premium_bps"`
	KimchiPremiumBPS   int32   `json:"kimchi_premium_bps" msgpack:"kimchi_premium_bps"`
	GasCost            float64 `json:"gas_cost" msgpack:"gas_cost"`
	BridgeFee          float64 `json:"bridge_fee" msgpack:"bridge_fee"`
	TradingFee         float64 `json:"trading_fee" msgpack:"trading_fee"`
	NetProfitEstimate  int64   `json:"net_profit_estimate" msgpack:"net_profit_estimate"`
	MinAmount          float64 `json:"min_amount" msgpack:"min_amount"`
	MaxAmount          float64 `json:"max_amount" msgpack:"max_amount"`
	OptimalSize        float64 `json:"optimal_size" msgpack:"optimal_size"`
	OptimalProfit      int64   `json:"optimal_profit" msgpack:"optimal_profit"`
	OptimalSizeReason  string  `json:"optimal_size_reason" msgpack:"optimal_size_reason"`
	ConfidenceScore    uint8   `json:"confidence_score" msgpack:"confidence_score"`
	DiscoveredAtMs     int64   `json:"discovered_at_ms" msgpack:"discovered_at_ms"`
	HasTransferPath    bool    `json:"has_transfer_path" msgpack:"has_transfer_path"`
}

// NewOpportunityPayload flattens o for transport. hasTransferPath comes
// from an external wallet-status registry this core doesn't maintain, so
// it is always supplied by the caller rather than derived here.
func NewOpportunityPayload(o detector.Opportunity, hasTransferPath bool) OpportunityPayload {
	return OpportunityPayload{
		ID:                o.ID,
		SourceVenue:       o.SourceVenue.String(),
		TargetVenue:       o.TargetVenue.String(),
		SourceQuote:       o.SourceQuote.String(),
		TargetQuote:       o.TargetQuote.String(),
		Asset:             o.Asset,
		PairID:            o.PairID,
		SourcePrice:       o.SourcePrice.ToDecimal(),
		TargetPrice:       o.TargetPrice.ToDecimal(),
		RawSourcePrice:    o.RawSourcePrice.ToDecimal(),
		RawTargetPrice:    o.RawTargetPrice.ToDecimal(),
		SourceTimestampMs: o.SourceTimestampMs,
		TargetTimestampMs: o.TargetTimestampMs,
		PremiumBPS:        o.PremiumBPS,
		UsdlikePremiumBPS: o.UsdlikePremiumBPS,
		KimchiPremiumBPS:  o.KimchiPremiumBPS,
		GasCost:           o.GasCost.ToDecimal(),
		BridgeFee:         o.BridgeFee.ToDecimal(),
		TradingFee:        o.TradingFee.ToDecimal(),
		NetProfitEstimate: o.NetProfitEstimate,
		MinAmount:         o.MinAmount.ToDecimal(),
		MaxAmount:         o.MaxAmount.ToDecimal(),
		OptimalSize:       o.OptimalSize.ToDecimal(),
		OptimalProfit:     o.OptimalProfit,
		OptimalSizeReason: string(o.OptimalSizeReason),
		ConfidenceScore:   o.ConfidenceScore,
		DiscoveredAtMs:    o.DiscoveredAtMs,
		HasTransferPath:   hasTransferPath,
	}
}

// ExchangeRatePayload mirrors matrix.Rates plus the central api_rate and a
// transport timestamp.
type ExchangeRatePayload struct {
	UsdKrw         float64 `json:"usd_krw" msgpack:"usd_krw"`
	UpbitUsdtKrw   float64 `json:"upbit_usdt_krw" msgpack:"upbit_usdt_krw"`
	UpbitUsdcKrw   float64 `json:"upbit_usdc_krw" msgpack:"upbit_usdc_krw"`
	BithumbUsdtKrw float64 `json:"bithumb_usdt_krw" msgpack:"bithumb_usdt_krw"`
	BithumbUsdcKrw float64 `json:"bithumb_usdc_krw" msgpack:"bithumb_usdc_krw"`
	APIRate        float64 `json:"api_rate" msgpack:"api_rate"`
	UsdtUsd        float64 `json:"usdt_usd" msgpack:"usdt_usd"`
	UsdcUsd        float64 `json:"usdc_usd" msgpack:"usdc_usd"`
	TimestampMs    int64   `json:"timestamp_ms" msgpack:"timestamp_ms"`
}

// NewExchangeRatePayload reads venue-specific rates out of a matrix.Rates
// for the two Korean venues this system subscribes FX feeds from.
func NewExchangeRatePayload(r matrix.Rates, apiRate float64, timestampMs int64) ExchangeRatePayload {
	upbitUsdt := r.UsdtKrwPerVenue[market.VenueUpbit]
	upbitUsdc := r.UsdcKrwPerVenue[market.VenueUpbit]
	bithumbUsdt := r.UsdtKrwPerVenue[market.VenueBithumb]
	bithumbUsdc := r.UsdcKrwPerVenue[market.VenueBithumb]
	return ExchangeRatePayload{
		UsdKrw:         r.UsdKrw.ToDecimal(),
		UpbitUsdtKrw:   upbitUsdt.ToDecimal(),
		UpbitUsdcKrw:   upbitUsdc.ToDecimal(),
		BithumbUsdtKrw: bithumbUsdt.ToDecimal(),
		BithumbUsdcKrw: bithumbUsdc.ToDecimal(),
		APIRate:        apiRate,
		UsdtUsd:        r.UsdtUsd.ToDecimal(),
		UsdcUsd:        r.UsdcUsd.ToDecimal(),
		TimestampMs:    timestampMs,
	}
}

// CommonMarketsPayload transports a discovery.CommonMarkets snapshot.
type CommonMarketsPayload struct {
	CommonBases []string                     `json:"common_bases" msgpack:"common_bases"`
	Markets     map[string][]MarketEntry     `json:"markets" msgpack:"markets"`
	Venues      []string                     `json:"venues" msgpack:"venues"`
	TimestampMs int64                        `json:"timestamp_ms" msgpack:"timestamp_ms"`
}

// MarketEntry is one venue's listing of a base asset.
type MarketEntry struct {
	Base   string `json:"base" msgpack:"base"`
	Symbol string `json:"symbol" msgpack:"symbol"`
	Venue  string `json:"venue" msgpack:"venue"`
}

// NewCommonMarketsPayload flattens a discovery.CommonMarkets snapshot,
// e.g. for clients rendering "these N venues all list this asset".
func NewCommonMarketsPayload(cm discovery.CommonMarkets, venues []market.Venue, timestampMs int64) CommonMarketsPayload {
	bases := make([]string, 0, len(cm.Common))
	markets := make(map[string][]MarketEntry, len(cm.Common))
	for base, entries := range cm.Common {
		bases = append(bases, base)
		list := make([]MarketEntry, 0, len(entries))
		for _, e := range entries {
			list = append(list, MarketEntry{Base: base, Symbol: e.Info.NativeSymbol, Venue: e.Venue.String()})
		}
		markets[base] = list
	}
	venueNames := make([]string, 0, len(venues))
	for _, v := range venues {
		venueNames = append(venueNames, v.String())
	}
	return CommonMarketsPayload{
		CommonBases: bases,
		Markets:     markets,
		Venues:      venueNames,
		TimestampMs: timestampMs,
	}
}
