package discovery

import (
	"context"
	"net/http"
	"strings"

	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/symbolmap"
)

// BinanceFetcher enumerates /api/v3/exchangeInfo, keeping USDT/USDC/BUSD
// spot markets whose status is TRADING.
type BinanceFetcher struct{ BaseURL string }

func NewBinanceFetcher() *BinanceFetcher { return &BinanceFetcher{BaseURL: "https://api.binance.com"} }
func (f *BinanceFetcher) Venue() market.Venue { return market.VenueBinance }

type binanceExchangeInfo struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
		Status     string `json:"status"`
	} `json:"symbols"`
}

func (f *BinanceFetcher) FetchMarkets(ctx context.Context, client *http.Client) ([]MarketInfo, error) {
	var resp binanceExchangeInfo
	if err := httpGetJSON(ctx, client, f.BaseURL+"/api/v3/exchangeInfo", &resp); err != nil {
		return nil, err
	}
	var out []MarketInfo
	for _, s := range resp.Symbols {
		q, ok := mapUSDLikeQuote(s.QuoteAsset)
		if !ok {
			continue
		}
		out = append(out, MarketInfo{
			Venue:          market.VenueBinance,
			BaseSymbol:     strings.ToUpper(s.BaseAsset),
			NativeSymbol:   s.Symbol,
			Quote:          q,
			TradingEnabled: s.Status == "TRADING",
		})
	}
	return out, nil
}

// CoinbaseFetcher enumerates /products, keeping USD/USDT/USDC spot pairs
// marked online.
type CoinbaseFetcher struct{ BaseURL string }

func NewCoinbaseFetcher() *CoinbaseFetcher { return &CoinbaseFetcher{BaseURL: "https://api.exchange.coinbase.com"} }
func (f *CoinbaseFetcher) Venue() market.Venue { return market.VenueCoinbase }

type coinbaseProduct struct {
	ID         string `json:"id"`
	BaseCurrency  string `json:"base_currency"`
	QuoteCurrency string `json:"quote_currency"`
	Status     string `json:"status"`
}

func (f *CoinbaseFetcher) FetchMarkets(ctx context.Context, client *http.Client) ([]MarketInfo, error) {
	var resp []coinbaseProduct
	if err := httpGetJSON(ctx, client, f.BaseURL+"/products", &resp); err != nil {
		return nil, err
	}
	var out []MarketInfo
	for _, p := range resp {
		q, ok := mapUSDLikeQuote(p.QuoteCurrency)
		if !ok {
			continue
		}
		out = append(out, MarketInfo{
			Venue:          market.VenueCoinbase,
			BaseSymbol:     strings.ToUpper(p.BaseCurrency),
			NativeSymbol:   p.ID,
			Quote:          q,
			TradingEnabled: p.Status == "online",
		})
	}
	return out, nil
}

// KrakenFetcher enumerates /0/public/AssetPairs, normalizing Kraken's
// legacy X/Z asset-code prefixes via internal/symbolmap.
type KrakenFetcher struct{ BaseURL string }

func NewKrakenFetcher() *KrakenFetcher { return &KrakenFetcher{BaseURL: "https://api.kraken.com"} }
func (f *KrakenFetcher) Venue() market.Venue { return market.VenueKraken }

type krakenAssetPairsResponse struct {
	Error  []string                        `json:"error"`
	Result map[string]krakenAssetPairEntry `json:"result"`
}

type krakenAssetPairEntry struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

func (f *KrakenFetcher) FetchMarkets(ctx context.Context, client *http.Client) ([]MarketInfo, error) {
	var resp krakenAssetPairsResponse
	if err := httpGetJSON(ctx, client, f.BaseURL+"/0/public/AssetPairs", &resp); err != nil {
		return nil, err
	}
	var out []MarketInfo
	for native, entry := range resp.Result {
		quoteCanon := symbolmap.NormalizeKrakenAsset(entry.Quote)
		q, ok := mapUSDLikeQuote(quoteCanon)
		if !ok {
			continue
		}
		base := symbolmap.NormalizeKrakenAsset(entry.Base)
		out = append(out, MarketInfo{
			Venue:          market.VenueKraken,
			BaseSymbol:     base,
			NativeSymbol:   native,
			Quote:          q,
			TradingEnabled: true,
		})
	}
	return out, nil
}

// BybitFetcher enumerates /v5/market/instruments-info?category=spot,
// keeping USDT/USDC pairs whose status is Trading.
type BybitFetcher struct{ BaseURL string }

func NewBybitFetcher() *BybitFetcher { return &BybitFetcher{BaseURL: "https://api.bybit.com"} }
func (f *BybitFetcher) Venue() market.Venue { return market.VenueBybit }

type bybitInstrumentsResponse struct {
	Result struct {
		List []struct {
			Symbol    string `json:"symbol"`
			BaseCoin  string `json:"baseCoin"`
			QuoteCoin string `json:"quoteCoin"`
			Status    string `json:"status"`
		} `json:"list"`
	} `json:"result"`
}

func (f *BybitFetcher) FetchMarkets(ctx context.Context, client *http.Client) ([]MarketInfo, error) {
	var resp bybitInstrumentsResponse
	if err := httpGetJSON(ctx, client, f.BaseURL+"/v5/market/instruments-info?category=spot", &resp); err != nil {
		return nil, err
	}
	var out []MarketInfo
	for _, s := range resp.Result.List {
		q, ok := mapUSDLikeQuote(s.QuoteCoin)
		if !ok {
			continue
		}
		out = append(out, MarketInfo{
			Venue:          market.VenueBybit,
			BaseSymbol:     strings.ToUpper(s.BaseCoin),
			NativeSymbol:   s.Symbol,
			Quote:          q,
			TradingEnabled: s.Status == "Trading",
		})
	}
	return out, nil
}

// OkxFetcher enumerates /v5/public/instruments?instType=SPOT, keeping
// USDT/USDC pairs marked live.
type OkxFetcher struct{ BaseURL string }

func NewOkxFetcher() *OkxFetcher { return &OkxFetcher{BaseURL: "https://www.okx.com"} }
func (f *OkxFetcher) Venue() market.Venue { return market.VenueOkx }

type okxInstrumentsResponse struct {
	Data []struct {
		InstID  string `json:"instId"`
		BaseCcy string `json:"baseCcy"`
		QuoteCcy string `json:"quoteCcy"`
		State   string `json:"state"`
	} `json:"data"`
}

func (f *OkxFetcher) FetchMarkets(ctx context.Context, client *http.Client) ([]MarketInfo, error) {
	var resp okxInstrumentsResponse
	if err := httpGetJSON(ctx, client, f.BaseURL+"/v5/public/instruments?instType=SPOT", &resp); err != nil {
		return nil, err
	}
	var out []MarketInfo
	for _, s := range resp.Data {
		q, ok := mapUSDLikeQuote(s.QuoteCcy)
		if !ok {
			continue
		}
		out = append(out, MarketInfo{
			Venue:          market.VenueOkx,
			BaseSymbol:     strings.ToUpper(s.BaseCcy),
			NativeSymbol:   s.InstID,
			Quote:          q,
			TradingEnabled: s.State == "live",
		})
	}
	return out, nil
}

// GateIOFetcher enumerates /api/v4/spot/currency_pairs, keeping
// USDT/USDC/USD pairs marked tradable.
type GateIOFetcher struct{ BaseURL string }

func NewGateIOFetcher() *GateIOFetcher { return &GateIOFetcher{BaseURL: "https://api.gateio.ws"} }
func (f *GateIOFetcher) Venue() market.Venue { return market.VenueGateIO }

type gateioCurrencyPair struct {
	ID            string `json:"id"`
	Base          string `json:"base"`
	Quote         string `json:"quote"`
	TradeStatus   string `json:"trade_status"`
}

func (f *GateIOFetcher) FetchMarkets(ctx context.Context, client *http.Client) ([]MarketInfo, error) {
	var resp []gateioCurrencyPair
	if err := httpGetJSON(ctx, client, f.BaseURL+"/api/v4/spot/currency_pairs", &resp); err != nil {
		return nil, err
	}
	var out []MarketInfo
	for _, p := range resp {
		q, ok := mapUSDLikeQuote(p.Quote)
		if !ok {
			continue
		}
		out = append(out, MarketInfo{
			Venue:          market.VenueGateIO,
			BaseSymbol:     strings.ToUpper(p.Base),
			NativeSymbol:   p.ID,
			Quote:          q,
			TradingEnabled: p.TradeStatus == "tradable",
		})
	}
	return out, nil
}

// UpbitFetcher enumerates /v1/market/all?isDetails=true, keeping KRW-*
// markets with no active warning.
type UpbitFetcher struct{ BaseURL string }

func NewUpbitFetcher() *UpbitFetcher { return &UpbitFetcher{BaseURL: "https://api.upbit.com"} }
func (f *UpbitFetcher) Venue() market.Venue { return market.VenueUpbit }

type upbitMarket struct {
	Market      string `json:"market"`
	MarketEvent struct {
		Warning bool `json:"warning"`
	} `json:"market_event"`
}

func (f *UpbitFetcher) FetchMarkets(ctx context.Context, client *http.Client) ([]MarketInfo, error) {
	var resp []upbitMarket
	if err := httpGetJSON(ctx, client, f.BaseURL+"/v1/market/all?isDetails=true", &resp); err != nil {
		return nil, err
	}
	var out []MarketInfo
	for _, m := range resp {
		if !strings.HasPrefix(m.Market, "KRW-") {
			continue
		}
		base := strings.TrimPrefix(m.Market, "KRW-")
		out = append(out, MarketInfo{
			Venue:          market.VenueUpbit,
			BaseSymbol:     strings.ToUpper(base),
			NativeSymbol:   m.Market,
			Quote:          market.QuoteKRW,
			TradingEnabled: !m.MarketEvent.Warning,
		})
	}
	return out, nil
}

// BithumbFetcher enumerates /public/ticker/ALL_KRW, treating every
// non-"date" top-level key as a tradable KRW market.
type BithumbFetcher struct{ BaseURL string }

func NewBithumbFetcher() *BithumbFetcher { return &BithumbFetcher{BaseURL: "https://api.bithumb.com"} }
func (f *BithumbFetcher) Venue() market.Venue { return market.VenueBithumb }

func (f *BithumbFetcher) FetchMarkets(ctx context.Context, client *http.Client) ([]MarketInfo, error) {
	var resp map[string]any
	if err := httpGetJSON(ctx, client, f.BaseURL+"/public/ticker/ALL_KRW", &resp); err != nil {
		return nil, err
	}
	var out []MarketInfo
	for key := range resp {
		if key == "date" {
			continue
		}
		out = append(out, MarketInfo{
			Venue:          market.VenueBithumb,
			BaseSymbol:     strings.ToUpper(key),
			NativeSymbol:   key,
			Quote:          market.QuoteKRW,
			TradingEnabled: true,
		})
	}
	return out, nil
}

// mapUSDLikeQuote maps a venue's raw quote-asset string onto a
// market.QuoteCurrency, returning ok=false for any quote this system
// doesn't track (e.g. BTC- or ETH-quoted pairs).
func mapUSDLikeQuote(raw string) (market.QuoteCurrency, bool) {
	switch strings.ToUpper(raw) {
	case "USD":
		return market.QuoteUSD, true
	case "USDT":
		return market.QuoteUSDT, true
	case "USDC":
		return market.QuoteUSDC, true
	case "BUSD":
		return market.QuoteBUSD, true
	case "KRW":
		return market.QuoteKRW, true
	default:
		return market.QuoteUnknown, false
	}
}

// AllFetchers returns the default fetcher set for the 8 spot venues named
// in spec.md's discovery section.
func AllFetchers() []VenueFetcher {
	return []VenueFetcher{
		NewBinanceFetcher(),
		NewCoinbaseFetcher(),
		NewKrakenFetcher(),
		NewBybitFetcher(),
		NewOkxFetcher(),
		NewGateIOFetcher(),
		NewUpbitFetcher(),
		NewBithumbFetcher(),
	}
}
