// Package discovery enumerates tradable spot markets across venues over
// REST, then intersects them into the common-market and by-quote-category
// groupings the subscription manager uses to decide what to subscribe to.
package discovery

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/symbolmap"
	"github.com/arbitrage-core/arbitrage-core/pkg/ratelimit"
	"github.com/arbitrage-core/arbitrage-core/pkg/retry"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// MarketInfo is one venue's listing for one base/quote pair.
type MarketInfo struct {
	Venue          market.Venue
	BaseSymbol     string // canonical, upper-cased
	NativeSymbol   string // venue's own ticker string
	Quote          market.QuoteCurrency
	TradingEnabled bool
}

// QuoteCategory collapses USD/USDT/BUSD into one bucket while keeping USDC
// and KRW distinct, per spec.md's by_quote grouping rule.
type QuoteCategory string

const (
	CategoryUSDT QuoteCategory = "USDT"
	CategoryUSDC QuoteCategory = "USDC"
	CategoryKRW  QuoteCategory = "KRW"
)

func quoteCategory(q market.QuoteCurrency) (QuoteCategory, bool) {
	switch q {
	case market.QuoteUSD, market.QuoteUSDT, market.QuoteBUSD:
		return CategoryUSDT, true
	case market.QuoteUSDC:
		return CategoryUSDC, true
	case market.QuoteKRW:
		return CategoryKRW, true
	default:
		return "", false
	}
}

// VenueFetcher enumerates every tradable spot market on one venue.
type VenueFetcher interface {
	Venue() market.Venue
	FetchMarkets(ctx context.Context, client *http.Client) ([]MarketInfo, error)
}

// httpGetJSON issues a GET and decodes the JSON body into out, using the
// compatible jsoniter codec throughout the discovery path.
func httpGetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return jsonAPI.NewDecoder(resp.Body).Decode(out)
}

// Result is the outcome of one venue's fetch attempt, kept alongside
// errors so failures are reported, not silently dropped, per spec.md's
// "failures are reported and skipped, not fatal."
type Result struct {
	Venue   market.Venue
	Markets []MarketInfo
	Err     error
}

// Discoverer runs the parallel REST discovery sweep and the N-venue
// intersection.
type Discoverer struct {
	fetchers []VenueFetcher
	client   *http.Client
	limiter  *ratelimit.MultiLimiter
	symbols  *symbolmap.Map
	log      *zap.Logger
}

// New builds a Discoverer over the given venue fetchers. limiter may be
// nil, in which case no rate limiting is applied (tests). symbols may be
// nil, in which case no remap/exclusion is applied.
func New(fetchers []VenueFetcher, limiter *ratelimit.MultiLimiter, symbols *symbolmap.Map, log *zap.Logger) *Discoverer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Discoverer{
		fetchers: fetchers,
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  limiter,
		symbols:  symbols,
		log:      log,
	}
}

// FetchAll runs every registered fetcher in parallel, applying per-venue
// rate limiting and a bounded retry policy. A failing venue is reported in
// its Result.Err but never aborts the others.
func (d *Discoverer) FetchAll(ctx context.Context) []Result {
	results := make([]Result, len(d.fetchers))
	var wg sync.WaitGroup
	for i, f := range d.fetchers {
		wg.Add(1)
		go func(i int, f VenueFetcher) {
			defer wg.Done()
			if d.limiter != nil {
				_ = d.limiter.Wait(ctx, f.Venue().String())
			}
			markets, err := retry.DoWithResult(ctx, func() ([]MarketInfo, error) {
				return f.FetchMarkets(ctx, d.client)
			}, retry.NetworkConfig())
			if err != nil {
				d.log.Warn("venue discovery failed", zap.String("venue", f.Venue().String()), zap.Error(err))
			}
			results[i] = Result{Venue: f.Venue(), Markets: markets, Err: err}
		}(i, f)
	}
	wg.Wait()
	return results
}

// CommonMarkets is the intersection output: base asset -> venues listing
// it (after symbol-mapping and exclusions), plus a by-quote-category view.
type CommonMarkets struct {
	Common  map[string][]VenueMarket
	ByQuote map[string][]VenueMarket // "<base>/<category>" -> venues
}

// VenueMarket pairs a venue with its MarketInfo for one base asset.
type VenueMarket struct {
	Venue market.Venue
	Info  MarketInfo
}

// DiscoveryStats summarizes the intersection for logging, per spec.md's
// "on all N", "on 2+ but not all", "excluded", "remapped" counters.
type DiscoveryStats struct {
	OnAllVenues    int
	OnSomeVenues   int
	Excluded       int
	Remapped       int
}

// FindMarketsOnNExchanges applies the symbol-mapping table (canonicalizing
// and excluding blacklisted (venue,symbol) pairs) and returns only the base
// assets present on at least minN of the given venues.
func FindMarketsOnNExchanges(results []Result, symbols *symbolmap.Map, venues []market.Venue, minN int) (CommonMarkets, DiscoveryStats) {
	enabled := make(map[market.Venue]bool, len(venues))
	for _, v := range venues {
		enabled[v] = true
	}

	grouped := make(map[string][]VenueMarket)
	stats := DiscoveryStats{}

	for _, res := range results {
		if !enabled[res.Venue] {
			continue
		}
		for _, m := range res.Markets {
			if !m.TradingEnabled {
				continue
			}
			canonical := m.BaseSymbol
			if symbols != nil {
				if symbols.IsExcluded(res.Venue, m.BaseSymbol) {
					stats.Excluded++
					continue
				}
				remapped := symbols.Canonicalize(res.Venue, m.BaseSymbol)
				if remapped != strings.ToUpper(m.BaseSymbol) {
					stats.Remapped++
				}
				canonical = remapped
			}
			grouped[canonical] = append(grouped[canonical], VenueMarket{Venue: res.Venue, Info: m})
		}
	}

	common := make(map[string][]VenueMarket)
	byQuote := make(map[string][]VenueMarket)
	totalVenues := len(venues)

	for base, vms := range grouped {
		distinctVenues := map[market.Venue]bool{}
		for _, vm := range vms {
			distinctVenues[vm.Venue] = true
		}
		n := len(distinctVenues)
		if n >= minN {
			common[base] = vms
			if n == totalVenues {
				stats.OnAllVenues++
			} else {
				stats.OnSomeVenues++
			}
		}
		for _, vm := range vms {
			cat, ok := quoteCategory(vm.Info.Quote)
			if !ok {
				continue
			}
			key := base + "/" + string(cat)
			byQuote[key] = append(byQuote[key], vm)
		}
	}

	for _, vms := range common {
		sort.Slice(vms, func(i, j int) bool { return vms[i].Venue < vms[j].Venue })
	}

	return CommonMarkets{Common: common, ByQuote: byQuote}, stats
}
