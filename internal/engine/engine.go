// Package engine wires every subsystem package into the running
// detection core: fee/symbol registries, REST discovery, the pooled
// websocket connections per venue, the aggregator/detector pipeline, and
// the periodic opportunity sweep. cmd/arbitrage-core's main is a thin
// shell around New/Start/Stop.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arbitrage-core/arbitrage-core/internal/aggregator"
	"github.com/arbitrage-core/arbitrage-core/internal/alerts"
	"github.com/arbitrage-core/arbitrage-core/internal/codec"
	"github.com/arbitrage-core/arbitrage-core/internal/config"
	"github.com/arbitrage-core/arbitrage-core/internal/detector"
	"github.com/arbitrage-core/arbitrage-core/internal/discovery"
	"github.com/arbitrage-core/arbitrage-core/internal/exchange"
	"github.com/arbitrage-core/arbitrage-core/internal/exchange/coinbaseauth"
	"github.com/arbitrage-core/arbitrage-core/internal/feeregistry"
	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/matrix"
	"github.com/arbitrage-core/arbitrage-core/internal/obsv"
	"github.com/arbitrage-core/arbitrage-core/internal/orderbook"
	"github.com/arbitrage-core/arbitrage-core/internal/pool"
	"github.com/arbitrage-core/arbitrage-core/internal/subscription"
	"github.com/arbitrage-core/arbitrage-core/internal/symbolmap"
	"github.com/arbitrage-core/arbitrage-core/internal/transport/httpapi"
	"github.com/arbitrage-core/arbitrage-core/internal/wsclient"
	"github.com/arbitrage-core/arbitrage-core/pkg/ratelimit"
	"github.com/arbitrage-core/arbitrage-core/pkg/utils"

	_ "github.com/lib/pq"
)

// sweepInterval is how often the engine sweeps the detector across every
// registered pair and emits a fresh opportunity batch.
const sweepInterval = 2 * time.Second

// Engine owns every long-lived subsystem and the goroutines that connect
// them: one pool per enabled venue, the aggregator/detector pipeline fed
// by each pool's inbound frames, and the periodic sweep that turns matrix
// state into opportunity batches.
type Engine struct {
	cfg config.Config
	log *utils.Logger

	fees     *feeregistry.Registry
	symbols  *symbolmap.Map
	agg      *aggregator.Aggregator
	det      *detector.Detector
	books    *bookStore
	subs     *subscription.Manager
	notifier *alerts.Notifier

	poolsMu sync.Mutex
	pools   map[market.Venue]*pool.Pool

	ratesMu     sync.RWMutex
	rates       matrix.Rates
	pairSymbols map[uint32]string
	commonMkts  discovery.CommonMarkets

	startedAt time.Time
	db        *sql.DB

	priceUpdates          atomic.Int64
	opportunitiesDetected atomic.Int64
	connectedVenues       atomic.Int32
	lastBatch             atomic.Value // []byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an Engine from cfg. It performs no I/O; Start opens
// connections and begins discovery.
func New(cfg config.Config, log *utils.Logger) (*Engine, error) {
	fees := feeregistry.NewDefault()
	for v, fee := range cfg.FeeOverrides.VenueFees {
		fees.SetVenueFee(v, fee)
	}
	for key, fee := range cfg.FeeOverrides.Withdrawals {
		venue, symbol, ok := splitWithdrawalKey(key)
		if !ok {
			log.Warn("skipping malformed withdrawal fee override", utils.String("key", key))
			continue
		}
		fees.SetWithdrawalFee(venue, symbol, fee)
	}

	books := newBookStore()
	det := detector.New(detector.Config{
		MinPremiumBPS:    cfg.Detector.MinPremiumBPS,
		MaxStalenessMs:   int64(cfg.Detector.MaxStalenessMS / time.Millisecond),
		EnabledExchanges: enabledSet(cfg.Exchanges.Enabled),
	}, fees, books)

	e := &Engine{
		cfg:         cfg,
		log:         log,
		fees:        fees,
		symbols:     symbolmap.New(),
		agg:         aggregator.New(),
		det:         det,
		books:       books,
		subs:        subscription.New(),
		notifier:    newNotifierFromConfig(cfg.Alerts),
		pools:       make(map[market.Venue]*pool.Pool),
		pairSymbols: make(map[uint32]string),
		rates: matrix.Rates{
			UsdKrw:          fixedpoint.FromDecimal(cfg.Detector.UsdKrwRate),
			UsdtKrwPerVenue: make(map[market.Venue]fixedpoint.FixedPoint),
			UsdcKrwPerVenue: make(map[market.Venue]fixedpoint.FixedPoint),
		},
	}
	return e, nil
}

// newNotifierFromConfig builds the Telegram notifier from AlertsConfig, or
// returns nil when no bot token is configured so sweep skips alerting
// entirely.
func newNotifierFromConfig(cfg config.AlertsConfig) *alerts.Notifier {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil
	}
	sender := alerts.NewTelegramSender(cfg.BotToken, nil)
	rule := alerts.Rule{
		ChatID:          cfg.ChatID,
		Enabled:         true,
		Symbols:         cfg.Symbols,
		ExcludedSymbols: cfg.ExcludedSymbols,
		Exchanges:       cfg.Exchanges,
		MinPremiumBPS:   cfg.MinPremiumBPS,
		MinProfitUSD:    cfg.MinProfitUSD,
	}
	return alerts.NewNotifier(sender, []alerts.Rule{rule}, cfg.Cooldown)
}

func splitWithdrawalKey(key string) (market.Venue, string, bool) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 {
		return market.VenueUnknown, "", false
	}
	venue, ok := market.ParseVenue(parts[0])
	if !ok {
		return market.VenueUnknown, "", false
	}
	return venue, parts[1], true
}

func enabledSet(venues []market.Venue) map[market.Venue]bool {
	if len(venues) == 0 {
		return nil
	}
	out := make(map[market.Venue]bool, len(venues))
	for _, v := range venues {
		out[v] = true
	}
	return out
}

// Start opens the optional fee sync, runs the initial discovery sweep,
// connects every enabled venue's websocket pool, and launches the
// detection sweep loop. It returns as soon as every enabled venue's
// connections have been launched, without waiting for them to connect;
// connecting and reconnecting happen in the background.
func (e *Engine) Start(ctx context.Context) error {
	e.startedAt = time.Now()
	e.ctx, e.cancel = context.WithCancel(ctx)

	if e.cfg.DatabaseDSN != "" {
		db, err := sql.Open("postgres", e.cfg.DatabaseDSN)
		if err != nil {
			obsv.FeeSyncErrors.Inc()
			e.log.Warn("fee sync database open failed, running on built-in defaults", utils.Err(err))
		} else {
			e.db = db
			if err := feeregistry.Sync(e.ctx, e.fees, feeregistry.NewPostgresSource(db)); err != nil {
				obsv.FeeSyncErrors.Inc()
				e.log.Warn("initial fee sync failed, running on built-in defaults", utils.Err(err))
			}
		}
	}

	common, err := e.runDiscovery(e.ctx)
	if err != nil {
		return fmt.Errorf("engine: initial discovery: %w", err)
	}
	e.applyCommonMarkets(common)

	var coinbaseSigner *coinbaseauth.Signer
	if e.cfg.Exchanges.CoinbaseAPIKeyID != "" && e.cfg.Exchanges.CoinbaseSecretKey != "" {
		signer, err := coinbaseauth.NewSigner(e.cfg.Exchanges.CoinbaseAPIKeyID, []byte(e.cfg.Exchanges.CoinbaseSecretKey))
		if err != nil {
			e.log.Warn("coinbase signer construction failed, coinbase feed will be rejected", utils.Err(err))
		} else {
			coinbaseSigner = signer
		}
	}

	for _, adapter := range exchange.AllAdapters(coinbaseSigner) {
		venue := adapter.Venue()
		if !e.cfg.Exchanges.IsEnabled(venue) {
			continue
		}
		symbols := e.nativeSymbolsFor(venue, common)
		e.connectVenue(adapter, symbols)
	}

	e.wg.Add(1)
	go e.sweepLoop(e.ctx)

	if e.cfg.Discovery.RefreshInterval > 0 {
		e.wg.Add(1)
		go e.rediscoveryLoop(e.ctx)
	}

	return nil
}

// Stop cancels every background goroutine and waits for them to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	if e.db != nil {
		_ = e.db.Close()
	}
}

// runDiscovery runs one REST discovery sweep across all eight venues and
// intersects the results of the enabled venues at the configured minimum
// venue count.
func (e *Engine) runDiscovery(ctx context.Context) (discovery.CommonMarkets, error) {
	limiter := ratelimit.NewMultiLimiter()
	for _, v := range []market.Venue{
		market.VenueBinance, market.VenueCoinbase, market.VenueKraken, market.VenueBybit,
		market.VenueOkx, market.VenueGateIO, market.VenueUpbit, market.VenueBithumb,
	} {
		limiter.Add(v.String(), 5, 10)
	}

	disc := discovery.New(discovery.AllFetchers(), limiter, e.symbols, e.log.Logger)
	results := disc.FetchAll(ctx)

	venues := e.cfg.Exchanges.Enabled
	if len(venues) == 0 {
		venues = []market.Venue{
			market.VenueBinance, market.VenueCoinbase, market.VenueKraken, market.VenueBybit,
			market.VenueOkx, market.VenueGateIO, market.VenueUpbit, market.VenueBithumb,
		}
	}
	minVenues := e.cfg.Discovery.MinVenues
	if minVenues <= 0 {
		minVenues = 2
	}
	common, stats := discovery.FindMarketsOnNExchanges(results, e.symbols, venues, minVenues)
	e.log.Info("discovery sweep complete",
		utils.Int("on_all_venues", stats.OnAllVenues),
		utils.Int("on_some_venues", stats.OnSomeVenues),
		utils.Int("excluded", stats.Excluded),
		utils.Int("remapped", stats.Remapped),
		utils.Int("common_bases", len(common.Common)),
	)
	obsv.CommonMarkets.Set(float64(len(common.Common)))
	return common, nil
}

// applyCommonMarkets rebuilds the pairID -> canonical symbol table every
// adapter's PairID computation must agree with: discovery groups markets
// by exactly the canonical base-asset string market.PairID hashes.
func (e *Engine) applyCommonMarkets(common discovery.CommonMarkets) {
	pairSymbols := make(map[uint32]string, len(common.Common))
	for base := range common.Common {
		pairSymbols[market.PairID(base)] = base
	}
	e.ratesMu.Lock()
	e.pairSymbols = pairSymbols
	e.commonMkts = common
	e.ratesMu.Unlock()
}

// nativeSymbolsFor returns the venue-native symbol strings discovery found
// for venue, restricted to the common-market set.
func (e *Engine) nativeSymbolsFor(venue market.Venue, common discovery.CommonMarkets) []string {
	var out []string
	for _, vms := range common.Common {
		for _, vm := range vms {
			if vm.Venue == venue {
				out = append(out, vm.Info.NativeSymbol)
			}
		}
	}
	return out
}

// connectVenue opens a pool for adapter's venue, distributes symbols
// across as many connections as the venue's stream limit requires, and
// starts one drain goroutine per connection routing inbound frames
// through adapter into this engine's sink.
func (e *Engine) connectVenue(adapter exchange.Adapter, symbols []string) {
	venue := adapter.Venue()
	cfg := wsclient.DefaultConfig(adapter.WSURL())
	p := pool.New(venue, cfg, adapter.SubscriptionBuilder())

	e.poolsMu.Lock()
	e.pools[venue] = p
	e.poolsMu.Unlock()

	conns := p.ConnectAll(e.ctx, symbols)
	sink := &venueSink{e: e, venue: venue}

	for _, conn := range conns {
		connSymbols := make([]string, 0, len(conn.Symbols))
		for s := range conn.Symbols {
			connSymbols = append(connSymbols, s)
		}
		e.subs.Register(venue, conn.Client.Changes)
		e.subs.Prime(venue, connSymbols)

		e.wg.Add(1)
		go e.drainConnection(venue, conn.Client, adapter, sink)
	}
}

// drainConnection pumps one pool connection's Inbound/Events channels
// into adapter.ParseMessage and the connection-status gauge until ctx is
// canceled. A parse error is logged and the connection stays open, per
// Adapter.ParseMessage's documented non-fatal contract.
func (e *Engine) drainConnection(venue market.Venue, c *wsclient.Client, adapter exchange.Adapter, sink exchange.Sink) {
	defer e.wg.Done()
	venueLabel := venue.String()
	for {
		select {
		case <-e.ctx.Done():
			return
		case ev := <-c.Events:
			switch ev {
			case wsclient.EventConnected, wsclient.EventReconnected:
				e.books.Clear(venue)
				e.connectedVenues.Add(1)
				obsv.SetConnectionStatus(venueLabel, true)
				obsv.RecordReconnect(venueLabel, true)
			case wsclient.EventDisconnected:
				e.books.Clear(venue)
				e.connectedVenues.Add(-1)
				obsv.SetConnectionStatus(venueLabel, false)
			}
		case msg := <-c.Inbound:
			start := time.Now()
			if err := adapter.ParseMessage(msg, sink); err != nil {
				e.log.Debug("parse message failed", utils.Exchange(venueLabel), utils.Err(err))
				continue
			}
			obsv.RecordTick(venueLabel, float64(time.Since(start).Microseconds())/1000)
		}
	}
}

// sweepLoop periodically runs the detector across every registered pair
// and encodes the result into an opportunity batch.
func (e *Engine) sweepLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

func (e *Engine) sweep() {
	start := time.Now()
	e.ratesMu.RLock()
	rates := e.rates
	e.ratesMu.RUnlock()

	opps := e.det.DetectAll(rates, start.UnixMilli())
	obsv.DetectionSweepLatency.Observe(float64(time.Since(start).Microseconds()) / 1000)

	for _, o := range opps {
		triggered := o.PremiumBPS >= e.cfg.Detector.MinPremiumBPS
		obsv.RecordOpportunity(o.Asset, triggered)
	}
	if len(opps) == 0 {
		return
	}
	e.opportunitiesDetected.Add(int64(len(opps)))

	if e.notifier != nil {
		for _, o := range opps {
			if _, err := e.notifier.ProcessOpportunity(e.ctx, o, start); err != nil {
				e.log.Warn("alert delivery failed", utils.String("asset", o.Asset), utils.Err(err))
			}
		}
	}

	batch := codec.Batch{
		BatchID:     codec.NewBatchID(),
		TimestampMs: uint64(start.UnixMilli()),
	}
	for _, o := range opps {
		batch.Opportunities = append(batch.Opportunities, codec.FromOpportunity(o, market.DefaultChain, market.DefaultDecimals))
	}
	encodeStart := time.Now()
	encoded, err := codec.Encode(batch)
	if err != nil {
		e.log.Warn("opportunity batch encode failed", utils.Err(err))
		return
	}
	obsv.BatchEncodeLatency.WithLabelValues("binary").Observe(float64(time.Since(encodeStart).Microseconds()) / 1000)
	e.lastBatch.Store(encoded)
}

// LastBatch returns the wire bytes of the most recently encoded opportunity
// batch, or nil if no sweep has produced one yet. Nothing in this module
// calls it; it exposes exactly what was last encoded.
func (e *Engine) LastBatch() []byte {
	b, _ := e.lastBatch.Load().([]byte)
	return b
}

// rediscoveryLoop periodically re-runs market discovery and routes any
// newly common base asset's native symbols onto each venue's pool via
// Pool.AddSymbol, which picks the least-loaded connection.
func (e *Engine) rediscoveryLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.Discovery.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			common, err := e.runDiscovery(ctx)
			if err != nil {
				e.log.Warn("rediscovery sweep failed", utils.Err(err))
				continue
			}
			e.applyCommonMarkets(common)
			e.addNewSymbols(common)
		}
	}
}

func (e *Engine) addNewSymbols(common discovery.CommonMarkets) {
	e.poolsMu.Lock()
	pools := make(map[market.Venue]*pool.Pool, len(e.pools))
	for v, p := range e.pools {
		pools[v] = p
	}
	e.poolsMu.Unlock()

	for venue, p := range pools {
		known := make(map[string]bool)
		for _, s := range p.AllSymbols() {
			known[s] = true
		}
		for _, vms := range common.Common {
			for _, vm := range vms {
				if vm.Venue != venue || known[vm.Info.NativeSymbol] {
					continue
				}
				if err := p.AddSymbol(vm.Info.NativeSymbol); err != nil {
					e.log.Warn("failed to add discovered symbol", utils.Exchange(venue.String()), utils.Symbol(vm.Info.NativeSymbol), utils.Err(err))
					continue
				}
				e.subs.Prime(venue, []string{vm.Info.NativeSymbol})
			}
		}
	}
}

// Stats implements httpapi.StatsProvider.
func (e *Engine) Stats() httpapi.Stats {
	e.ratesMu.RLock()
	commonCount := len(e.commonMkts.Common)
	e.ratesMu.RUnlock()
	return httpapi.Stats{
		PriceUpdates:          e.priceUpdates.Load(),
		OpportunitiesDetected: e.opportunitiesDetected.Load(),
		ConnectedVenues:       int(e.connectedVenues.Load()),
		CommonMarkets:         commonCount,
	}
}

// venueSink implements exchange.Sink for one venue, routing ticks into
// the aggregator and detector, book snapshots into the shared bookStore,
// and FX ticker feeds into the live matrix.Rates.
type venueSink struct {
	e     *Engine
	venue market.Venue
}

func (s *venueSink) OnTick(tick market.PriceTick) {
	s.e.priceUpdates.Add(1)
	s.e.agg.Update(tick)

	s.e.ratesMu.RLock()
	symbol, ok := s.e.pairSymbols[tick.PairID]
	s.e.ratesMu.RUnlock()
	if !ok {
		return
	}
	s.e.det.Ingest(symbol, tick)
}

func (s *venueSink) OnBookSnapshot(pairID uint32, bids, asks []orderbook.Level) {
	s.e.books.ApplySnapshot(s.venue, pairID, bids, asks)
}

func (s *venueSink) OnBookDelta(pairID uint32, bids, asks []orderbook.Level) {
	s.e.books.ApplyDelta(s.venue, pairID, bids, asks)
}

func (s *venueSink) OnFXRate(venue market.Venue, quote market.QuoteCurrency, rateKRW fixedpoint.FixedPoint) {
	s.e.ratesMu.Lock()
	defer s.e.ratesMu.Unlock()
	switch quote {
	case market.QuoteUSDC:
		s.e.rates.UsdcKrwPerVenue[venue] = rateKRW
	default:
		s.e.rates.UsdtKrwPerVenue[venue] = rateKRW
	}
}

// bookKey indexes the shared order book store by venue and pair, since
// exchange.Sink.OnBookSnapshot carries no venue parameter of its own.
type bookKey struct {
	Venue  market.Venue
	PairID uint32
}

// bookStore holds one orderbook.Cache per (venue,pair), each exclusively
// written by the single pool connection goroutine that owns that venue's
// socket. The map itself needs locking only across concurrent first-touch
// inserts; an already-created *orderbook.Cache is read/written by exactly
// one goroutine for the lifetime of that venue's connection.
type bookStore struct {
	mu     sync.Mutex
	caches map[bookKey]*orderbook.Cache
}

func newBookStore() *bookStore {
	return &bookStore{caches: make(map[bookKey]*orderbook.Cache)}
}

func (b *bookStore) getOrCreate(key bookKey) *orderbook.Cache {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.caches[key]
	if !ok {
		c = orderbook.New(orderbook.DefaultMaxLevels)
		b.caches[key] = c
	}
	return c
}

func (b *bookStore) ApplySnapshot(venue market.Venue, pairID uint32, bids, asks []orderbook.Level) {
	b.getOrCreate(bookKey{Venue: venue, PairID: pairID}).ApplySnapshot(bids, asks)
}

func (b *bookStore) ApplyDelta(venue market.Venue, pairID uint32, bids, asks []orderbook.Level) {
	b.getOrCreate(bookKey{Venue: venue, PairID: pairID}).ApplyDelta(bids, asks)
}

// Clear empties every cached book belonging to venue. Called on connect,
// reconnect, and disconnect: a fresh socket means the next frame is a
// snapshot, and whatever depth was cached against the old socket is no
// longer trustworthy in between.
func (b *bookStore) Clear(venue market.Venue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, c := range b.caches {
		if key.Venue == venue {
			c.Clear()
		}
	}
	obsv.RecordOrderbookReset(venue.String())
}

// AsksFor and BidsFor implement detector.DepthSource.
func (b *bookStore) AsksFor(venue market.Venue, pairID uint32) ([]orderbook.Level, bool) {
	b.mu.Lock()
	c, ok := b.caches[bookKey{Venue: venue, PairID: pairID}]
	b.mu.Unlock()
	if !ok {
		return nil, false
	}
	return c.Asks(), true
}

func (b *bookStore) BidsFor(venue market.Venue, pairID uint32) ([]orderbook.Level, bool) {
	b.mu.Lock()
	c, ok := b.caches[bookKey{Venue: venue, PairID: pairID}]
	b.mu.Unlock()
	if !ok {
		return nil, false
	}
	return c.Bids(), true
}
