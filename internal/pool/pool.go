// Package pool shards a venue's symbol set across multiple websocket
// connections, respecting each venue's maximum streams-per-connection
// limit, and routes dynamic symbol additions to whichever connection has
// the most free capacity.
package pool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/wsclient"
)

// MaxStreamsPerConnection is the per-venue subscription ceiling imposed by
// each exchange's own websocket gateway.
var MaxStreamsPerConnection = map[market.Venue]int{
	market.VenueBinance:  1024,
	market.VenueCoinbase: 30,
	market.VenueKraken:   1000,
	market.VenueBybit:    1000,
	market.VenueOkx:      1000,
	market.VenueGateIO:   1000,
	market.VenueUpbit:    1000,
	market.VenueBithumb:  1000,
}

func maxStreams(v market.Venue) int {
	if n, ok := MaxStreamsPerConnection[v]; ok && n > 0 {
		return n
	}
	return 1000
}

// ConnectionInfo describes one websocket connection within a venue's pool:
// its index, the symbols currently routed to it, and its outbound
// subscription-change sender.
type ConnectionInfo struct {
	Index   int
	Symbols map[string]bool
	Client  *wsclient.Client
}

func (c *ConnectionInfo) freeCapacity(limit int) int {
	return limit - len(c.Symbols)
}

// ErrPoolAtCapacity is returned when no connection in the pool has room for
// a new symbol and the pool does not auto-expand.
type ErrPoolAtCapacity struct {
	Venue market.Venue
}

func (e *ErrPoolAtCapacity) Error() string {
	return fmt.Sprintf("pool: venue %s is at capacity, no connection has free slots", e.Venue)
}

// Pool owns every connection for one venue.
type Pool struct {
	venue       market.Venue
	limit       int
	builder     wsclient.SubscriptionBuilder
	cfgTemplate wsclient.Config

	mu          sync.Mutex
	connections []*ConnectionInfo
}

// New constructs an empty pool for venue. cfgTemplate.URL is reused for
// every connection the pool opens.
func New(venue market.Venue, cfgTemplate wsclient.Config, builder wsclient.SubscriptionBuilder) *Pool {
	return &Pool{
		venue:       venue,
		limit:       maxStreams(venue),
		builder:     builder,
		cfgTemplate: cfgTemplate,
	}
}

// DistributeSymbols partitions symbols into chunks of at most the venue's
// per-connection stream limit, in input order.
func DistributeSymbols(symbols []string, limit int) [][]string {
	if limit <= 0 {
		limit = 1000
	}
	var chunks [][]string
	for len(symbols) > 0 {
		n := limit
		if n > len(symbols) {
			n = len(symbols)
		}
		chunks = append(chunks, symbols[:n])
		symbols = symbols[n:]
	}
	return chunks
}

// ConnectAll partitions the given symbol set and spawns one connection per
// chunk, each running its own Client.Run in a separate goroutine.
func (p *Pool) ConnectAll(ctx context.Context, symbols []string) []*ConnectionInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	chunks := DistributeSymbols(symbols, p.limit)
	p.connections = make([]*ConnectionInfo, 0, len(chunks))
	for i, chunk := range chunks {
		cfg := p.cfgTemplate
		c := wsclient.New(cfg, p.builder)
		info := &ConnectionInfo{Index: i, Symbols: toSet(chunk), Client: c}
		p.connections = append(p.connections, info)
		go c.Run(ctx)
		if len(chunk) > 0 {
			c.Changes <- wsclient.SubscriptionChange{Kind: wsclient.Subscribe, Symbols: chunk}
		}
	}
	return p.connections
}

func toSet(symbols []string) map[string]bool {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[s] = true
	}
	return set
}

// Connections returns a snapshot of the pool's current connections.
func (p *Pool) Connections() []*ConnectionInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*ConnectionInfo, len(p.connections))
	copy(out, p.connections)
	return out
}

// AddSymbol routes a single new symbol to the connection with the most
// free capacity. It returns ErrPoolAtCapacity if every connection is full;
// the pool never auto-creates a new connection in that case.
func (p *Pool) AddSymbol(symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.connections) == 0 {
		return &ErrPoolAtCapacity{Venue: p.venue}
	}

	best := p.connections[0]
	bestFree := best.freeCapacity(p.limit)
	for _, c := range p.connections[1:] {
		if free := c.freeCapacity(p.limit); free > bestFree {
			best, bestFree = c, free
		}
	}
	if bestFree <= 0 {
		return &ErrPoolAtCapacity{Venue: p.venue}
	}

	best.Symbols[symbol] = true
	best.Client.Changes <- wsclient.SubscriptionChange{Kind: wsclient.Subscribe, Symbols: []string{symbol}}
	return nil
}

// RemoveSymbol drops a symbol from whichever connection currently carries
// it and sends the corresponding unsubscribe.
func (p *Pool) RemoveSymbol(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.connections {
		if c.Symbols[symbol] {
			delete(c.Symbols, symbol)
			c.Client.Changes <- wsclient.SubscriptionChange{Kind: wsclient.Unsubscribe, Symbols: []string{symbol}}
			return
		}
	}
}

// AllSymbols returns every symbol currently tracked across the pool, sorted
// for deterministic resubscribe replay.
func (p *Pool) AllSymbols() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var all []string
	for _, c := range p.connections {
		for s := range c.Symbols {
			all = append(all, s)
		}
	}
	sort.Strings(all)
	return all
}
