// Package symbolmap holds the canonical-name mapping table that reconciles
// divergent tickers across venues, and the blacklist of (venue,symbol)
// pairs known to refer to an unrelated asset under the same ticker.
package symbolmap

import (
	"strings"
	"sync/atomic"

	"github.com/arbitrage-core/arbitrage-core/internal/market"
)

// Remap rewrites a venue-local symbol to its canonical name, e.g. Kraken's
// XXBT -> BTC. Both fields are upper-cased on store and lookup.
type Remap struct {
	Venue        market.Venue
	LocalSymbol  string
	Canonical    string
}

type blacklistKey struct {
	Venue  market.Venue
	Symbol string
}

// table is the immutable snapshot swapped wholesale on Replace.
type table struct {
	remaps    map[blacklistKey]string
	blacklist map[blacklistKey]bool
}

// Map is the read-mostly symbol-mapping table. Like feeregistry, updates
// are copy-on-write and published via a single atomic pointer swap.
type Map struct {
	current atomic.Pointer[table]
}

// New creates an empty Map with no remaps or exclusions.
func New() *Map {
	m := &Map{}
	m.current.Store(&table{remaps: map[blacklistKey]string{}, blacklist: map[blacklistKey]bool{}})
	return m
}

func normKey(v market.Venue, symbol string) blacklistKey {
	return blacklistKey{Venue: v, Symbol: strings.ToUpper(symbol)}
}

// Canonicalize returns the canonical name for (venue, localSymbol),
// defaulting to the upper-cased local symbol itself when no remap exists.
func (m *Map) Canonicalize(v market.Venue, localSymbol string) string {
	t := m.current.Load()
	key := normKey(v, localSymbol)
	if canon, ok := t.remaps[key]; ok {
		return canon
	}
	return key.Symbol
}

// IsExcluded reports whether (venue, localSymbol) is blacklisted — i.e.
// the same ticker on this venue denotes an unrelated asset and must never
// be folded into a cross-venue group.
func (m *Map) IsExcluded(v market.Venue, localSymbol string) bool {
	t := m.current.Load()
	return t.blacklist[normKey(v, localSymbol)]
}

// SetRemap registers a canonical-name override for (venue, localSymbol).
func (m *Map) SetRemap(v market.Venue, localSymbol, canonical string) {
	old := m.current.Load()
	next := &table{remaps: cloneRemaps(old.remaps), blacklist: old.blacklist}
	next.remaps[normKey(v, localSymbol)] = strings.ToUpper(canonical)
	m.current.Store(next)
}

// SetExcluded marks (venue, localSymbol) as blacklisted.
func (m *Map) SetExcluded(v market.Venue, localSymbol string) {
	old := m.current.Load()
	next := &table{remaps: old.remaps, blacklist: cloneBlacklist(old.blacklist)}
	next.blacklist[normKey(v, localSymbol)] = true
	m.current.Store(next)
}

// Replace swaps the entire table wholesale.
func (m *Map) Replace(remaps map[blacklistKey]string, blacklist map[blacklistKey]bool) {
	m.current.Store(&table{remaps: remaps, blacklist: blacklist})
}

func cloneRemaps(src map[blacklistKey]string) map[blacklistKey]string {
	out := make(map[blacklistKey]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func cloneBlacklist(src map[blacklistKey]bool) map[blacklistKey]bool {
	out := make(map[blacklistKey]bool, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// krakenAssetRemaps are the well-known Kraken asset-code normalizations
// from spec.md's discovery section (XXBT->BTC, XETH->ETH, ZUSD->USD, and
// the general X<sym>->sym / Z<sym>->sym pattern for everything else).
var krakenAssetRemaps = map[string]string{
	"XXBT": "BTC",
	"XETH": "ETH",
	"ZUSD": "USD",
	"ZEUR": "EUR",
	"ZGBP": "GBP",
	"ZJPY": "JPY",
}

// NormalizeKrakenAsset applies Kraken's legacy asset-code prefixing rules:
// known overrides first, then the general X/Z prefix strip.
func NormalizeKrakenAsset(code string) string {
	code = strings.ToUpper(code)
	if canon, ok := krakenAssetRemaps[code]; ok {
		return canon
	}
	if len(code) > 1 && (code[0] == 'X' || code[0] == 'Z') {
		return code[1:]
	}
	return code
}
