// Package feeregistry holds venue trading fees and per-(venue,asset)
// withdrawal fees. It is read-mostly: the active snapshot is swapped
// wholesale, published via an atomic pointer, so readers never block on a
// sync job replacing the whole table.
package feeregistry

import (
	"sync/atomic"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
)

// VenueFee is the maker/taker schedule for one venue, in basis points.
type VenueFee struct {
	TakerBPS int32
	MakerBPS int32
}

// WithdrawalFee is the flat withdrawal cost for one (venue,asset), denoted
// in base-asset fixed-point units.
type WithdrawalFee struct {
	Fee           fixedpoint.FixedPoint
	MinWithdrawal fixedpoint.FixedPoint
	Network       string
}

// defaultVenueFees mirrors spec.md's §4.9 table of per-venue taker/maker
// defaults.
var defaultVenueFees = map[market.Venue]VenueFee{
	market.VenueBinance:  {TakerBPS: 10, MakerBPS: 10},
	market.VenueCoinbase: {TakerBPS: 60, MakerBPS: 40},
	market.VenueKraken:   {TakerBPS: 26, MakerBPS: 16},
	market.VenueBybit:    {TakerBPS: 10, MakerBPS: 10},
	market.VenueOkx:      {TakerBPS: 10, MakerBPS: 8},
	market.VenueGateIO:   {TakerBPS: 20, MakerBPS: 20},
	market.VenueUpbit:    {TakerBPS: 5, MakerBPS: 5},
	market.VenueBithumb:  {TakerBPS: 4, MakerBPS: 4},
}

// withdrawalKey indexes the withdrawal table by (venue,asset symbol).
type withdrawalKey struct {
	Venue  market.Venue
	Symbol string
}

// snapshot is the immutable table swapped wholesale on Replace.
type snapshot struct {
	venueFees   map[market.Venue]VenueFee
	withdrawals map[withdrawalKey]WithdrawalFee
}

// Registry is the read-mostly fee table. Replace performs a wholesale
// atomic swap, used by an external sync job (see sync.go) without taking
// any reader lock.
type Registry struct {
	current atomic.Pointer[snapshot]
}

// NewDefault builds a Registry preloaded with the spec.md §4.9 defaults and
// no withdrawal fee overrides.
func NewDefault() *Registry {
	r := &Registry{}
	snap := &snapshot{
		venueFees:   cloneVenueFees(defaultVenueFees),
		withdrawals: make(map[withdrawalKey]WithdrawalFee),
	}
	r.current.Store(snap)
	return r
}

func cloneVenueFees(src map[market.Venue]VenueFee) map[market.Venue]VenueFee {
	out := make(map[market.Venue]VenueFee, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// VenueFee returns the maker/taker schedule for venue, falling back to a
// zero-fee schedule if unconfigured.
func (r *Registry) VenueFee(v market.Venue) VenueFee {
	snap := r.current.Load()
	if fee, ok := snap.venueFees[v]; ok {
		return fee
	}
	return VenueFee{}
}

// SetVenueFee overrides a single venue's fee schedule, copy-on-write.
func (r *Registry) SetVenueFee(v market.Venue, fee VenueFee) {
	old := r.current.Load()
	next := &snapshot{
		venueFees:   cloneVenueFees(old.venueFees),
		withdrawals: old.withdrawals,
	}
	next.venueFees[v] = fee
	r.current.Store(next)
}

// WithdrawalFee returns the withdrawal fee for (venue,asset), and whether
// one is configured.
func (r *Registry) WithdrawalFee(v market.Venue, assetSymbol string) (WithdrawalFee, bool) {
	snap := r.current.Load()
	f, ok := snap.withdrawals[withdrawalKey{Venue: v, Symbol: assetSymbol}]
	return f, ok
}

// SetWithdrawalFee overrides a single (venue,asset) withdrawal fee,
// copy-on-write.
func (r *Registry) SetWithdrawalFee(v market.Venue, assetSymbol string, fee WithdrawalFee) {
	old := r.current.Load()
	newMap := make(map[withdrawalKey]WithdrawalFee, len(old.withdrawals)+1)
	for k, val := range old.withdrawals {
		newMap[k] = val
	}
	newMap[withdrawalKey{Venue: v, Symbol: assetSymbol}] = fee
	next := &snapshot{venueFees: old.venueFees, withdrawals: newMap}
	r.current.Store(next)
}

// Replace swaps the entire registry contents wholesale, in one atomic
// store, for use by an external sync job.
func (r *Registry) Replace(venueFees map[market.Venue]VenueFee, withdrawals map[withdrawalKey]WithdrawalFee) {
	r.current.Store(&snapshot{
		venueFees:   cloneVenueFees(venueFees),
		withdrawals: withdrawals,
	})
}

// GetArbitrageFees is the detector's single entry point: it returns the
// buy-venue taker fee, sell-venue taker fee, and the withdrawal fee owed on
// the buy venue to move asset out to the sell venue.
func (r *Registry) GetArbitrageFees(buyVenue, sellVenue market.Venue, assetSymbol string) (buyTakerBPS, sellTakerBPS int32, withdrawalFee fixedpoint.FixedPoint) {
	buyTakerBPS = r.VenueFee(buyVenue).TakerBPS
	sellTakerBPS = r.VenueFee(sellVenue).TakerBPS
	if wf, ok := r.WithdrawalFee(buyVenue, assetSymbol); ok {
		withdrawalFee = wf.Fee
	}
	return
}
