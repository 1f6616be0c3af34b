// Package subscription tracks the desired and actual subscribed-symbol set
// per venue and computes the minimal diff to send on update, replaying the
// full set on every reconnect.
package subscription

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/arbitrage-core/arbitrage-core/internal/market"
	"github.com/arbitrage-core/arbitrage-core/internal/wsclient"
)

// ErrExchangeNotRegistered is returned when an operation targets a venue
// the manager has no channel registered for. It is not fatal: callers log
// and continue.
var ErrExchangeNotRegistered = errors.New("subscription: exchange not registered")

// Channel is the outbound sink a registered venue delivers subscription
// changes through, normally wsclient.Client.Changes or a pool member's.
type Channel = chan<- wsclient.SubscriptionChange

// BatchOptions configures subscribe_batch's pacing.
type BatchOptions struct {
	BatchSize int
	Delay     time.Duration
}

// DefaultBatchOptions sends every symbol in one message, no pacing.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{BatchSize: 0, Delay: 0}
}

// BatchResult reports the outcome of subscribe_batch.
type BatchResult struct {
	Requested int
	Sent      int
	Skipped   int // already subscribed
	Failures  int
}

// Manager owns the current subscribed-set per venue and diffs/replays
// changes against registered outbound channels.
type Manager struct {
	mu        sync.Mutex
	current   map[market.Venue]map[string]bool
	channels  map[market.Venue][]Channel
}

// New constructs an empty Manager.
func New() *Manager {
	return &Manager{
		current:  make(map[market.Venue]map[string]bool),
		channels: make(map[market.Venue][]Channel),
	}
}

// Register attaches an outbound channel for venue. A venue may have more
// than one registered channel (one per pooled connection); resubscribe
// replays the full set to every registered channel.
func (m *Manager) Register(venue market.Venue, ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current[venue] == nil {
		m.current[venue] = make(map[string]bool)
	}
	m.channels[venue] = append(m.channels[venue], ch)
}

// Prime records symbols as already subscribed for venue without sending
// anything, for a caller (e.g. internal/pool's own initial ConnectAll
// send) that delivered the subscribe message itself and only needs the
// manager's bookkeeping to agree with reality.
func (m *Manager) Prime(venue market.Venue, symbols []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current[venue] == nil {
		m.current[venue] = make(map[string]bool)
	}
	for _, s := range symbols {
		m.current[venue][s] = true
	}
}

// CurrentSet returns a snapshot of the symbols currently considered
// subscribed for venue.
func (m *Manager) CurrentSet(venue market.Venue) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.current[venue]
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// UpdateSubscriptions computes newSet minus the current set and sends a
// single Subscribe for exactly that diff. It never emits an Unsubscribe
// for symbols dropped from newSet; removal is a separate, explicit
// operation left to the caller. Idempotent: calling it twice with the same
// newSet sends nothing the second time.
func (m *Manager) UpdateSubscriptions(venue market.Venue, newSet []string) error {
	m.mu.Lock()
	current, ok := m.current[venue]
	if !ok {
		m.mu.Unlock()
		return ErrExchangeNotRegistered
	}

	var diff []string
	for _, s := range newSet {
		if !current[s] {
			diff = append(diff, s)
		}
	}
	for _, s := range diff {
		current[s] = true
	}
	channels := append([]Channel(nil), m.channels[venue]...)
	m.mu.Unlock()

	if len(diff) == 0 {
		return nil
	}
	sort.Strings(diff)
	return sendToAll(channels, wsclient.SubscriptionChange{Kind: wsclient.Subscribe, Symbols: diff})
}

// SubscribeBatch subscribes symbols to venue in chunks of opts.BatchSize,
// pausing opts.Delay between chunks, and skips symbols already subscribed.
func (m *Manager) SubscribeBatch(ctx context.Context, venue market.Venue, symbols []string, opts BatchOptions) (BatchResult, error) {
	m.mu.Lock()
	current, ok := m.current[venue]
	if !ok {
		m.mu.Unlock()
		return BatchResult{}, ErrExchangeNotRegistered
	}

	var fresh []string
	skipped := 0
	for _, s := range symbols {
		if current[s] {
			skipped++
			continue
		}
		fresh = append(fresh, s)
	}
	channels := append([]Channel(nil), m.channels[venue]...)
	m.mu.Unlock()

	result := BatchResult{Requested: len(symbols), Skipped: skipped}
	if len(fresh) == 0 {
		return result, nil
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(fresh)
	}

	for len(fresh) > 0 {
		n := batchSize
		if n > len(fresh) {
			n = len(fresh)
		}
		chunk := fresh[:n]
		fresh = fresh[n:]

		if err := sendToAll(channels, wsclient.SubscriptionChange{Kind: wsclient.Subscribe, Symbols: chunk}); err != nil {
			result.Failures += len(chunk)
		} else {
			result.Sent += len(chunk)
			m.mu.Lock()
			for _, s := range chunk {
				current[s] = true
			}
			m.mu.Unlock()
		}

		if len(fresh) > 0 && opts.Delay > 0 {
			select {
			case <-time.After(opts.Delay):
			case <-ctx.Done():
				result.Failures += len(fresh)
				return result, ctx.Err()
			}
		}
	}
	return result, nil
}

// ResubscribeAll replays the venue's full current set to every registered
// channel for that venue. Called on every Reconnected event.
func (m *Manager) ResubscribeAll(venue market.Venue) error {
	m.mu.Lock()
	current, ok := m.current[venue]
	if !ok {
		m.mu.Unlock()
		return ErrExchangeNotRegistered
	}
	symbols := make([]string, 0, len(current))
	for s := range current {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	channels := append([]Channel(nil), m.channels[venue]...)
	m.mu.Unlock()

	if len(symbols) == 0 {
		return nil
	}
	return sendToAll(channels, wsclient.SubscriptionChange{Kind: wsclient.Subscribe, Symbols: symbols})
}

// ResubscribeAllExchanges replays every registered venue's current set.
// Failures on one venue do not prevent the others from resubscribing.
func (m *Manager) ResubscribeAllExchanges() map[market.Venue]error {
	m.mu.Lock()
	venues := make([]market.Venue, 0, len(m.current))
	for v := range m.current {
		venues = append(venues, v)
	}
	m.mu.Unlock()

	errs := make(map[market.Venue]error)
	for _, v := range venues {
		if err := m.ResubscribeAll(v); err != nil {
			errs[v] = err
		}
	}
	return errs
}

// sendToAll fans a change out to every channel, returning the first
// ChannelSendError encountered (non-fatal to callers, who may log and
// continue per spec).
func sendToAll(channels []Channel, change wsclient.SubscriptionChange) error {
	if len(channels) == 0 {
		return &ChannelSendError{Reason: "no channels registered"}
	}
	var firstErr error
	for _, ch := range channels {
		select {
		case ch <- change:
		default:
			if firstErr == nil {
				firstErr = &ChannelSendError{Reason: "channel full or closed"}
			}
		}
	}
	return firstErr
}

// ChannelSendError indicates a subscription change could not be delivered
// to one or more registered channels.
type ChannelSendError struct {
	Reason string
}

func (e *ChannelSendError) Error() string {
	return "subscription: channel send error: " + e.Reason
}
