// Package alerts turns detected opportunities into outbound Telegram
// notifications, gated by per-recipient rules and a cooldown that
// suppresses repeat alerts for an opportunity that is still active.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arbitrage-core/arbitrage-core/internal/detector"
	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
)

// Rule is one recipient's alert configuration: which symbols/venues it
// cares about and the thresholds an opportunity must clear.
type Rule struct {
	ChatID          string
	Enabled         bool
	Symbols         []string // empty means "every symbol"
	ExcludedSymbols []string
	Exchanges       []string // empty means "every exchange"
	MinPremiumBPS   int32
	MinProfitUSD    float64
}

func (r Rule) matchesSymbol(symbol string) bool {
	for _, s := range r.ExcludedSymbols {
		if strings.EqualFold(s, symbol) {
			return false
		}
	}
	if len(r.Symbols) == 0 {
		return true
	}
	for _, s := range r.Symbols {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

func (r Rule) matchesExchange(source, target string) bool {
	if len(r.Exchanges) == 0 {
		return true
	}
	for _, e := range r.Exchanges {
		if strings.EqualFold(e, source) || strings.EqualFold(e, target) {
			return true
		}
	}
	return false
}

func (r Rule) meetsThreshold(premiumBPS int32, profitUSD float64) bool {
	meetsPremium := premiumBPS >= r.MinPremiumBPS
	meetsProfit := r.MinProfitUSD > 0 && profitUSD >= r.MinProfitUSD
	return meetsPremium || meetsProfit
}

// Sender delivers a formatted alert to a chat. TelegramSender is the
// production implementation; tests supply a stub.
type Sender interface {
	Send(ctx context.Context, chatID, message string) error
}

// activeKey identifies one (symbol, source venue, target venue) arbitrage
// path for cooldown tracking, independent of which config matched it.
type activeKey struct {
	Symbol string
	Source string
	Target string
}

type activeEntry struct {
	lastPremiumBPS int32
	firstSeen      time.Time
	lastSeen       time.Time
}

// Notifier processes detected opportunities against a set of rules and
// fires Sender.Send once per opportunity that newly crosses a rule's
// threshold, suppressing repeats for Cooldown while the path stays active.
type Notifier struct {
	sender   Sender
	cooldown time.Duration

	mu     sync.Mutex
	rules  []Rule
	active map[activeKey]activeEntry
}

// DefaultCooldown is the default quiet window: a path alerts again only
// once it has gone unseen for at least this long, since every sighting
// refreshes the path's last-seen time.
const DefaultCooldown = 5 * time.Minute

// NewNotifier constructs a Notifier. A non-positive cooldown selects
// DefaultCooldown. The current time is supplied per call to
// ProcessOpportunity rather than read from time.Now by the notifier.
func NewNotifier(sender Sender, rules []Rule, cooldown time.Duration) *Notifier {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Notifier{
		sender:   sender,
		cooldown: cooldown,
		rules:    rules,
		active:   make(map[activeKey]activeEntry),
	}
}

// SetRules replaces the rule set, e.g. after an operator edits recipients.
func (n *Notifier) SetRules(rules []Rule) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rules = rules
}

// ProcessOpportunity evaluates o against every enabled rule and sends one
// alert per matching rule, unless the path is still within its cooldown
// window. It returns the number of alerts actually sent.
func (n *Notifier) ProcessOpportunity(ctx context.Context, o detector.Opportunity, now time.Time) (int, error) {
	if o.OptimalSize == 0 || o.OptimalProfit <= 0 {
		return 0, nil
	}

	key := activeKey{
		Symbol: o.Asset,
		Source: o.SourceVenue.String(),
		Target: o.TargetVenue.String(),
	}

	n.mu.Lock()
	prev, wasActive := n.active[key]
	stillCoolingDown := wasActive && now.Sub(prev.lastSeen) < n.cooldown
	n.active[key] = activeEntry{
		lastPremiumBPS: o.PremiumBPS,
		firstSeen:      firstSeen(prev, wasActive, now),
		lastSeen:       now,
	}
	rules := append([]Rule(nil), n.rules...)
	n.mu.Unlock()

	if stillCoolingDown {
		return 0, nil
	}

	profitUSD := fixedpoint.FixedPoint(o.OptimalProfit).ToDecimal()

	sent := 0
	message := formatAlertMessage(o, profitUSD)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if !rule.matchesSymbol(o.Asset) {
			continue
		}
		if !rule.matchesExchange(o.SourceVenue.String(), o.TargetVenue.String()) {
			continue
		}
		if !rule.meetsThreshold(o.PremiumBPS, profitUSD) {
			continue
		}
		if err := n.sender.Send(ctx, rule.ChatID, message); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// formatAlertMessage renders an HTML-parse-mode Telegram message: a header
// line, the buy/sell leg prices, and the premium/profit figures that
// justified sending it.
func formatAlertMessage(o detector.Opportunity, profitUSD float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\U0001F6A8 <b>%s</b> premium %.2f%%\n", o.Asset, float64(o.PremiumBPS)/100)
	fmt.Fprintf(&b, "Buy  %s/%s on <b>%s</b> @ %.4f\n", o.Asset, o.SourceQuote.String(), o.SourceVenue.String(), o.SourcePrice.ToDecimal())
	fmt.Fprintf(&b, "Sell %s/%s on <b>%s</b> @ %.4f\n", o.Asset, o.TargetQuote.String(), o.TargetVenue.String(), o.TargetPrice.ToDecimal())
	fmt.Fprintf(&b, "Size %.6f, est. profit $%.2f", o.OptimalSize.ToDecimal(), profitUSD)
	return b.String()
}

func firstSeen(prev activeEntry, wasActive bool, now time.Time) time.Time {
	if wasActive {
		return prev.firstSeen
	}
	return now
}

// Prune drops active-path entries not seen within staleAfter, so a path
// that genuinely disappears re-alerts immediately rather than waiting out
// a stale cooldown window.
func (n *Notifier) Prune(now time.Time, staleAfter time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for k, e := range n.active {
		if now.Sub(e.lastSeen) > staleAfter {
			delete(n.active, k)
		}
	}
}
