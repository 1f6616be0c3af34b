package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidSymbol is returned by ValidateSymbol for malformed input.
var ErrInvalidSymbol = errors.New("invalid symbol")

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9_/-]+$`)

// ValidateSymbol checks that symbol looks like a venue trading pair: 2-20
// characters, alphanumeric plus separators ("-", "_", "/").
func ValidateSymbol(symbol string) error {
	if len(symbol) < 2 || len(symbol) > 20 {
		return fmt.Errorf("%w: length %d out of range [2,20]", ErrInvalidSymbol, len(symbol))
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: %q contains disallowed characters", ErrInvalidSymbol, symbol)
	}
	return nil
}

// IsValidSymbol is a bool convenience wrapper over ValidateSymbol.
func IsValidSymbol(symbol string) bool {
	return ValidateSymbol(symbol) == nil
}

// NormalizeSymbol uppercases s and strips venue separator characters, so
// "btc-usdt" and "BTC_USDT" both normalize to "BTCUSDT".
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(s)
	s = strings.NewReplacer("-", "", "_", "", "/", "").Replace(s)
	return s
}

// quoteCurrencies lists recognized quote assets, longest first, so
// ExtractBaseCurrency/ExtractQuoteCurrency correctly split bare-concatenated
// symbols like "BTCUSDT" without a separator.
var quoteCurrencies = []string{"USDT", "USDC", "BUSD", "USD", "BTC", "ETH", "KRW"}

// ExtractBaseCurrency returns the base asset of a trading-pair symbol,
// handling both separated ("BTC-USDT") and bare-concatenated ("BTCUSDT")
// forms.
func ExtractBaseCurrency(symbol string) string {
	norm := NormalizeSymbol(symbol)
	for _, q := range quoteCurrencies {
		if strings.HasSuffix(norm, q) && len(norm) > len(q) {
			return norm[:len(norm)-len(q)]
		}
	}
	return norm
}

// ExtractQuoteCurrency returns the quote asset of a trading-pair symbol.
func ExtractQuoteCurrency(symbol string) string {
	norm := NormalizeSymbol(symbol)
	for _, q := range quoteCurrencies {
		if strings.HasSuffix(norm, q) && len(norm) > len(q) {
			return q
		}
	}
	return ""
}

// ValidateSpread checks that spread is a plausible percentage value: strictly
// positive, and at most 100%.
func ValidateSpread(spread float64) error {
	if spread <= 0 {
		return fmt.Errorf("spread must be positive, got %v", spread)
	}
	if spread > 100 {
		return fmt.Errorf("spread must be at most 100, got %v", spread)
	}
	return nil
}

// ValidateVolume checks that volume is strictly positive and below a sane
// upper bound.
func ValidateVolume(volume float64) error {
	if volume <= 0 {
		return fmt.Errorf("volume must be positive, got %v", volume)
	}
	if volume >= 1e10 {
		return fmt.Errorf("volume %v exceeds maximum", volume)
	}
	return nil
}

// ValidateNOrders checks that n falls within [1,100].
func ValidateNOrders(n int) error {
	if n < 1 || n > 100 {
		return fmt.Errorf("order count must be in [1,100], got %d", n)
	}
	return nil
}

// ValidatePercentage checks that pct falls within [0,100].
func ValidatePercentage(pct float64) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("percentage must be in [0,100], got %v", pct)
	}
	return nil
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail checks email against a permissive RFC-ish pattern.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("invalid email address: %q", email)
	}
	return nil
}

// IsValidEmail is a bool convenience wrapper over ValidateEmail.
func IsValidEmail(email string) bool {
	return ValidateEmail(email) == nil
}

var apiKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateAPIKey checks a venue API key for plausible shape: at least 16
// characters, alphanumeric plus "-"/"_".
func ValidateAPIKey(key string) error {
	if len(key) < 16 {
		return fmt.Errorf("API key too short: %d characters", len(key))
	}
	if !apiKeyPattern.MatchString(key) {
		return fmt.Errorf("API key contains disallowed characters")
	}
	return nil
}

// IsValidAPIKey is a bool convenience wrapper over ValidateAPIKey.
func IsValidAPIKey(key string) bool {
	return ValidateAPIKey(key) == nil
}

// ValidationErrors accumulates field-level validation failures.
type ValidationErrors []string

// Add appends a formatted field error.
func (v *ValidationErrors) Add(field, msg string) {
	*v = append(*v, fmt.Sprintf("%s: %s", field, msg))
}

// AddError appends err's message under field, if err is non-nil.
func (v *ValidationErrors) AddError(field string, err error) {
	if err == nil {
		return
	}
	v.Add(field, err.Error())
}

// HasErrors reports whether any errors were accumulated.
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Error implements the error interface, joining all accumulated messages.
func (v ValidationErrors) Error() string {
	return strings.Join(v, "; ")
}
