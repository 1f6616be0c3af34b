package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arbitrage-core/arbitrage-core/internal/feeregistry"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
)

// Config holds every recognized configuration option of the detection
// core.
type Config struct {
	HTTP         HTTPConfig
	Detector     DetectorConfig
	Subscription SubscriptionConfig
	Exchanges    ExchangesConfig
	Discovery    DiscoveryConfig
	Logging      LoggingConfig
	FeeOverrides FeeOverridesConfig
	Alerts       AlertsConfig

	// DatabaseDSN points the fee registry's optional Postgres sync at a
	// live fee table. Empty disables the sync entirely and the registry
	// runs on its built-in defaults plus FeeOverrides.
	DatabaseDSN string
}

// AlertsConfig controls the optional Telegram notifier. BotToken empty
// disables alerting entirely; the engine runs without a Notifier.
type AlertsConfig struct {
	BotToken        string
	ChatID          string
	MinPremiumBPS   int32
	MinProfitUSD    float64
	Cooldown        time.Duration
	Symbols         []string
	ExcludedSymbols []string
	Exchanges       []string
}

// DiscoveryConfig controls how often market discovery re-runs across all
// venues and the minimum venue count a base asset must clear to be handed
// to the detector.
type DiscoveryConfig struct {
	MinVenues       int
	RefreshInterval time.Duration
}

// HTTPConfig controls the local health/stats/metrics surface.
type HTTPConfig struct {
	Port        int
	Host        string
	EnablePprof bool
}

// DetectorConfig controls the gate the opportunity detector applies to
// every candidate pair.
type DetectorConfig struct {
	MinPremiumBPS  int32         // detector gate, default 30
	MaxStalenessMS time.Duration // per-matrix entry, 0 = disabled

	// UsdKrwRate is the flat central-bank-style USD/KRW rate the kimchi
	// premium is computed against (spec's usd_krw, distinct from any
	// on-exchange USDT/KRW observation). 0 disables the kimchi premium
	// entirely: every KRW-involving pair reports NoConversionRate instead.
	UsdKrwRate float64
}

// SubscriptionConfig controls how the subscription manager batches
// symbol subscribe/unsubscribe messages to each venue.
type SubscriptionConfig struct {
	BatchSize    int
	BatchDelayMS time.Duration
}

// ExchangesConfig controls which venues are active and the private-API
// credentials those venues' adapters need. Of the credentials here, only
// the Coinbase key pair is used, for the Coinbase JWT subscribe
// handshake; the Upbit keys are loaded but not read by any adapter, and
// there are no Bithumb credentials — order placement and balance
// inspection, the other consumer a venue's API key would normally serve,
// live outside this engine entirely.
type ExchangesConfig struct {
	Enabled []market.Venue

	// WSPort is the fan-out server's listen port. This core doesn't run
	// that server; the option is recognized here so a single env file
	// can configure both processes.
	WSPort int

	CoinbaseAPIKeyID  string
	CoinbaseSecretKey string
	UpbitAccessKey    string
	UpbitSecretKey    string
}

// IsEnabled reports whether v is in the configured venue set. An empty
// Enabled list means "all venues enabled".
func (e ExchangesConfig) IsEnabled(v market.Venue) bool {
	if len(e.Enabled) == 0 {
		return true
	}
	for _, want := range e.Enabled {
		if want == v {
			return true
		}
	}
	return false
}

// LoggingConfig controls the zap logger construction.
type LoggingConfig struct {
	Level  string
	Format string
}

// FeeOverridesConfig seeds the fee registry with non-default maker/taker
// and withdrawal fees, read from the environment at startup. Anything
// not listed here falls back to the registry's built-in defaults; an
// operator who needs to change fees at runtime uses the Postgres sync
// path instead (internal/feeregistry/sync.go).
type FeeOverridesConfig struct {
	VenueFees   map[market.Venue]feeregistry.VenueFee
	Withdrawals map[string]feeregistry.WithdrawalFee // keyed "VENUE:SYMBOL"
}

// Load reads every recognized option from the environment, falling back
// to spec-mandated defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Port:        getEnvAsInt("HTTP_PORT", 8080),
			Host:        getEnv("HTTP_HOST", "0.0.0.0"),
			EnablePprof: getEnvAsBool("ENABLE_PPROF", false),
		},
		Detector: DetectorConfig{
			MinPremiumBPS:  int32(getEnvAsInt("MIN_PREMIUM_BPS", 30)),
			MaxStalenessMS: getEnvAsDuration("MAX_STALENESS_MS", 0),
			UsdKrwRate:     getEnvAsFloat("USD_KRW_RATE", 0),
		},
		Subscription: SubscriptionConfig{
			BatchSize:    getEnvAsInt("BATCH_SIZE", 10),
			BatchDelayMS: getEnvAsDuration("BATCH_DELAY_MS", 100*time.Millisecond),
		},
		Exchanges: ExchangesConfig{
			Enabled:           parseVenueSet(getEnv("ENABLED_EXCHANGES", "")),
			WSPort:            getEnvAsInt("WS_PORT", 9001),
			CoinbaseAPIKeyID:  getEnv("COINBASE_API_KEY_ID", ""),
			CoinbaseSecretKey: getEnv("COINBASE_SECRET_KEY", ""),
			UpbitAccessKey:    getEnv("UPBIT_ACCESS_KEY", ""),
			UpbitSecretKey:    getEnv("UPBIT_SECRET_KEY", ""),
		},
		Discovery: DiscoveryConfig{
			MinVenues:       getEnvAsInt("DISCOVERY_MIN_VENUES", 2),
			RefreshInterval: getEnvAsDuration("DISCOVERY_REFRESH_MS", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		FeeOverrides: FeeOverridesConfig{
			VenueFees:   map[market.Venue]feeregistry.VenueFee{},
			Withdrawals: map[string]feeregistry.WithdrawalFee{},
		},
		Alerts: AlertsConfig{
			BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:          getEnv("TELEGRAM_CHAT_ID", ""),
			MinPremiumBPS:   int32(getEnvAsInt("ALERT_MIN_PREMIUM_BPS", 400)),
			MinProfitUSD:    getEnvAsFloat("ALERT_MIN_PROFIT_USD", 0),
			Cooldown:        getEnvAsDuration("ALERT_COOLDOWN_MS", 5*time.Minute),
			Symbols:         parseCSV(getEnv("ALERT_SYMBOLS", "")),
			ExcludedSymbols: parseCSV(getEnv("ALERT_EXCLUDED_SYMBOLS", "")),
			Exchanges:       parseCSV(getEnv("ALERT_EXCHANGES", "")),
		},
		DatabaseDSN: getEnv("FEE_SYNC_DATABASE_DSN", ""),
	}

	if err := loadFeeOverrides(&cfg.FeeOverrides); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFeeOverrides parses FEE_OVERRIDE_<VENUE>_TAKER_BPS /
// FEE_OVERRIDE_<VENUE>_MAKER_BPS pairs for every known venue. Per-(venue,
// asset) withdrawal fee overrides are intentionally not env-var driven —
// the combinatorial (venue, asset) space belongs in the Postgres sync
// path, not a flat list of environment variables.
func loadFeeOverrides(out *FeeOverridesConfig) error {
	for _, v := range []market.Venue{
		market.VenueBinance, market.VenueCoinbase, market.VenueKraken, market.VenueBybit,
		market.VenueOkx, market.VenueGateIO, market.VenueUpbit, market.VenueBithumb,
	} {
		prefix := "FEE_OVERRIDE_" + strings.ToUpper(v.String())
		takerStr := os.Getenv(prefix + "_TAKER_BPS")
		makerStr := os.Getenv(prefix + "_MAKER_BPS")
		if takerStr == "" && makerStr == "" {
			continue
		}
		taker, err := strconv.Atoi(getEnv(prefix+"_TAKER_BPS", "0"))
		if err != nil {
			return fmt.Errorf("%s_TAKER_BPS: %w", prefix, err)
		}
		maker, err := strconv.Atoi(getEnv(prefix+"_MAKER_BPS", "0"))
		if err != nil {
			return fmt.Errorf("%s_MAKER_BPS: %w", prefix, err)
		}
		out.VenueFees[v] = feeregistry.VenueFee{TakerBPS: int32(taker), MakerBPS: int32(maker)}
	}
	return nil
}

// parseCSV splits a comma-separated env value into a trimmed, non-empty
// slice, or nil if csv is empty ("match every value" for alert rules).
func parseCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(csv, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseVenueSet(csv string) []market.Venue {
	if csv == "" {
		return nil
	}
	var out []market.Venue
	for _, name := range strings.Split(csv, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if v, ok := market.ParseVenue(name); ok {
			out = append(out, v)
		}
	}
	return out
}

// Helper functions for reading environment variables, teacher's pattern.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration reads key as a plain integer count of milliseconds,
// matching spec.md's *_ms-suffixed option names, rather than Go duration
// syntax.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	ms, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}
