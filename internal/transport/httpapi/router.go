// Package httpapi is the engine's locally observable surface: health and
// stats endpoints for operators, plus the Prometheus scrape target. The
// client-facing websocket fan-out and UI are out of scope; this package
// only serves operators polling the process directly.
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arbitrage-core/arbitrage-core/pkg/utils"
)

// StatsProvider reports the engine's running counters. The caller wires
// this to whatever holds the live state (the detector loop, typically).
type StatsProvider interface {
	Stats() Stats
}

// Stats mirrors the engine's own view of its health, independent of the
// outbound events package's wire shape.
type Stats struct {
	UptimeSecs            int64  `json:"uptime_secs"`
	Uptime                string `json:"uptime"`
	AsOfMs                int64  `json:"as_of_ms"`
	PriceUpdates          int64  `json:"price_updates"`
	OpportunitiesDetected int64  `json:"opportunities_detected"`
	ConnectedVenues       int    `json:"connected_venues"`
	CommonMarkets         int    `json:"common_markets"`
}

// Dependencies bundles what the router needs to answer requests.
type Dependencies struct {
	Stats       StatsProvider
	StartedAt   time.Time
	EnablePprof bool
	Logger      *zap.Logger
}

// NewRouter builds the status/health mux.Router. deps.Stats may be nil,
// in which case /stats reports zeroed counters rather than failing —
// callers can wire it in after startup completes. deps.Logger may be
// nil, in which case recovered panics are dropped silently.
func NewRouter(deps Dependencies) *mux.Router {
	router := mux.NewRouter()
	router.Use(recoveryMiddleware(deps.Logger))

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	router.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		var s Stats
		if deps.Stats != nil {
			s = deps.Stats.Stats()
		}
		if !deps.StartedAt.IsZero() {
			uptime := time.Since(deps.StartedAt)
			s.UptimeSecs = int64(uptime.Seconds())
			s.Uptime = utils.FormatDuration(uptime)
		}
		s.AsOfMs = utils.UnixMillis()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s)
	}).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if deps.EnablePprof {
		debug := router.PathPrefix("/debug/pprof").Subrouter()
		debug.Use(debugAuth)
		debug.HandleFunc("/", pprof.Index)
		debug.HandleFunc("/cmdline", pprof.Cmdline)
		debug.HandleFunc("/profile", pprof.Profile)
		debug.HandleFunc("/symbol", pprof.Symbol)
		debug.HandleFunc("/trace", pprof.Trace)
		debug.HandleFunc("/heap", pprof.Handler("heap").ServeHTTP)
		debug.HandleFunc("/goroutine", pprof.Handler("goroutine").ServeHTTP)
	}

	return router
}

func recoveryMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if logger != nil {
						logger.Error("panic in httpapi handler", zap.Any("recovered", rec), zap.String("path", r.URL.Path))
					}
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// debugAuth gates /debug/pprof behind HTTP basic auth configured via
// DEBUG_USERNAME/DEBUG_PASSWORD. Unset credentials disable the endpoints
// entirely rather than leaving them open.
func debugAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantUser := os.Getenv("DEBUG_USERNAME")
		wantPass := os.Getenv("DEBUG_PASSWORD")
		if wantUser == "" || wantPass == "" {
			http.Error(w, "debug endpoints disabled: set DEBUG_USERNAME and DEBUG_PASSWORD", http.StatusForbidden)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(wantUser)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(wantPass)) == 1
		if !userMatch || !passMatch {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
