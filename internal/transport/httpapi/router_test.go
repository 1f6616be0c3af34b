package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeStatsProvider struct {
	stats Stats
}

func (f fakeStatsProvider) Stats() Stats {
	return f.stats
}

func TestHealthzReturnsOK(t *testing.T) {
	router := NewRouter(Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestStatsReturnsProviderValuesAndComputesUptime(t *testing.T) {
	provider := fakeStatsProvider{stats: Stats{
		PriceUpdates:          42,
		OpportunitiesDetected: 7,
		ConnectedVenues:       5,
		CommonMarkets:         12,
	}}
	router := NewRouter(Dependencies{Stats: provider, StartedAt: time.Now().Add(-10 * time.Second)})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var got Stats
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PriceUpdates != 42 || got.OpportunitiesDetected != 7 || got.CommonMarkets != 12 {
		t.Fatalf("unexpected stats: %+v", got)
	}
	if got.UptimeSecs < 9 {
		t.Fatalf("expected uptime computed from StartedAt, got %d", got.UptimeSecs)
	}
}

func TestDebugPprofDisabledByDefault(t *testing.T) {
	router := NewRouter(Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected pprof routes absent when EnablePprof is false, got %d", w.Code)
	}
}

func TestDebugPprofRequiresAuthWhenEnabled(t *testing.T) {
	t.Setenv("DEBUG_USERNAME", "")
	t.Setenv("DEBUG_PASSWORD", "")
	router := NewRouter(Dependencies{EnablePprof: true})

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with no debug credentials configured, got %d", w.Code)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	router := NewRouter(Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
