package wsclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func echoServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.TextMessage {
				_ = conn.WriteMessage(websocket.TextMessage, append([]byte("echo:"), msg...))
			}
		}
	}))
	url := "ws" + srv.URL[len("http"):]
	return srv, url
}

func noopBuilder(change SubscriptionChange) ([][]byte, error) {
	return [][]byte{[]byte("sub")}, nil
}

func TestClientConnectsAndEmitsConnected(t *testing.T) {
	srv, url := echoServer(t)
	defer srv.Close()

	cfg := DefaultConfig(url)
	cfg.PingInterval = time.Hour
	c := New(cfg, noopBuilder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case ev := <-c.Events:
		if ev != EventConnected {
			t.Fatalf("expected EventConnected, got %v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connected event")
	}
	c.Close()
}

func TestClientForwardsInboundFrames(t *testing.T) {
	srv, url := echoServer(t)
	defer srv.Close()

	cfg := DefaultConfig(url)
	cfg.PingInterval = time.Hour
	c := New(cfg, noopBuilder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	<-c.Events // connected

	c.Changes <- SubscriptionChange{Kind: Subscribe, Symbols: []string{"BTCUSDT"}}

	select {
	case msg := <-c.Inbound:
		if string(msg) != "echo:sub" {
			t.Fatalf("expected echoed subscribe payload, got %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound frame")
	}
	c.Close()
}

func TestDefaultConfigMatchesBackoffContract(t *testing.T) {
	cfg := DefaultConfig("ws://example.invalid")
	if cfg.InitialBackoff != time.Second {
		t.Errorf("expected 1s initial backoff, got %v", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 60*time.Second {
		t.Errorf("expected 60s max backoff, got %v", cfg.MaxBackoff)
	}
	if cfg.JitterFactor != 0.25 {
		t.Errorf("expected 0.25 jitter factor, got %v", cfg.JitterFactor)
	}
}

func TestBackoffIsCutShortByContext(t *testing.T) {
	c := New(Config{InitialBackoff: time.Second, MaxBackoff: 60 * time.Second, JitterFactor: 0.25}, noopBuilder)
	c.retryCount = 5 // simulate 5 prior attempts, pre-increment value checked inside backoff
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	c.backoff(ctx)
	elapsed := time.Since(start)
	if elapsed > 150*time.Millisecond {
		t.Errorf("expected backoff to be cut short by context timeout, took %v", elapsed)
	}
}

func TestClientReconnectsAfterServerDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	connCount := 0
	connCh := make(chan struct{}, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCount++
		connCh <- struct{}{}
		conn.Close() // drop immediately to force a reconnect
	}))
	defer srv.Close()
	url := "ws" + srv.URL[len("http"):]

	cfg := DefaultConfig(url)
	cfg.InitialBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 20 * time.Millisecond
	cfg.PingInterval = time.Hour
	c := New(cfg, noopBuilder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	seen := 0
	timeout := time.After(2 * time.Second)
	for seen < 2 {
		select {
		case <-connCh:
			seen++
		case <-timeout:
			t.Fatal("timed out waiting for a second connection attempt")
		}
	}
	c.Close()
}
