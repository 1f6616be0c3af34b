// Package wsclient implements the single-connection cooperative websocket
// runtime shared by every venue adapter: connect, select over inbound
// frames / outbound subscription changes / ping ticks, and reconnect with
// jittered exponential backoff on any protocol error or stream end.
package wsclient

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Event is emitted on the events channel at each lifecycle transition.
type Event int

const (
	EventConnected Event = iota
	EventDisconnected
	EventReconnected
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReconnected:
		return "reconnected"
	default:
		return "unknown"
	}
}

// ChangeKind distinguishes a subscribe from an unsubscribe request.
type ChangeKind int

const (
	Subscribe ChangeKind = iota
	Unsubscribe
)

// SubscriptionChange is a pending outbound subscription mutation.
type SubscriptionChange struct {
	Kind    ChangeKind
	Symbols []string
}

// SubscriptionBuilder converts a SubscriptionChange into one or more
// venue-specific wire payloads, already split to respect the venue's
// per-message symbol limit.
type SubscriptionBuilder func(change SubscriptionChange) ([][]byte, error)

// Config holds the feed's connection parameters.
type Config struct {
	URL             string
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	JitterFactor    float64
	PingInterval    time.Duration
	ConnectTimeout  time.Duration
	HandshakeHeader map[string]string
}

// DefaultConfig matches spec.md's reconnection contract: 1s initial
// backoff, 60s cap, ±25% jitter.
func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     60 * time.Second,
		JitterFactor:   0.25,
		PingInterval:   30 * time.Second,
		ConnectTimeout: 10 * time.Second,
	}
}

// Client runs the cooperative reconnect loop for one venue connection.
type Client struct {
	cfg     Config
	builder SubscriptionBuilder

	Inbound chan []byte
	Changes chan SubscriptionChange
	Events  chan Event

	subscribed map[string]bool
	retryCount int32

	closeCh chan struct{}
	closed  int32
}

// New constructs a Client. Inbound/Events are buffered per spec.md's §5
// backpressure note (bounded, oldest dropped on overflow for Inbound).
func New(cfg Config, builder SubscriptionBuilder) *Client {
	return &Client{
		cfg:        cfg,
		builder:    builder,
		Inbound:    make(chan []byte, 5000),
		Changes:    make(chan SubscriptionChange, 1024),
		Events:     make(chan Event, 16),
		subscribed: make(map[string]bool),
		closeCh:    make(chan struct{}),
	}
}

// Close terminates the run loop cooperatively; the next select iteration
// observes it and closes the connection with a 1s close-frame grace.
func (c *Client) Close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		close(c.closeCh)
	}
}

// RetryCount returns the number of consecutive reconnect attempts since
// the last successful connect.
func (c *Client) RetryCount() int {
	return int(atomic.LoadInt32(&c.retryCount))
}

// Run is the cooperative loop: connect, then serve until disconnected,
// then back off and reconnect, until ctx is done or Close is called.
func (c *Client) Run(ctx context.Context) {
	firstConnect := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		default:
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.backoff(ctx)
			continue
		}

		atomic.StoreInt32(&c.retryCount, 0)
		if firstConnect {
			c.emit(EventConnected)
			firstConnect = false
		} else {
			c.emit(EventReconnected)
		}
		c.resubscribeAll(conn)

		c.serve(ctx, conn)
		conn.Close()
		c.emit(EventDisconnected)

		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		default:
		}
		c.backoff(ctx)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.ConnectTimeout}
	header := make(map[string][]string, len(c.cfg.HandshakeHeader))
	for k, v := range c.cfg.HandshakeHeader {
		header[k] = []string{v}
	}
	conn, _, err := dialer.DialContext(dialCtx, c.cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("wsclient: dial %s: %w", c.cfg.URL, err)
	}
	return conn, nil
}

// serve runs the three-arm select loop for one live connection: a reader
// goroutine forwards frames into a local channel (gorilla/websocket has no
// non-blocking read), and this loop multiplexes that against outbound
// subscription changes and the ping ticker.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	frames := make(chan []byte, 256)
	readErr := make(chan error, 1)
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- msg:
			default:
				// drop oldest per spec.md's backpressure contract
				select {
				case <-frames:
				default:
				}
				frames <- msg
			}
		}
	}()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case msg := <-frames:
			c.deliver(msg)
		case err := <-readErr:
			_ = err
			<-readerDone
			return
		case change := <-c.Changes:
			c.applyChange(conn, change)
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func (c *Client) deliver(msg []byte) {
	select {
	case c.Inbound <- msg:
	default:
		select {
		case <-c.Inbound:
		default:
		}
		c.Inbound <- msg
	}
}

func (c *Client) applyChange(conn *websocket.Conn, change SubscriptionChange) {
	payloads, err := c.builder(change)
	if err != nil {
		return
	}
	for _, p := range payloads {
		if err := conn.WriteMessage(websocket.TextMessage, p); err != nil {
			return
		}
	}
	switch change.Kind {
	case Subscribe:
		for _, s := range change.Symbols {
			c.subscribed[s] = true
		}
	case Unsubscribe:
		for _, s := range change.Symbols {
			delete(c.subscribed, s)
		}
	}
}

func (c *Client) resubscribeAll(conn *websocket.Conn) {
	if len(c.subscribed) == 0 {
		return
	}
	symbols := make([]string, 0, len(c.subscribed))
	for s := range c.subscribed {
		symbols = append(symbols, s)
	}
	c.applyChange(conn, SubscriptionChange{Kind: Subscribe, Symbols: symbols})
}

func (c *Client) emit(e Event) {
	select {
	case c.Events <- e:
	default:
	}
}

// backoff sleeps for the jittered exponential delay corresponding to the
// current retry count, then increments it.
func (c *Client) backoff(ctx context.Context) {
	attempt := atomic.AddInt32(&c.retryCount, 1) - 1
	delay := c.cfg.InitialBackoff
	for i := int32(0); i < attempt; i++ {
		delay *= 2
		if delay > c.cfg.MaxBackoff {
			delay = c.cfg.MaxBackoff
			break
		}
	}
	if c.cfg.JitterFactor > 0 {
		jitter := float64(delay) * c.cfg.JitterFactor * (rand.Float64()*2 - 1)
		delay = time.Duration(float64(delay) + jitter)
		if delay < 0 {
			delay = 0
		}
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	case <-c.closeCh:
	}
}
