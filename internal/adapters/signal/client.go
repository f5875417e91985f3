package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	defaultWriteWait  = 10 * time.Second
	defaultPingPeriod = 54 * time.Second
	defaultReadLimit  = 64 * 1024
	outboundBuffer    = 64
	inboundBuffer     = 64
)

type Options struct {
	URL        string
	Codec      Codec
	ReadLimit  int64
	PingPeriod time.Duration
	WriteWait  time.Duration
	Dialer     *websocket.Dialer
}

// Client implements core.SignalingTransport over a websocket to the relay.
type Client struct {
	opts Options
	conn *websocket.Conn
	id   domain.ParticipantID

	events chan core.Event
	send   chan core.Event
	done   chan struct{}

	mu         sync.RWMutex
	closed     bool
	started    bool
	closeOnce  sync.Once
	eventsOnce sync.Once
}

var _ core.SignalingTransport = (*Client)(nil)

func NewClient(opts Options) *Client {
	if opts.Codec == nil {
		opts.Codec = JSONCodec{}
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = defaultPingPeriod
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaultWriteWait
	}
	return &Client{
		opts:   opts,
		events: make(chan core.Event, inboundBuffer),
		send:   make(chan core.Event, outboundBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Client) pongWait() time.Duration {
	return c.opts.PingPeriod * 10 / 9
}

// Connect dials the relay and waits for the Welcome event carrying our id.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	closed, started := c.closed, c.started
	c.mu.RUnlock()
	if closed {
		return domain.ErrTransportClosed
	}
	if started {
		return nil
	}

	dialer := websocket.DefaultDialer
	if c.opts.Dialer != nil {
		dialer = c.opts.Dialer
	}
	conn, _, err := dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransportUnreachable, err)
	}
	conn.SetReadLimit(c.opts.ReadLimit)

	id, err := c.handshake(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %v", domain.ErrTransportUnreachable, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return domain.ErrTransportClosed
	}
	c.conn = conn
	c.id = id
	c.started = true
	c.mu.Unlock()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	log.Info().Str("module", "signal").Str("url", c.opts.URL).Str("id", string(id)).Str("codec", c.opts.Codec.Name()).Msg("connected to relay")

	go c.writePump()
	go c.readPump()
	return nil
}

func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) (domain.ParticipantID, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.pongWait())
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return "", err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read welcome: %w", err)
	}
	ev, err := c.opts.Codec.Decode(data)
	if err != nil {
		return "", err
	}
	w, ok := ev.(*core.Welcome)
	if !ok {
		return "", fmt.Errorf("expected Welcome, got %s", ev.EventName())
	}
	if w.ID == "" {
		return "", fmt.Errorf("welcome without id")
	}
	return w.ID, conn.SetReadDeadline(time.Time{})
}

func (c *Client) ID() domain.ParticipantID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// Send queues ev for the write pump. Order is preserved. When the queue is
// full Send waits for the writer; it never drops an event.
func (c *Client) Send(ev core.Event) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return domain.ErrTransportClosed
	}
	select {
	case c.send <- ev:
		return nil
	case <-c.done:
		return domain.ErrTransportClosed
	}
}

func (c *Client) Events() <-chan core.Event { return c.events }
func (c *Client) Closed() <-chan struct{}   { return c.done }

func (c *Client) Close() error {
	c.shutdown()
	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()
	if !started {
		c.closeEvents()
	}
	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn := c.conn
		c.mu.Unlock()
		close(c.done)
		if conn != nil {
			_ = conn.Close()
		}
		log.Info().Str("module", "signal").Msg("transport closed")
	})
}

func (c *Client) closeEvents() {
	c.eventsOnce.Do(func() { close(c.events) })
}
