package signal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/gorilla/websocket"
)

// fakeRelay greets each connection with hello, then calls serve.
func fakeRelay(t *testing.T, codec Codec, hello core.Event, serve func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		data, err := codec.Encode(hello)
		if err != nil {
			return
		}
		if err := conn.WriteMessage(codec.MessageType(), data); err != nil {
			return
		}
		if serve != nil {
			serve(conn)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// echoChat answers every SendMessage with a MessageReceived.
func echoChat(codec Codec) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ev, err := codec.Decode(data)
			if err != nil {
				continue
			}
			msg, ok := ev.(*core.SendMessage)
			if !ok {
				continue
			}
			out, _ := codec.Encode(&core.MessageReceived{
				Text:      msg.Text,
				Author:    "relay",
				Timestamp: time.Unix(1700000000, 0).UTC(),
				Channel:   msg.Channel,
			})
			if err := conn.WriteMessage(codec.MessageType(), out); err != nil {
				return
			}
		}
	}
}

func TestClientRoundTrip(t *testing.T) {
	for _, codec := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			url := fakeRelay(t, codec, &core.Welcome{ID: "conn-7"}, echoChat(codec))
			c := NewClient(Options{URL: url, Codec: codec})
			defer c.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := c.Connect(ctx); err != nil {
				t.Fatal(err)
			}
			if c.ID() != "conn-7" {
				t.Fatalf("id %q", c.ID())
			}

			for _, text := range []string{"one", "two", "three"} {
				if err := c.Send(&core.SendMessage{Text: text, Channel: "general"}); err != nil {
					t.Fatal(err)
				}
			}
			for _, want := range []string{"one", "two", "three"} {
				select {
				case ev := <-c.Events():
					m, ok := ev.(*core.MessageReceived)
					if !ok || m.Text != want {
						t.Fatalf("got %#v, want %q", ev, want)
					}
				case <-ctx.Done():
					t.Fatal("no echo from relay")
				}
			}
		})
	}
}

func TestClientNotifiesClosure(t *testing.T) {
	url := fakeRelay(t, JSONCodec{}, &core.Welcome{ID: "conn-1"}, nil) // hangs up right after Welcome
	c := NewClient(Options{URL: url})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}

	select {
	case <-c.Closed():
	case <-ctx.Done():
		t.Fatal("closure not reported")
	}
	for range c.Events() {
	}
	if err := c.Send(&core.GetChannels{}); !errors.Is(err, domain.ErrTransportClosed) {
		t.Fatalf("expected ErrTransportClosed, got %v", err)
	}
}

func TestClientRequiresWelcome(t *testing.T) {
	url := fakeRelay(t, JSONCodec{}, &core.GetChannels{}, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})
	c := NewClient(Options{URL: url})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); !errors.Is(err, domain.ErrTransportUnreachable) {
		t.Fatalf("expected ErrTransportUnreachable, got %v", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	c := NewClient(Options{URL: url})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); !errors.Is(err, domain.ErrTransportUnreachable) {
		t.Fatalf("expected ErrTransportUnreachable, got %v", err)
	}
}

func TestSendBeforeConnectQueues(t *testing.T) {
	c := NewClient(Options{URL: "ws://unused"})
	if err := c.Send(&core.GetChannels{}); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Send(&core.GetChannels{}); !errors.Is(err, domain.ErrTransportClosed) {
		t.Fatalf("expected ErrTransportClosed, got %v", err)
	}
	if _, ok := <-c.Events(); ok {
		t.Fatal("events must be closed")
	}
	if err := c.Connect(context.Background()); !errors.Is(err, domain.ErrTransportClosed) {
		t.Fatalf("expected ErrTransportClosed, got %v", err)
	}
}

func TestSendWaitsForWriter(t *testing.T) {
	c := NewClient(Options{URL: "ws://unused"})
	for i := 0; i < outboundBuffer; i++ {
		if err := c.Send(&core.GetChannels{}); err != nil {
			t.Fatal(err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- c.Send(&core.GetChannels{}) }()
	select {
	case err := <-done:
		t.Fatalf("send on a full queue returned early: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, domain.ErrTransportClosed) {
			t.Fatalf("expected ErrTransportClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked send not released by Close")
	}
}

func TestBurstIsDeliveredInOrder(t *testing.T) {
	const burst = outboundBuffer * 4
	codec := JSONCodec{}
	url := fakeRelay(t, codec, &core.Welcome{ID: "conn-1"}, func(conn *websocket.Conn) {
		time.Sleep(200 * time.Millisecond) // slow relay
		echoChat(codec)(conn)
	})
	c := NewClient(Options{URL: url, Codec: codec})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}

	sendErr := make(chan error, 1)
	go func() {
		for i := 0; i < burst; i++ {
			if err := c.Send(&core.SendMessage{Text: fmt.Sprint(i), Channel: "general"}); err != nil {
				sendErr <- err
				return
			}
		}
		sendErr <- nil
	}()

	for i := 0; i < burst; i++ {
		select {
		case ev := <-c.Events():
			m, ok := ev.(*core.MessageReceived)
			if !ok || m.Text != fmt.Sprint(i) {
				t.Fatalf("event %d: got %#v", i, ev)
			}
		case <-ctx.Done():
			t.Fatalf("only %d of %d events arrived", i, burst)
		}
	}
	if err := <-sendErr; err != nil {
		t.Fatal(err)
	}
}
