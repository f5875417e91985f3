package core

import (
	"context"

	"github.com/dkeye/VoiceMesh/internal/domain"
)

//go:generate mockgen -source=signal_iface.go -destination=mock/signal_mock.go -package=mock

// Sender is the outbound half of a signaling transport.
type Sender interface {
	Send(Event) error
}

// SignalingTransport abstracts the event channel to the relay.
// Events sent after Connect succeeds are delivered in order per direction.
// It carries no retry or backoff policy; reconnection is the caller's call.
type SignalingTransport interface {
	Sender
	// Connect dials the relay and waits for the Welcome event.
	Connect(ctx context.Context) error
	// ID returns the participant id the relay assigned on connect.
	ID() domain.ParticipantID
	// Events is closed when the underlying channel drops.
	Events() <-chan Event
	// Closed is closed together with Events.
	Closed() <-chan struct{}
	Close() error
}
