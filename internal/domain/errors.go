package domain

import "errors"

// Session-level and per-link error kinds. Callers match them with errors.Is.
var (
	ErrTransportUnreachable = errors.New("signaling relay unreachable")
	ErrTransportClosed      = errors.New("signaling transport closed")
	ErrMediaAcquisition     = errors.New("media acquisition failed")
	ErrNoCaptureDevice      = errors.New("no capture device")
	ErrNegotiation          = errors.New("negotiation failed")
	ErrNegotiationTimeout   = errors.New("negotiation timed out")
	ErrStaleSignal          = errors.New("stale signal")
	ErrSelfLink             = errors.New("link to self")
	ErrNotInVoice           = errors.New("not in a voice channel")
	ErrRateLimited          = errors.New("rate limited")
	ErrEmptyMessage         = errors.New("empty message")
)
