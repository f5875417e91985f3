package core

import (
	"context"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// MediaConnection is one real-time media connection to a remote participant.
// Every method may block; callers treat each call as a suspension point.
type MediaConnection interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// AddLocalTrack attaches a local track to the underlying PeerConnection.
	AddLocalTrack(webrtc.TrackLocal) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, track RemoteTrack))
	// OnFailed sets a callback for connectivity failure.
	OnFailed(func(error))
	// Close should stop all underlying media resources.
	Close() error
}

// MediaFactory builds a fresh MediaConnection for a participant.
type MediaFactory interface {
	NewConnection(id domain.ParticipantID) (MediaConnection, error)
}

// RemoteTrack is an inbound media track.
type RemoteTrack interface {
	ID() string
	Kind() string
	ReadRTP() (*rtp.Packet, error)
}
