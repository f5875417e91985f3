package rtc

import (
	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Factory builds one pion PeerConnection per remote participant, all sharing
// the same STUN-only configuration.
type Factory struct {
	API    *webrtc.API
	Config webrtc.Configuration
}

var _ core.MediaFactory = (*Factory)(nil)

func NewFactory(stunURL string) *Factory {
	return &Factory{Config: DefaultWebRTCConfig(stunURL)}
}

func (f *Factory) NewConnection(id domain.ParticipantID) (core.MediaConnection, error) {
	return NewWebRTCConnection(f.API, f.Config, id)
}
