package media

import (
	"context"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// Inbound pumps one remote track into its playback while enabled.
type Inbound struct {
	Src   core.RemoteTrack
	sink  Playback
	state trackState

	cancel context.CancelFunc
	done   chan struct{}
}

func NewInbound(src core.RemoteTrack, sink Playback, enabled bool, cancel context.CancelFunc) *Inbound {
	in := &Inbound{Src: src, sink: sink, cancel: cancel, done: make(chan struct{})}
	in.state.SetEnabled(enabled)
	return in
}

func (in *Inbound) GetState() TrackState    { return in.state.Get() }
func (in *Inbound) Enabled() bool           { return in.state.Enabled() }
func (in *Inbound) SetEnabled(enabled bool) { in.state.SetEnabled(enabled) }

// loop reads RTP packets from the source track and forwards them while enabled.
func (in *Inbound) loop(ctx context.Context, logger *zerolog.Logger) {
	defer func() {
		in.state.MarkDelete()
		if err := in.sink.Close(); err != nil {
			logger.Warn().Err(err).Msg("inbound sink close")
		}
		close(in.done)
	}()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("inbound ctx done")
			return
		default:
		}
		pkt, err := in.Src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("inbound read RTP stopped")
			return
		}
		in.forward(pkt, logger)
	}
}

func (in *Inbound) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	switch in.state.Get() {
	case TrackStateMuted, TrackStateDelete:
		return
	}
	if err := in.sink.WriteRTP(pkt); err != nil {
		logger.Error().Err(err).Msg("inbound write error, dropping track")
		in.state.MarkDelete()
		in.cancel()
	}
}

func (in *Inbound) stop() {
	in.state.MarkDelete()
	in.cancel()
}
