package orch

import (
	"errors"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

// onOffer accepts offers only while we are in voice; anything else is a
// leftover from a channel we already left.
func (o *Orchestrator) onOffer(e *core.ReceiveOffer) {
	err := o.voice.InVoice(func(domain.ChannelName) error {
		return o.links.HandleRemoteOffer(e.Peer, e.SDP)
	})
	if errors.Is(err, domain.ErrNotInVoice) {
		log.Warn().
			Str("module", "orch").
			Str("peer", string(e.Peer)).
			Err(err).
			Msg("offer dropped")
	}
}

// SetMuted toggles outbound audio on every link without renegotiating.
func (o *Orchestrator) SetMuted(muted bool) { o.Source.SetMuted(muted) }

// SetDeafened toggles inbound audio on every link; deafening also mutes.
func (o *Orchestrator) SetDeafened(deafened bool) { o.Source.SetDeafened(deafened) }

func (o *Orchestrator) ToggleMute() bool {
	muted := !o.Source.IsMuted()
	o.Source.SetMuted(muted)
	return muted
}

func (o *Orchestrator) ToggleDeafen() bool {
	deafened := !o.Source.IsDeafened()
	o.Source.SetDeafened(deafened)
	return deafened
}
