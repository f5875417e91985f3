package orch

import (
	"github.com/dkeye/VoiceMesh/internal/app"
	"github.com/dkeye/VoiceMesh/internal/app/media"
	"github.com/dkeye/VoiceMesh/internal/app/peer"
	"github.com/dkeye/VoiceMesh/internal/domain"
)

// State is a read-only snapshot for the caller layer.
type State struct {
	Connected    bool                 `json:"connected"`
	Self         domain.ParticipantID `json:"self,omitempty"`
	Username     string               `json:"username"`
	VoiceChannel domain.ChannelName   `json:"voice_channel,omitempty"`
	TextChannel  domain.ChannelName   `json:"text_channel,omitempty"`
	Muted        bool                 `json:"muted"`
	Deafened     bool                 `json:"deafened"`
	HasAudio     bool                 `json:"has_audio"`
	Policy       string               `json:"glare_policy"`
	Users        []domain.User        `json:"users"`
	Channels     []app.ChannelInfo    `json:"channels"`
	Links        []peer.LinkSnapshot  `json:"links"`
	Inbound      []media.InboundInfo  `json:"inbound"`
}

func (o *Orchestrator) State() State {
	o.mu.RLock()
	s := State{
		Connected: o.started,
		Self:      o.self,
		Username:  o.username,
		Muted:     o.Source.IsMuted(),
		Deafened:  o.Source.IsDeafened(),
		HasAudio:  o.Source.HasAudio(),
		Policy:    o.cfg.Policy.Name(),
	}
	started := o.started
	o.mu.RUnlock()
	if !started {
		return s
	}
	s.VoiceChannel = o.voice.Current()
	s.TextChannel = o.chat.Current()
	s.Users = o.roster.Snapshot()
	s.Channels = o.directory.List("")
	s.Links = o.links.Snapshot()
	s.Inbound = o.Source.Inbound().Snapshot()
	return s
}

// LinkStatus reports the current or last known state of the link to id.
func (o *Orchestrator) LinkStatus(id domain.ParticipantID) (peer.LinkSnapshot, bool) {
	if !o.isStarted() {
		return peer.LinkSnapshot{}, false
	}
	return o.links.Status(id)
}
