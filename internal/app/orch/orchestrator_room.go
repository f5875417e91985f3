package orch

import (
	"fmt"

	"github.com/dkeye/VoiceMesh/internal/app"
	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) JoinVoice(channel string) (domain.ChannelName, error) {
	if !o.isStarted() {
		return "", ErrNotConnected
	}
	return o.voice.Join(channel)
}

func (o *Orchestrator) LeaveVoice() error {
	if !o.isStarted() {
		return ErrNotConnected
	}
	return o.voice.Leave()
}

// Rename announces a new display name for the local participant.
func (o *Orchestrator) Rename(name string) (string, error) {
	name, err := domain.ValidateUsername(name)
	if err != nil {
		return "", err
	}
	if !o.isStarted() {
		return "", ErrNotConnected
	}
	if err := o.Transport.Send(&core.SetUsername{ID: o.self, Name: name}); err != nil {
		return "", fmt.Errorf("rename: %w", err)
	}
	o.mu.Lock()
	o.username = name
	o.mu.Unlock()
	log.Info().Str("module", "orch").Str("username", name).Msg("username changed")
	return name, nil
}

func (o *Orchestrator) CreateChannel(name string, kind domain.ChannelKind) (domain.ChannelName, error) {
	if !o.isStarted() {
		return "", ErrNotConnected
	}
	return o.directory.Create(name, kind)
}

func (o *Orchestrator) SelectChannel(name string) (domain.ChannelName, error) {
	if !o.isStarted() {
		return "", ErrNotConnected
	}
	return o.chat.Select(name)
}

func (o *Orchestrator) SendMessage(text string) error {
	if !o.isStarted() {
		return ErrNotConnected
	}
	return o.chat.Send(text)
}

func (o *Orchestrator) Messages(channel domain.ChannelName) []app.Message {
	if !o.isStarted() {
		return nil
	}
	return o.chat.Messages(channel)
}
