package app

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

// ChannelInfo is one known channel.
type ChannelInfo struct {
	Name domain.ChannelName `json:"name"`
	Kind domain.ChannelKind `json:"kind"`
}

// Directory tracks the text and voice channels announced by the relay.
type Directory struct {
	sender core.Sender

	mu       sync.RWMutex
	channels map[domain.ChannelName]domain.ChannelKind
}

func NewDirectory(sender core.Sender) *Directory {
	return &Directory{
		sender: sender,
		channels: map[domain.ChannelName]domain.ChannelKind{
			domain.DefaultTextChannel:  domain.ChannelText,
			domain.DefaultVoiceChannel: domain.ChannelVoice,
		},
	}
}

func (d *Directory) Normalize(raw string) (domain.ChannelName, error) {
	return domain.NormalizeChannelName(raw)
}

// Validate normalizes raw and rejects a name already known as the other kind.
// Unknown names pass, the relay list may lag behind.
func (d *Directory) Validate(raw string, kind domain.ChannelKind) (domain.ChannelName, error) {
	name, err := d.Normalize(raw)
	if err != nil {
		return "", err
	}
	d.mu.RLock()
	known, ok := d.channels[name]
	d.mu.RUnlock()
	if ok && known != kind {
		return "", fmt.Errorf("%w: %q is a %s channel", domain.ErrChannelKindClash, name, known)
	}
	return name, nil
}

// Add records a channel announced by the relay.
func (d *Directory) Add(name domain.ChannelName, kind domain.ChannelKind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.channels[name]; ok {
		return false
	}
	d.channels[name] = kind
	log.Info().Str("module", "app.directory").Str("channel", string(name)).Str("kind", string(kind)).Msg("channel added")
	return true
}

func (d *Directory) Has(name domain.ChannelName) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.channels[name]
	return ok
}

// List returns channels of kind, or all channels when kind is empty.
func (d *Directory) List(kind domain.ChannelKind) []ChannelInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]ChannelInfo, 0, len(d.channels))
	for name, k := range d.channels {
		if kind == "" || k == kind {
			out = append(out, ChannelInfo{Name: name, Kind: k})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Create asks the relay for a new channel. The directory learns about it
// from the ChannelCreated broadcast.
func (d *Directory) Create(raw string, kind domain.ChannelKind) (domain.ChannelName, error) {
	name, err := d.Normalize(raw)
	if err != nil {
		return "", err
	}
	if d.Has(name) {
		return name, nil
	}
	if err := d.sender.Send(&core.CreateChannel{Name: name, Kind: kind}); err != nil {
		return "", fmt.Errorf("create channel: %w", err)
	}
	return name, nil
}
