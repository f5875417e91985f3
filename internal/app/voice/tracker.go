package voice

import (
	"fmt"
	"sync"

	"github.com/dkeye/VoiceMesh/internal/app"
	"github.com/dkeye/VoiceMesh/internal/app/peer"
	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

// Links is the part of the peer manager the tracker drives.
type Links interface {
	EnsureLink(id domain.ParticipantID, initiator bool) (peer.LinkSnapshot, error)
	RemoveLink(id domain.ParticipantID)
	CloseAll()
}

type Deps struct {
	Self      domain.ParticipantID
	Sender    core.Sender
	Roster    *app.Roster
	Directory *app.Directory
	Links     Links
	Policy    peer.Policy
}

// Tracker keeps local voice membership in line with the relay's roster and
// asks the manager for the links that membership implies.
type Tracker struct {
	self      domain.ParticipantID
	sender    core.Sender
	roster    *app.Roster
	directory *app.Directory
	links     Links
	policy    peer.Policy

	// opMu serializes membership changes end to end, including their
	// signaling and link calls. mu only guards current for readers.
	opMu    sync.Mutex
	mu      sync.Mutex
	current domain.ChannelName
}

func NewTracker(d Deps) *Tracker {
	if d.Policy == nil {
		d.Policy = peer.LowerID{}
	}
	return &Tracker{
		self:      d.Self,
		sender:    d.Sender,
		roster:    d.Roster,
		directory: d.Directory,
		links:     d.Links,
		policy:    d.Policy,
	}
}

// Current returns the joined voice channel, or "" when not in voice.
func (t *Tracker) Current() domain.ChannelName {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *Tracker) setCurrent(ch domain.ChannelName) {
	t.mu.Lock()
	t.current = ch
	t.mu.Unlock()
}

// InVoice runs fn with the current channel while no membership change can
// interleave. Outside voice it returns ErrNotInVoice without calling fn.
func (t *Tracker) InVoice(fn func(domain.ChannelName) error) error {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	cur := t.Current()
	if cur == "" {
		return domain.ErrNotInVoice
	}
	return fn(cur)
}

// Join enters a voice channel. Joining the current channel is a no-op;
// joining another one leaves the current first.
func (t *Tracker) Join(raw string) (domain.ChannelName, error) {
	name, err := t.directory.Validate(raw, domain.ChannelVoice)
	if err != nil {
		return "", err
	}

	t.opMu.Lock()
	defer t.opMu.Unlock()

	if cur := t.Current(); cur == name {
		return name, nil
	} else if cur != "" {
		if err := t.leaveLocked(); err != nil {
			log.Warn().Err(err).Str("module", "voice").Str("channel", string(cur)).Msg("leave before join")
		}
	}

	t.setCurrent(name)
	if err := t.sender.Send(&core.JoinVoiceChannel{Channel: name}); err != nil {
		t.setCurrent("")
		return "", fmt.Errorf("join voice: %w", err)
	}
	log.Info().Str("module", "voice").Str("channel", string(name)).Msg("joined voice")

	for _, u := range t.roster.MembersOf(name) {
		if u.ID == t.self {
			continue
		}
		initiator := t.policy.InitiateOnJoin(t.self, u.ID)
		if _, err := t.links.EnsureLink(u.ID, initiator); err != nil {
			log.Warn().Err(err).Str("module", "voice").Str("peer", string(u.ID)).Msg("ensure link")
		}
	}
	return name, nil
}

// Leave exits the current voice channel and closes every link.
func (t *Tracker) Leave() error {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	return t.leaveLocked()
}

// leaveLocked is Leave for callers holding opMu.
func (t *Tracker) leaveLocked() error {
	ch := t.Current()
	t.setCurrent("")
	if ch == "" {
		return nil
	}

	err := t.sender.Send(&core.LeaveVoiceChannel{Channel: ch})
	t.links.CloseAll()
	log.Info().Str("module", "voice").Str("channel", string(ch)).Msg("left voice")
	if err != nil {
		return fmt.Errorf("leave voice: %w", err)
	}
	return nil
}

// Reset drops membership without signaling, used after the relay is gone.
func (t *Tracker) Reset() {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	t.setCurrent("")
	t.links.CloseAll()
}

func (t *Tracker) OnUserJoinedVoice(id domain.ParticipantID, ch domain.ChannelName) {
	if id == t.self {
		return
	}
	t.opMu.Lock()
	defer t.opMu.Unlock()

	prev, _ := t.roster.Get(id)
	t.roster.SetVoice(id, ch)

	cur := t.Current()
	if cur == "" {
		return
	}
	if ch != cur {
		// moved away from our channel
		if prev.InVoice && prev.VoiceChannel == cur {
			t.links.RemoveLink(id)
		}
		return
	}
	if !t.policy.InitiateOnRemoteJoin(t.self, id) {
		return
	}
	if _, err := t.links.EnsureLink(id, true); err != nil {
		log.Warn().Err(err).Str("module", "voice").Str("peer", string(id)).Msg("ensure link")
	}
}

func (t *Tracker) OnUserLeftVoice(id domain.ParticipantID) {
	if id == t.self {
		return
	}
	t.opMu.Lock()
	defer t.opMu.Unlock()
	t.roster.ClearVoice(id)
	t.links.RemoveLink(id)
}

func (t *Tracker) OnUserJoined(id domain.ParticipantID, name string) {
	t.roster.Upsert(id, name)
}

func (t *Tracker) OnUserLeft(id domain.ParticipantID) {
	if id == t.self {
		return
	}
	t.opMu.Lock()
	defer t.opMu.Unlock()
	t.roster.Remove(id)
	t.links.RemoveLink(id)
}
