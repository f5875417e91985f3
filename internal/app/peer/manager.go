package peer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// TrackSource provides the local tracks every new link carries.
type TrackSource interface {
	Tracks() []webrtc.TrackLocal
}

// InboundSink receives the remote tracks of each link.
type InboundSink interface {
	Attach(ctx context.Context, id domain.ParticipantID, track core.RemoteTrack)
	Detach(id domain.ParticipantID)
}

type recvOnly interface {
	AddRecvOnlyAudio() error
}

type Options struct {
	Self               domain.ParticipantID
	Factory            core.MediaFactory
	Signal             core.Sender
	Tracks             TrackSource
	Inbound            InboundSink
	Policy             Policy
	NegotiationTimeout time.Duration
}

// Manager owns every link of the session. It is the only place links are
// created or destroyed; at most one live link exists per participant.
type Manager struct {
	self    domain.ParticipantID
	factory core.MediaFactory
	signal  core.Sender
	tracks  TrackSource
	inbound InboundSink
	policy  Policy
	timeout time.Duration

	mu     sync.RWMutex
	links  map[domain.ParticipantID]*Link
	status map[domain.ParticipantID]LinkSnapshot
}

func NewManager(opts Options) *Manager {
	if opts.Policy == nil {
		opts.Policy = LowerID{}
	}
	return &Manager{
		self:    opts.Self,
		factory: opts.Factory,
		signal:  opts.Signal,
		tracks:  opts.Tracks,
		inbound: opts.Inbound,
		policy:  opts.Policy,
		timeout: opts.NegotiationTimeout,
		links:   make(map[domain.ParticipantID]*Link),
		status:  make(map[domain.ParticipantID]LinkSnapshot),
	}
}

func (m *Manager) Self() domain.ParticipantID { return m.self }
func (m *Manager) Policy() Policy             { return m.policy }

// EnsureLink returns the live link for id, creating it when absent. A new
// initiator link sends its offer before EnsureLink returns.
func (m *Manager) EnsureLink(id domain.ParticipantID, initiator bool) (LinkSnapshot, error) {
	if id == m.self {
		log.Warn().Str("module", "peer.manager").Str("peer", string(id)).Msg("refusing link to self")
		return LinkSnapshot{}, domain.ErrSelfLink
	}

	m.mu.Lock()
	if l, ok := m.links[id]; ok && !l.State().Terminal() {
		m.mu.Unlock()
		return l.Snapshot(), nil
	}
	role := core.RoleResponder
	if initiator {
		role = core.RoleInitiator
	}
	l, err := m.buildLocked(id, role)
	m.mu.Unlock()
	if err != nil {
		return LinkSnapshot{}, err
	}

	log.Info().Str("module", "peer.manager").Str("peer", string(id)).Str("role", role.String()).Msg("link created")
	if initiator {
		if err := l.offer(); err != nil && !errors.Is(err, errLinkGone) {
			log.Error().Err(err).Str("module", "peer.manager").Str("peer", string(id)).Msg("offer failed")
		}
	}
	return l.Snapshot(), nil
}

// buildLocked creates a New link with local tracks attached. Caller holds mu.
func (m *Manager) buildLocked(id domain.ParticipantID, role core.Role) (*Link, error) {
	conn, err := m.factory.NewConnection(id)
	if err != nil {
		nerr := &NegotiationError{Op: "create connection", Peer: id, Err: err}
		m.status[id] = LinkSnapshot{Peer: id, Role: role, State: core.StateFailed, CreatedAt: time.Now(), Error: nerr.Error()}
		log.Error().Err(nerr).Str("module", "peer.manager").Msg("link construction failed")
		return nil, nerr
	}

	l := newLink(id, role, conn, m.signal, m.onTerminal)
	if err := m.attachLocal(conn); err != nil {
		nerr := &NegotiationError{Op: "attach local tracks", Peer: id, Err: err}
		_ = conn.Close()
		m.status[id] = LinkSnapshot{Peer: id, Role: role, State: core.StateFailed, CreatedAt: l.createdAt, Error: nerr.Error()}
		log.Error().Err(nerr).Str("module", "peer.manager").Msg("link construction failed")
		return nil, nerr
	}
	if m.inbound != nil {
		conn.OnTrack(func(ctx context.Context, track core.RemoteTrack) {
			if l.State().Terminal() {
				return
			}
			m.inbound.Attach(ctx, id, track)
		})
	}
	l.bind(m.timeout)

	m.links[id] = l
	m.status[id] = l.Snapshot()
	return l, nil
}

// attachLocal adds every local track; with none, it still asks for an audio
// section so the peer's audio can be received.
func (m *Manager) attachLocal(conn core.MediaConnection) error {
	var tracks []webrtc.TrackLocal
	if m.tracks != nil {
		tracks = m.tracks.Tracks()
	}
	for _, t := range tracks {
		if err := conn.AddLocalTrack(t); err != nil {
			return err
		}
	}
	if len(tracks) == 0 {
		if r, ok := conn.(recvOnly); ok {
			return r.AddRecvOnlyAudio()
		}
	}
	return nil
}

// onTerminal discards a link that failed on its own.
func (m *Manager) onTerminal(l *Link) {
	m.mu.Lock()
	current := m.links[l.id] == l
	if current {
		delete(m.links, l.id)
	}
	m.status[l.id] = l.Snapshot()
	m.mu.Unlock()

	if current && m.inbound != nil {
		m.inbound.Detach(l.id)
	}
	log.Warn().Str("module", "peer.manager").Str("peer", string(l.id)).Err(l.Err()).Msg("link discarded")
}

// HandleRemoteOffer feeds a remote offer to the link of id, creating a
// responder link when absent.
func (m *Manager) HandleRemoteOffer(id domain.ParticipantID, sdp string) error {
	if id == m.self {
		return domain.ErrSelfLink
	}
	logger := log.With().Str("module", "peer.manager").Str("peer", string(id)).Logger()

	if l := m.Link(id); l != nil && l.Role() == core.RoleInitiator && l.negotiating() {
		switch m.policy.OnGlare(m.self, id) {
		case YieldToOffer:
			logger.Info().Msg("offer collision, yielding to remote offer")
			m.RemoveLink(id)
		default:
			logger.Info().Msg("offer collision, keeping local offer")
			return fmt.Errorf("%w: offer collision with %s", domain.ErrStaleSignal, id)
		}
	}

	if _, err := m.EnsureLink(id, false); err != nil {
		return err
	}
	l := m.Link(id)
	if l == nil {
		return fmt.Errorf("%w: link to %s gone", domain.ErrStaleSignal, id)
	}
	if err := l.acceptOffer(sdp); err != nil {
		if !errors.Is(err, errLinkGone) {
			logger.Warn().Err(err).Msg("offer not applied")
		}
		return err
	}
	return nil
}

func (m *Manager) HandleRemoteAnswer(id domain.ParticipantID, sdp string) error {
	l := m.Link(id)
	if l == nil {
		log.Warn().Str("module", "peer.manager").Str("peer", string(id)).Msg("answer for unknown link dropped")
		return fmt.Errorf("%w: answer from %s", domain.ErrStaleSignal, id)
	}
	if err := l.applyAnswer(sdp); err != nil {
		if !errors.Is(err, errLinkGone) {
			log.Warn().Err(err).Str("module", "peer.manager").Str("peer", string(id)).Msg("answer not applied")
		}
		return err
	}
	return nil
}

func (m *Manager) HandleRemoteICE(id domain.ParticipantID, c webrtc.ICECandidateInit) error {
	l := m.Link(id)
	if l == nil {
		log.Debug().Str("module", "peer.manager").Str("peer", string(id)).Msg("candidate for unknown link dropped")
		return fmt.Errorf("%w: candidate from %s", domain.ErrStaleSignal, id)
	}
	return l.addRemoteCandidate(c)
}

// RemoveLink closes and discards the link of id. No-op when absent.
func (m *Manager) RemoveLink(id domain.ParticipantID) {
	m.mu.Lock()
	l, ok := m.links[id]
	delete(m.links, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	l.Close()
	m.mu.Lock()
	m.status[id] = l.Snapshot()
	m.mu.Unlock()
	if m.inbound != nil {
		m.inbound.Detach(id)
	}
	log.Info().Str("module", "peer.manager").Str("peer", string(id)).Msg("link removed")
}

// CloseAll closes every live link in parallel.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	links := make([]*Link, 0, len(m.links))
	for _, l := range m.links {
		links = append(links, l)
	}
	m.links = make(map[domain.ParticipantID]*Link)
	m.mu.Unlock()

	var wg conc.WaitGroup
	for _, l := range links {
		l := l
		wg.Go(func() {
			l.Close()
			if m.inbound != nil {
				m.inbound.Detach(l.id)
			}
		})
	}
	wg.Wait()

	m.mu.Lock()
	for _, l := range links {
		m.status[l.id] = l.Snapshot()
	}
	m.mu.Unlock()
	log.Info().Str("module", "peer.manager").Int("count", len(links)).Msg("closed all links")
}

// Link returns the live link of id, or nil.
func (m *Manager) Link(id domain.ParticipantID) *Link {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.links[id]
}

// Len is the number of live links.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links)
}

// Snapshot lists live links ordered by peer id.
func (m *Manager) Snapshot() []LinkSnapshot {
	m.mu.RLock()
	links := make([]*Link, 0, len(m.links))
	for _, l := range m.links {
		links = append(links, l)
	}
	m.mu.RUnlock()

	out := make([]LinkSnapshot, 0, len(links))
	for _, l := range links {
		out = append(out, l.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Peer < out[j].Peer })
	return out
}

// Status returns the live link view of id, or the last one recorded,
// including terminal links.
func (m *Manager) Status(id domain.ParticipantID) (LinkSnapshot, bool) {
	m.mu.RLock()
	l, live := m.links[id]
	s, ok := m.status[id]
	m.mu.RUnlock()
	if live {
		return l.Snapshot(), true
	}
	return s, ok
}
