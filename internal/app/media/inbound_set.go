package media

import (
	"context"
	"sort"
	"sync"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

// InboundSet owns every inbound audio track of every live link.
type InboundSet struct {
	playback PlaybackFactory

	mu      sync.RWMutex
	enabled bool
	tracks  map[domain.ParticipantID]map[string]*Inbound
}

func NewInboundSet(playback PlaybackFactory) *InboundSet {
	if playback == nil {
		playback = &Discard{}
	}
	return &InboundSet{
		playback: playback,
		enabled:  true,
		tracks:   make(map[domain.ParticipantID]map[string]*Inbound),
	}
}

// Attach starts pumping an inbound track of id. The track starts enabled
// unless the set is deafened.
func (s *InboundSet) Attach(ctx context.Context, id domain.ParticipantID, track core.RemoteTrack) {
	logger := log.With().
		Str("module", "media.inbound").
		Str("peer", string(id)).
		Str("track_id", track.ID()).
		Logger()

	if track.Kind() != "audio" {
		logger.Info().Str("kind", track.Kind()).Msg("ignoring non-audio track")
		return
	}
	sink, err := s.playback.Open(id, track.ID())
	if err != nil {
		logger.Error().Err(err).Msg("open playback")
		return
	}

	trackCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	in := NewInbound(track, sink, s.enabled, cancel)
	byTrack, ok := s.tracks[id]
	if !ok {
		byTrack = make(map[string]*Inbound)
		s.tracks[id] = byTrack
	}
	if old, ok := byTrack[track.ID()]; ok {
		logger.Info().Msg("replacing existing inbound track")
		old.stop()
	}
	byTrack[track.ID()] = in
	s.mu.Unlock()

	logger.Info().Bool("enabled", in.Enabled()).Msg("starting inbound loop")
	go in.loop(trackCtx, &logger)
}

// Detach stops every inbound track of id.
func (s *InboundSet) Detach(id domain.ParticipantID) {
	s.mu.Lock()
	byTrack, ok := s.tracks[id]
	delete(s.tracks, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	for _, in := range byTrack {
		in.stop()
	}
}

// SetEnabled toggles every current and future inbound track.
func (s *InboundSet) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	for _, byTrack := range s.tracks {
		for _, in := range byTrack {
			in.SetEnabled(enabled)
		}
	}
}

func (s *InboundSet) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

type InboundInfo struct {
	Peer    domain.ParticipantID `json:"peer"`
	TrackID string               `json:"track_id"`
	State   string               `json:"state"`
}

func (s *InboundSet) Snapshot() []InboundInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InboundInfo, 0, len(s.tracks))
	for id, byTrack := range s.tracks {
		for trackID, in := range byTrack {
			out = append(out, InboundInfo{Peer: id, TrackID: trackID, State: in.GetState().String()})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Peer != out[j].Peer {
			return out[i].Peer < out[j].Peer
		}
		return out[i].TrackID < out[j].TrackID
	})
	return out
}
