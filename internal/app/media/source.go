package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Source owns local audio capture and the mute/deafen flags.
// Links only read its tracks; mute and deafen are changed by the caller layer.
type Source struct {
	capturer Capturer
	inbound  *InboundSet

	mu       sync.RWMutex
	tracks   []*LocalTrack
	muted    bool
	deafened bool
	reader   SampleReader
	cancel   context.CancelFunc
}

func NewSource(capturer Capturer, inbound *InboundSet) *Source {
	if capturer == nil {
		capturer = NoDevice{}
	}
	if inbound == nil {
		inbound = NewInboundSet(nil)
	}
	return &Source{capturer: capturer, inbound: inbound}
}

// Acquire opens the capture device and creates the outbound Opus track.
// On failure the session continues receive-only.
func (s *Source) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tracks) > 0 {
		return nil
	}

	reader, err := s.capturer.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMediaAcquisition, err)
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: opusClockRate, Channels: 2},
		"audio-"+uuid.NewString(),
		"voicemesh-"+uuid.NewString(),
	)
	if err != nil {
		_ = reader.Close()
		return fmt.Errorf("%w: %v", domain.ErrMediaAcquisition, err)
	}

	lt := NewLocalTrack(track, !s.muted)
	s.tracks = append(s.tracks, lt)
	s.reader = reader

	pumpCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.pump(pumpCtx, reader, lt)

	log.Info().Str("module", "media.source").Str("track_id", track.ID()).Bool("muted", s.muted).Msg("local audio acquired")
	return nil
}

// pump paces samples into the track; disabled tracks drop them.
func (s *Source) pump(ctx context.Context, reader SampleReader, lt *LocalTrack) {
	logger := log.With().Str("module", "media.source").Str("track_id", lt.Track.ID()).Logger()
	for {
		sample, err := reader.NextSample()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Error().Err(err).Msg("capture read error")
			} else {
				logger.Info().Msg("capture exhausted")
			}
			return
		}
		if lt.Enabled() {
			if err := lt.Track.WriteSample(sample); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				logger.Warn().Err(err).Msg("write sample")
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sample.Duration):
		}
	}
}

// Release stops capture. Tracks stay attached but carry nothing.
func (s *Source) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.reader != nil {
		_ = s.reader.Close()
		s.reader = nil
	}
	for _, lt := range s.tracks {
		lt.MarkDelete()
	}
}

// Tracks returns the local tracks to attach to a new link.
func (s *Source) Tracks() []webrtc.TrackLocal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]webrtc.TrackLocal, 0, len(s.tracks))
	for _, lt := range s.tracks {
		if lt.GetState() == TrackStateDelete {
			continue
		}
		out = append(out, lt.Track)
	}
	return out
}

func (s *Source) LocalTracks() []*LocalTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*LocalTrack(nil), s.tracks...)
}

func (s *Source) Inbound() *InboundSet { return s.inbound }

// SetMuted toggles every local track, including the ones already attached to
// live links. No renegotiation happens.
func (s *Source) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setMutedLocked(muted)
}

func (s *Source) setMutedLocked(muted bool) {
	s.muted = muted
	for _, lt := range s.tracks {
		lt.SetEnabled(!muted)
	}
	log.Info().Str("module", "media.source").Bool("muted", muted).Msg("mute changed")
}

// SetDeafened toggles every inbound track. Deafening also mutes; undeafening
// leaves the mute flag alone.
func (s *Source) SetDeafened(deafened bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deafened = deafened
	s.inbound.SetEnabled(!deafened)
	if deafened && !s.muted {
		s.setMutedLocked(true)
	}
	log.Info().Str("module", "media.source").Bool("deafened", deafened).Msg("deafen changed")
}

func (s *Source) IsMuted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.muted
}

func (s *Source) IsDeafened() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deafened
}

// HasAudio reports whether local capture was acquired.
func (s *Source) HasAudio() bool {
	return len(s.Tracks()) > 0
}
