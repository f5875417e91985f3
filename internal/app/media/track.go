package media

import (
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateMuted
	TrackStateDelete
)

func (s TrackState) String() string {
	switch s {
	case TrackStateOk:
		return "ok"
	case TrackStateMuted:
		return "muted"
	case TrackStateDelete:
		return "deleted"
	}
	return "unknown"
}

// trackState is the atomic enabled flag shared by local and inbound tracks.
// Zero value is TrackStateOk.
type trackState struct {
	v atomic.Int32
}

func (s *trackState) Get() TrackState { return TrackState(s.v.Load()) }

// SetEnabled flips between ok and muted; a deleted track stays deleted.
func (s *trackState) SetEnabled(enabled bool) {
	next := TrackStateMuted
	if enabled {
		next = TrackStateOk
	}
	for {
		cur := s.v.Load()
		if TrackState(cur) == TrackStateDelete {
			return
		}
		if s.v.CompareAndSwap(cur, int32(next)) {
			return
		}
	}
}

func (s *trackState) MarkDelete() { s.v.Store(int32(TrackStateDelete)) }

func (s *trackState) Enabled() bool { return s.Get() == TrackStateOk }

// LocalTrack is one captured outbound track. It is attached to every link;
// disabling it drops samples instead of renegotiating.
type LocalTrack struct {
	Track *webrtc.TrackLocalStaticSample
	state trackState
}

func NewLocalTrack(track *webrtc.TrackLocalStaticSample, enabled bool) *LocalTrack {
	lt := &LocalTrack{Track: track}
	lt.state.SetEnabled(enabled)
	return lt
}

func (lt *LocalTrack) GetState() TrackState    { return lt.state.Get() }
func (lt *LocalTrack) Enabled() bool           { return lt.state.Enabled() }
func (lt *LocalTrack) SetEnabled(enabled bool) { lt.state.SetEnabled(enabled) }
func (lt *LocalTrack) MarkDelete()             { lt.state.MarkDelete() }
