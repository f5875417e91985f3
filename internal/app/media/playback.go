package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// Playback consumes inbound RTP of one remote track.
type Playback interface {
	WriteRTP(*rtp.Packet) error
	Close() error
}

// PlaybackFactory opens a Playback for a remote participant's track.
type PlaybackFactory interface {
	Open(id domain.ParticipantID, trackID string) (Playback, error)
}

// Discard counts packets and drops them.
type Discard struct {
	packets atomic.Int64
}

func (d *Discard) Open(domain.ParticipantID, string) (Playback, error) { return d, nil }
func (d *Discard) Close() error                                        { return nil }
func (d *Discard) Packets() int64                                      { return d.packets.Load() }

func (d *Discard) WriteRTP(*rtp.Packet) error {
	d.packets.Add(1)
	return nil
}

// OggRecorder writes every inbound audio track into <Dir>/<peer>-<track>.ogg.
type OggRecorder struct {
	Dir string
}

func (r OggRecorder) Open(id domain.ParticipantID, trackID string) (Playback, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return nil, err
	}
	name := filepath.Join(r.Dir, fmt.Sprintf("%s-%s.ogg", sanitize(string(id)), sanitize(trackID)))
	w, err := oggwriter.New(name, opusClockRate, 2)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	return w, nil
}

func sanitize(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
