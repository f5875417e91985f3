package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
	pmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// Capturer opens the local audio device.
type Capturer interface {
	Open() (SampleReader, error)
}

// SampleReader yields encoded Opus samples with their duration.
// NextSample returns io.EOF when the device is exhausted.
type SampleReader interface {
	NextSample() (pmedia.Sample, error)
	Close() error
}

// NoDevice is used when no capture device is configured.
type NoDevice struct{}

func (NoDevice) Open() (SampleReader, error) { return nil, domain.ErrNoCaptureDevice }

const opusClockRate = 48000

// OggFileCapturer reads Opus pages from an Ogg file, standing in for a
// microphone on headless hosts.
type OggFileCapturer struct {
	Path string
	Loop bool
}

func (c OggFileCapturer) Open() (SampleReader, error) {
	if c.Path == "" {
		return nil, domain.ErrNoCaptureDevice
	}
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	r, _, err := oggreader.NewWith(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read ogg header: %w", err)
	}
	return &oggSampleReader{path: c.Path, loop: c.Loop, file: f, ogg: r}, nil
}

type oggSampleReader struct {
	path    string
	loop    bool
	file    *os.File
	ogg     *oggreader.OggReader
	granule uint64
}

func (r *oggSampleReader) NextSample() (pmedia.Sample, error) {
	for {
		page, header, err := r.ogg.ParseNextPage()
		if errors.Is(err, io.EOF) && r.loop {
			if err := r.rewind(); err != nil {
				return pmedia.Sample{}, err
			}
			continue
		}
		if err != nil {
			return pmedia.Sample{}, err
		}
		samples := header.GranulePosition - r.granule
		r.granule = header.GranulePosition
		if samples == 0 || len(page) == 0 {
			continue
		}
		return pmedia.Sample{
			Data:     page,
			Duration: time.Duration(samples) * time.Second / opusClockRate,
		}, nil
	}
}

func (r *oggSampleReader) rewind() error {
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	ogg, _, err := oggreader.NewWith(r.file)
	if err != nil {
		return err
	}
	r.ogg = ogg
	r.granule = 0
	return nil
}

func (r *oggSampleReader) Close() error { return r.file.Close() }
