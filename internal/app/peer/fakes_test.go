package peer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/webrtc/v4"
)

var errInjected = errors.New("injected")

// fakeConn records media calls in order. failOn makes the named call fail;
// hook runs inside every call before it returns.
type fakeConn struct {
	id domain.ParticipantID

	mu          sync.Mutex
	calls       []string
	applied     []string
	localTracks int
	recvOnly    int
	closed      bool
	failOn      string
	hook        func(call string)

	onICE    func(webrtc.ICECandidateInit)
	onTrack  func(context.Context, core.RemoteTrack)
	onFailed func(error)
}

func (c *fakeConn) record(call string) error {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	hook, fail := c.hook, c.failOn == call
	c.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	if fail {
		return errInjected
	}
	return nil
}

func (c *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	err := c.record("CreateOffer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-" + string(c.id)}, err
}

func (c *fakeConn) CreateAnswer() (webrtc.SessionDescription, error) {
	err := c.record("CreateAnswer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-" + string(c.id)}, err
}

func (c *fakeConn) SetLocalDescription(d webrtc.SessionDescription) error {
	return c.record("SetLocalDescription:" + d.Type.String())
}

func (c *fakeConn) SetRemoteDescription(d webrtc.SessionDescription) error {
	return c.record("SetRemoteDescription:" + d.Type.String())
}

func (c *fakeConn) AddICECandidate(ci webrtc.ICECandidateInit) error {
	if err := c.record("AddICECandidate"); err != nil {
		return err
	}
	c.mu.Lock()
	c.applied = append(c.applied, ci.Candidate)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) AddLocalTrack(webrtc.TrackLocal) error {
	if err := c.record("AddLocalTrack"); err != nil {
		return err
	}
	c.mu.Lock()
	c.localTracks++
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) AddRecvOnlyAudio() error {
	c.mu.Lock()
	c.recvOnly++
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

func (c *fakeConn) OnTrack(fn func(context.Context, core.RemoteTrack)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

func (c *fakeConn) OnFailed(fn func(error)) {
	c.mu.Lock()
	c.onFailed = fn
	c.mu.Unlock()
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) gather(candidate string) {
	c.mu.Lock()
	fn := c.onICE
	c.mu.Unlock()
	if fn != nil {
		fn(webrtc.ICECandidateInit{Candidate: candidate})
	}
}

func (c *fakeConn) failConnectivity() {
	c.mu.Lock()
	fn := c.onFailed
	c.mu.Unlock()
	if fn != nil {
		fn(errInjected)
	}
}

func (c *fakeConn) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeConn) Applied() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.applied...)
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeFactory struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
	setup func(*fakeConn)
}

func (f *fakeFactory) NewConnection(id domain.ParticipantID) (core.MediaConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeConn{id: id}
	if f.setup != nil {
		f.setup(c)
	}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeFactory) Conns() []*fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeConn(nil), f.conns...)
}

func (f *fakeFactory) Last() *fakeConn {
	conns := f.Conns()
	if len(conns) == 0 {
		return nil
	}
	return conns[len(conns)-1]
}

type fakeSender struct {
	mu     sync.Mutex
	events []core.Event
}

func (s *fakeSender) Send(ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Names lists sent event names with their peer, e.g. "SendOffer:b".
func (s *fakeSender) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		switch e := ev.(type) {
		case *core.SendOffer:
			out = append(out, fmt.Sprintf("SendOffer:%s", e.Peer))
		case *core.SendAnswer:
			out = append(out, fmt.Sprintf("SendAnswer:%s", e.Peer))
		case *core.SendIceCandidate:
			out = append(out, fmt.Sprintf("SendIceCandidate:%s:%s", e.Peer, e.Candidate.Candidate))
		default:
			out = append(out, ev.EventName())
		}
	}
	return out
}

type staticTracks []webrtc.TrackLocal

func (t staticTracks) Tracks() []webrtc.TrackLocal { return t }

type fakeInbound struct {
	mu       sync.Mutex
	detached []domain.ParticipantID
}

func (f *fakeInbound) Attach(context.Context, domain.ParticipantID, core.RemoteTrack) {}

func (f *fakeInbound) Detach(id domain.ParticipantID) {
	f.mu.Lock()
	f.detached = append(f.detached, id)
	f.mu.Unlock()
}

func (f *fakeInbound) Detached() []domain.ParticipantID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ParticipantID(nil), f.detached...)
}
