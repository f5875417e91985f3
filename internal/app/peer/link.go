package peer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// errLinkGone aborts a step whose link was closed while the media layer was busy.
var errLinkGone = errors.New("link closed during negotiation")

// NegotiationError is a failed step of a single link.
type NegotiationError struct {
	Op   string
	Peer domain.ParticipantID
	Err  error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("%s with %s: %v", e.Op, e.Peer, e.Err)
}

func (e *NegotiationError) Unwrap() []error {
	return []error{domain.ErrNegotiation, e.Err}
}

// LinkSnapshot is a read-only view of a link.
type LinkSnapshot struct {
	Peer              domain.ParticipantID  `json:"peer"`
	Role              core.Role             `json:"role"`
	State             core.NegotiationState `json:"state"`
	PendingCandidates int                   `json:"pending_candidates"`
	CreatedAt         time.Time             `json:"created_at"`
	Error             string                `json:"error,omitempty"`
}

// Link is the negotiation state machine of one remote participant.
//
// stepMu serializes negotiation steps and remote candidate application, so a
// candidate is never applied in the middle of a description change. mu guards
// the fields below it and is never held across a media call. Close takes only
// mu, which lets teardown interrupt a step; every step re-checks the state
// after each media call.
type Link struct {
	id     domain.ParticipantID
	role   core.Role
	conn   core.MediaConnection
	signal core.Sender
	logger zerolog.Logger

	stepMu sync.Mutex

	mu           sync.Mutex
	state        core.NegotiationState
	remoteSet    bool
	announced    bool
	pending      []webrtc.ICECandidateInit
	localPending []webrtc.ICECandidateInit
	err          error
	timer        *time.Timer
	createdAt    time.Time
	onTerminal   func(*Link)
}

func newLink(
	id domain.ParticipantID,
	role core.Role,
	conn core.MediaConnection,
	signal core.Sender,
	onTerminal func(*Link),
) *Link {
	return &Link{
		id:         id,
		role:       role,
		conn:       conn,
		signal:     signal,
		state:      core.StateNew,
		createdAt:  time.Now(),
		onTerminal: onTerminal,
		logger: log.With().
			Str("module", "peer.link").
			Str("peer", string(id)).
			Str("role", role.String()).
			Logger(),
	}
}

// bind wires media callbacks and arms the negotiation timeout.
func (l *Link) bind(timeout time.Duration) {
	l.conn.OnICECandidate(l.onLocalCandidate)
	l.conn.OnFailed(func(err error) {
		l.fail("connectivity", err)
	})
	if timeout > 0 {
		l.mu.Lock()
		l.timer = time.AfterFunc(timeout, l.expire)
		l.mu.Unlock()
	}
}

func (l *Link) ID() domain.ParticipantID { return l.id }
func (l *Link) Role() core.Role          { return l.role }

func (l *Link) State() core.NegotiationState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Link) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Link) Snapshot() LinkSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Link) snapshotLocked() LinkSnapshot {
	s := LinkSnapshot{
		Peer:              l.id,
		Role:              l.role,
		State:             l.state,
		PendingCandidates: len(l.pending),
		CreatedAt:         l.createdAt,
	}
	if l.err != nil {
		s.Error = l.err.Error()
	}
	return s
}

// negotiating reports whether an initiator link still waits for its answer.
func (l *Link) negotiating() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case core.StateNew, core.StateOfferPending, core.StateAwaitingAnswer:
		return true
	}
	return false
}

// advance moves to next if the link is still in from.
func (l *Link) advance(from, next core.NegotiationState) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != from {
		if l.state.Terminal() {
			return errLinkGone
		}
		return fmt.Errorf("%w: state %s, expected %s", domain.ErrStaleSignal, l.state, from)
	}
	l.state = next
	if next == core.StateConnected && l.timer != nil {
		l.timer.Stop()
	}
	l.logger.Debug().Str("from", from.String()).Str("to", next.String()).Msg("state change")
	return nil
}

func (l *Link) alive() error {
	if l.State().Terminal() {
		return errLinkGone
	}
	return nil
}

// step runs one media call and fails the link on error. errLinkGone is
// returned untouched when the link was torn down meanwhile.
func (l *Link) step(op string, fn func() error) error {
	if err := fn(); err != nil {
		if aerr := l.alive(); aerr != nil {
			return aerr
		}
		return l.fail(op, err)
	}
	return l.alive()
}

// offer runs New -> OfferPending -> AwaitingAnswer and sends SendOffer.
func (l *Link) offer() error {
	l.stepMu.Lock()
	defer l.stepMu.Unlock()

	if err := l.advance(core.StateNew, core.StateOfferPending); err != nil {
		return err
	}
	var desc webrtc.SessionDescription
	if err := l.step("create offer", func() (err error) {
		desc, err = l.conn.CreateOffer()
		return err
	}); err != nil {
		return err
	}
	if err := l.step("set local offer", func() error {
		return l.conn.SetLocalDescription(desc)
	}); err != nil {
		return err
	}
	if err := l.advance(core.StateOfferPending, core.StateAwaitingAnswer); err != nil {
		return err
	}
	if err := l.signal.Send(&core.SendOffer{SDP: desc.SDP, Peer: l.id}); err != nil {
		return l.fail("send offer", err)
	}
	l.logger.Info().Msg("offer sent")
	l.announce()
	return nil
}

// acceptOffer runs New -> AwaitingLocalAnswer -> Connected and sends SendAnswer.
func (l *Link) acceptOffer(sdp string) error {
	l.stepMu.Lock()
	defer l.stepMu.Unlock()

	if err := l.alive(); err != nil {
		return err
	}
	if st := l.State(); st != core.StateNew {
		return fmt.Errorf("%w: offer in state %s", domain.ErrStaleSignal, st)
	}
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := l.step("set remote offer", func() error {
		return l.conn.SetRemoteDescription(offer)
	}); err != nil {
		return err
	}
	if err := l.advance(core.StateNew, core.StateAwaitingLocalAnswer); err != nil {
		return err
	}
	l.flushRemote()

	var answer webrtc.SessionDescription
	if err := l.step("create answer", func() (err error) {
		answer, err = l.conn.CreateAnswer()
		return err
	}); err != nil {
		return err
	}
	if err := l.step("set local answer", func() error {
		return l.conn.SetLocalDescription(answer)
	}); err != nil {
		return err
	}
	if err := l.advance(core.StateAwaitingLocalAnswer, core.StateConnected); err != nil {
		return err
	}
	if err := l.signal.Send(&core.SendAnswer{SDP: answer.SDP, Peer: l.id}); err != nil {
		return l.fail("send answer", err)
	}
	l.logger.Info().Msg("answer sent")
	l.announce()
	return nil
}

// applyAnswer runs AwaitingAnswer -> Connected.
func (l *Link) applyAnswer(sdp string) error {
	l.stepMu.Lock()
	defer l.stepMu.Unlock()

	if err := l.alive(); err != nil {
		return err
	}
	if st := l.State(); l.role != core.RoleInitiator || st != core.StateAwaitingAnswer {
		return fmt.Errorf("%w: answer in state %s", domain.ErrStaleSignal, st)
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := l.step("set remote answer", func() error {
		return l.conn.SetRemoteDescription(answer)
	}); err != nil {
		return err
	}
	if err := l.advance(core.StateAwaitingAnswer, core.StateConnected); err != nil {
		return err
	}
	l.flushRemote()
	l.logger.Info().Msg("answer applied")
	return nil
}

// addRemoteCandidate applies c now or buffers it until the remote
// description is set. Apply errors are logged only.
func (l *Link) addRemoteCandidate(c webrtc.ICECandidateInit) error {
	l.stepMu.Lock()
	defer l.stepMu.Unlock()

	l.mu.Lock()
	if l.state.Terminal() {
		l.mu.Unlock()
		return errLinkGone
	}
	if !l.remoteSet {
		l.pending = append(l.pending, c)
		n := len(l.pending)
		l.mu.Unlock()
		l.logger.Debug().Int("pending", n).Msg("buffered remote candidate")
		return nil
	}
	l.mu.Unlock()

	if err := l.conn.AddICECandidate(c); err != nil {
		l.logger.Warn().Err(err).Msg("add remote candidate")
	}
	return nil
}

// flushRemote marks the remote description set and applies buffered
// candidates in arrival order. Caller holds stepMu.
func (l *Link) flushRemote() {
	l.mu.Lock()
	l.remoteSet = true
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, c := range pending {
		if l.alive() != nil {
			return
		}
		if err := l.conn.AddICECandidate(c); err != nil {
			l.logger.Warn().Err(err).Msg("add buffered candidate")
		}
	}
	if len(pending) > 0 {
		l.logger.Debug().Int("count", len(pending)).Msg("flushed buffered candidates")
	}
}

// onLocalCandidate sends a gathered candidate. Candidates gathered before our
// description went out are held so the peer never sees them first.
func (l *Link) onLocalCandidate(c webrtc.ICECandidateInit) {
	l.mu.Lock()
	if l.state.Terminal() {
		l.mu.Unlock()
		return
	}
	if !l.announced {
		l.localPending = append(l.localPending, c)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	l.sendCandidate(c)
}

func (l *Link) announce() {
	l.mu.Lock()
	l.announced = true
	held := l.localPending
	l.localPending = nil
	l.mu.Unlock()
	for _, c := range held {
		l.sendCandidate(c)
	}
}

func (l *Link) sendCandidate(c webrtc.ICECandidateInit) {
	if l.alive() != nil {
		return
	}
	ev := &core.SendIceCandidate{Candidate: core.CandidateFromInit(c), Peer: l.id}
	if err := l.signal.Send(ev); err != nil {
		l.logger.Warn().Err(err).Msg("send local candidate")
	}
}

// expire fails a link that has not finished negotiating in time.
func (l *Link) expire() {
	l.failWhen("negotiation", domain.ErrNegotiationTimeout, func(s core.NegotiationState) bool {
		return s != core.StateConnected
	})
}

// fail moves the link to Failed and notifies the owner once.
func (l *Link) fail(op string, cause error) error {
	return l.failWhen(op, cause, nil)
}

func (l *Link) failWhen(op string, cause error, when func(core.NegotiationState) bool) error {
	nerr := &NegotiationError{Op: op, Peer: l.id, Err: cause}
	l.mu.Lock()
	if l.state.Terminal() {
		l.mu.Unlock()
		return errLinkGone
	}
	if when != nil && !when(l.state) {
		l.mu.Unlock()
		return nil
	}
	l.state = core.StateFailed
	l.err = nerr
	l.release()
	cb := l.onTerminal
	l.mu.Unlock()

	l.logger.Error().Err(nerr).Msg("link failed")
	if err := l.conn.Close(); err != nil {
		l.logger.Warn().Err(err).Msg("close after failure")
	}
	if cb != nil {
		cb(l)
	}
	return nerr
}

// Close tears the link down. It is a no-op on a terminal link.
func (l *Link) Close() {
	l.mu.Lock()
	if l.state.Terminal() {
		l.mu.Unlock()
		return
	}
	l.state = core.StateClosed
	l.release()
	l.mu.Unlock()

	if err := l.conn.Close(); err != nil {
		l.logger.Warn().Err(err).Msg("close media connection")
	}
	l.logger.Info().Msg("link closed")
}

// release drops buffers and the timer. Caller holds mu.
func (l *Link) release() {
	if l.timer != nil {
		l.timer.Stop()
	}
	l.pending = nil
	l.localPending = nil
}
