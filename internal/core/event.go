package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/pion/webrtc/v4"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrMissingArg   = errors.New("missing event argument")
)

// Event is the closed set of named signaling events exchanged with the relay.
// Arguments are positional, in the order of Args.
type Event interface {
	EventName() string
	Args() []any
	decodeArgs(ArgDecoder) error
}

// ArgDecoder yields positional arguments in wire order.
type ArgDecoder interface {
	Remaining() int
	Next(v any) error
}

// DecodeEvent builds the event registered under name from its arguments.
func DecodeEvent(name string, dec ArgDecoder) (Event, error) {
	newEvent, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
	ev := newEvent()
	if err := ev.decodeArgs(dec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return ev, nil
}

var registry = map[string]func() Event{
	"Welcome":             func() Event { return &Welcome{} },
	"SetUsername":         func() Event { return &SetUsername{} },
	"GetChannels":         func() Event { return &GetChannels{} },
	"CreateChannel":       func() Event { return &CreateChannel{} },
	"ChannelCreated":      func() Event { return &ChannelCreated{} },
	"SendMessage":         func() Event { return &SendMessage{} },
	"MessageReceived":     func() Event { return &MessageReceived{} },
	"GetChannelMessages":  func() Event { return &GetChannelMessages{} },
	"UserJoined":          func() Event { return &UserJoined{} },
	"UserLeft":            func() Event { return &UserLeft{} },
	"JoinVoiceChannel":    func() Event { return &JoinVoiceChannel{} },
	"LeaveVoiceChannel":   func() Event { return &LeaveVoiceChannel{} },
	"UserJoinedVoice":     func() Event { return &UserJoinedVoice{} },
	"UserLeftVoice":       func() Event { return &UserLeftVoice{} },
	"SendOffer":           func() Event { return &SendOffer{} },
	"ReceiveOffer":        func() Event { return &ReceiveOffer{} },
	"SendAnswer":          func() Event { return &SendAnswer{} },
	"ReceiveAnswer":       func() Event { return &ReceiveAnswer{} },
	"SendIceCandidate":    func() Event { return &SendIceCandidate{} },
	"ReceiveIceCandidate": func() Event { return &ReceiveIceCandidate{} },
}

func required(dec ArgDecoder, dst ...any) error {
	for _, v := range dst {
		if dec.Remaining() == 0 {
			return ErrMissingArg
		}
		if err := dec.Next(v); err != nil {
			return err
		}
	}
	return nil
}

func optional(dec ArgDecoder, dst ...any) error {
	for _, v := range dst {
		if dec.Remaining() == 0 {
			return nil
		}
		if err := dec.Next(v); err != nil {
			return err
		}
	}
	return nil
}

// Welcome is sent by the relay once per connection with the assigned id.
type Welcome struct {
	ID domain.ParticipantID
}

func (*Welcome) EventName() string               { return "Welcome" }
func (e *Welcome) Args() []any                   { return []any{e.ID} }
func (e *Welcome) decodeArgs(d ArgDecoder) error { return required(d, &e.ID) }

type SetUsername struct {
	ID   domain.ParticipantID
	Name string
}

func (*SetUsername) EventName() string               { return "SetUsername" }
func (e *SetUsername) Args() []any                   { return []any{e.ID, e.Name} }
func (e *SetUsername) decodeArgs(d ArgDecoder) error { return required(d, &e.ID, &e.Name) }

type GetChannels struct{}

func (*GetChannels) EventName() string           { return "GetChannels" }
func (*GetChannels) Args() []any                 { return []any{} }
func (*GetChannels) decodeArgs(ArgDecoder) error { return nil }

type CreateChannel struct {
	Name domain.ChannelName
	Kind domain.ChannelKind
}

func (*CreateChannel) EventName() string               { return "CreateChannel" }
func (e *CreateChannel) Args() []any                   { return []any{e.Name, e.Kind} }
func (e *CreateChannel) decodeArgs(d ArgDecoder) error { return required(d, &e.Name, &e.Kind) }

type ChannelCreated struct {
	Name domain.ChannelName
	Kind domain.ChannelKind
}

func (*ChannelCreated) EventName() string               { return "ChannelCreated" }
func (e *ChannelCreated) Args() []any                   { return []any{e.Name, e.Kind} }
func (e *ChannelCreated) decodeArgs(d ArgDecoder) error { return required(d, &e.Name, &e.Kind) }

type SendMessage struct {
	Text    string
	Channel domain.ChannelName
}

func (*SendMessage) EventName() string               { return "SendMessage" }
func (e *SendMessage) Args() []any                   { return []any{e.Text, e.Channel} }
func (e *SendMessage) decodeArgs(d ArgDecoder) error { return required(d, &e.Text, &e.Channel) }

type MessageReceived struct {
	Text      string
	Author    string
	Timestamp time.Time
	Channel   domain.ChannelName
}

func (*MessageReceived) EventName() string { return "MessageReceived" }
func (e *MessageReceived) Args() []any {
	return []any{e.Text, e.Author, e.Timestamp, e.Channel}
}
func (e *MessageReceived) decodeArgs(d ArgDecoder) error {
	return required(d, &e.Text, &e.Author, &e.Timestamp, &e.Channel)
}

type GetChannelMessages struct {
	Channel domain.ChannelName
}

func (*GetChannelMessages) EventName() string               { return "GetChannelMessages" }
func (e *GetChannelMessages) Args() []any                   { return []any{e.Channel} }
func (e *GetChannelMessages) decodeArgs(d ArgDecoder) error { return required(d, &e.Channel) }

// UserJoined may omit the name when the participant has not announced one.
type UserJoined struct {
	ID   domain.ParticipantID
	Name string
}

func (*UserJoined) EventName() string { return "UserJoined" }
func (e *UserJoined) Args() []any     { return []any{e.ID, e.Name} }
func (e *UserJoined) decodeArgs(d ArgDecoder) error {
	if err := required(d, &e.ID); err != nil {
		return err
	}
	return optional(d, &e.Name)
}

type UserLeft struct {
	ID domain.ParticipantID
}

func (*UserLeft) EventName() string               { return "UserLeft" }
func (e *UserLeft) Args() []any                   { return []any{e.ID} }
func (e *UserLeft) decodeArgs(d ArgDecoder) error { return required(d, &e.ID) }

type JoinVoiceChannel struct {
	Channel domain.ChannelName
}

func (*JoinVoiceChannel) EventName() string               { return "JoinVoiceChannel" }
func (e *JoinVoiceChannel) Args() []any                   { return []any{e.Channel} }
func (e *JoinVoiceChannel) decodeArgs(d ArgDecoder) error { return required(d, &e.Channel) }

type LeaveVoiceChannel struct {
	Channel domain.ChannelName
}

func (*LeaveVoiceChannel) EventName() string               { return "LeaveVoiceChannel" }
func (e *LeaveVoiceChannel) Args() []any                   { return []any{e.Channel} }
func (e *LeaveVoiceChannel) decodeArgs(d ArgDecoder) error { return required(d, &e.Channel) }

type UserJoinedVoice struct {
	ID      domain.ParticipantID
	Channel domain.ChannelName
}

func (*UserJoinedVoice) EventName() string               { return "UserJoinedVoice" }
func (e *UserJoinedVoice) Args() []any                   { return []any{e.ID, e.Channel} }
func (e *UserJoinedVoice) decodeArgs(d ArgDecoder) error { return required(d, &e.ID, &e.Channel) }

// UserLeftVoice may carry the channel the participant left.
type UserLeftVoice struct {
	ID      domain.ParticipantID
	Channel domain.ChannelName
}

func (*UserLeftVoice) EventName() string { return "UserLeftVoice" }
func (e *UserLeftVoice) Args() []any     { return []any{e.ID, e.Channel} }
func (e *UserLeftVoice) decodeArgs(d ArgDecoder) error {
	if err := required(d, &e.ID); err != nil {
		return err
	}
	return optional(d, &e.Channel)
}

type SendOffer struct {
	SDP  string
	Peer domain.ParticipantID
}

func (*SendOffer) EventName() string               { return "SendOffer" }
func (e *SendOffer) Args() []any                   { return []any{e.SDP, e.Peer} }
func (e *SendOffer) decodeArgs(d ArgDecoder) error { return required(d, &e.SDP, &e.Peer) }

type ReceiveOffer struct {
	SDP  string
	Peer domain.ParticipantID
}

func (*ReceiveOffer) EventName() string               { return "ReceiveOffer" }
func (e *ReceiveOffer) Args() []any                   { return []any{e.SDP, e.Peer} }
func (e *ReceiveOffer) decodeArgs(d ArgDecoder) error { return required(d, &e.SDP, &e.Peer) }

type SendAnswer struct {
	SDP  string
	Peer domain.ParticipantID
}

func (*SendAnswer) EventName() string               { return "SendAnswer" }
func (e *SendAnswer) Args() []any                   { return []any{e.SDP, e.Peer} }
func (e *SendAnswer) decodeArgs(d ArgDecoder) error { return required(d, &e.SDP, &e.Peer) }

type ReceiveAnswer struct {
	SDP  string
	Peer domain.ParticipantID
}

func (*ReceiveAnswer) EventName() string               { return "ReceiveAnswer" }
func (e *ReceiveAnswer) Args() []any                   { return []any{e.SDP, e.Peer} }
func (e *ReceiveAnswer) decodeArgs(d ArgDecoder) error { return required(d, &e.SDP, &e.Peer) }

// Candidate is the wire form of an ICE candidate.
type Candidate struct {
	Candidate string
	Mid       *string
	LineIndex *uint16
}

func CandidateFromInit(c webrtc.ICECandidateInit) Candidate {
	return Candidate{Candidate: c.Candidate, Mid: c.SDPMid, LineIndex: c.SDPMLineIndex}
}

func (c Candidate) Init() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: c.Candidate, SDPMid: c.Mid, SDPMLineIndex: c.LineIndex}
}

type SendIceCandidate struct {
	Candidate
	Peer domain.ParticipantID
}

func (*SendIceCandidate) EventName() string { return "SendIceCandidate" }
func (e *SendIceCandidate) Args() []any {
	return []any{e.Candidate.Candidate, e.Mid, e.LineIndex, e.Peer}
}
func (e *SendIceCandidate) decodeArgs(d ArgDecoder) error {
	return required(d, &e.Candidate.Candidate, &e.Mid, &e.LineIndex, &e.Peer)
}

type ReceiveIceCandidate struct {
	Candidate
	Peer domain.ParticipantID
}

func (*ReceiveIceCandidate) EventName() string { return "ReceiveIceCandidate" }
func (e *ReceiveIceCandidate) Args() []any {
	return []any{e.Candidate.Candidate, e.Mid, e.LineIndex, e.Peer}
}
func (e *ReceiveIceCandidate) decodeArgs(d ArgDecoder) error {
	return required(d, &e.Candidate.Candidate, &e.Mid, &e.LineIndex, &e.Peer)
}
