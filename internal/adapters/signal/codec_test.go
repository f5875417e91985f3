package signal

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/gorilla/websocket"
)

func vocabulary() []core.Event {
	mid := "0"
	line := uint16(0)
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	return []core.Event{
		&core.Welcome{ID: "conn-1"},
		&core.SetUsername{ID: "conn-1", Name: "Alice"},
		&core.GetChannels{},
		&core.CreateChannel{Name: "team-sync", Kind: "voice"},
		&core.ChannelCreated{Name: "team-sync", Kind: "voice"},
		&core.SendMessage{Text: "hi", Channel: "general"},
		&core.MessageReceived{Text: "hi", Author: "Alice", Timestamp: ts, Channel: "general"},
		&core.GetChannelMessages{Channel: "general"},
		&core.UserJoined{ID: "conn-2", Name: "Bob"},
		&core.UserLeft{ID: "conn-2"},
		&core.JoinVoiceChannel{Channel: "general-voice"},
		&core.LeaveVoiceChannel{Channel: "general-voice"},
		&core.UserJoinedVoice{ID: "conn-2", Channel: "general-voice"},
		&core.UserLeftVoice{ID: "conn-2", Channel: "general-voice"},
		&core.SendOffer{SDP: "v=0 offer", Peer: "conn-2"},
		&core.ReceiveOffer{SDP: "v=0 offer", Peer: "conn-2"},
		&core.SendAnswer{SDP: "v=0 answer", Peer: "conn-2"},
		&core.ReceiveAnswer{SDP: "v=0 answer", Peer: "conn-2"},
		&core.SendIceCandidate{Candidate: core.Candidate{Candidate: "candidate:1", Mid: &mid, LineIndex: &line}, Peer: "conn-2"},
		&core.ReceiveIceCandidate{Candidate: core.Candidate{Candidate: "candidate:2"}, Peer: "conn-2"},
	}
}

func TestCodecsCarryTheWholeVocabulary(t *testing.T) {
	for _, codec := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			for _, ev := range vocabulary() {
				data, err := codec.Encode(ev)
				if err != nil {
					t.Fatalf("%s: encode: %v", ev.EventName(), err)
				}
				got, err := codec.Decode(data)
				if err != nil {
					t.Fatalf("%s: decode: %v", ev.EventName(), err)
				}
				if m, ok := got.(*core.MessageReceived); ok {
					want := ev.(*core.MessageReceived)
					if !m.Timestamp.Equal(want.Timestamp) {
						t.Fatalf("timestamp %v, want %v", m.Timestamp, want.Timestamp)
					}
					m.Timestamp = want.Timestamp
				}
				if !reflect.DeepEqual(got, ev) {
					t.Fatalf("%s: got %#v, want %#v", ev.EventName(), got, ev)
				}
			}
		})
	}
}

func TestJSONWireShape(t *testing.T) {
	data, err := JSONCodec{}.Encode(&core.SendOffer{SDP: "sdp", Peer: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != `{"event":"SendOffer","args":["sdp","b"]}` {
		t.Fatalf("unexpected frame %s", got)
	}
}

func TestDecodeOptionalArgs(t *testing.T) {
	ev, err := JSONCodec{}.Decode([]byte(`{"event":"UserJoined","args":["conn-3"]}`))
	if err != nil {
		t.Fatal(err)
	}
	if u := ev.(*core.UserJoined); u.ID != "conn-3" || u.Name != "" {
		t.Fatalf("unexpected %+v", u)
	}
	ev, err = JSONCodec{}.Decode([]byte(`{"event":"UserLeftVoice","args":["conn-3"]}`))
	if err != nil {
		t.Fatal(err)
	}
	if u := ev.(*core.UserLeftVoice); u.ID != "conn-3" || u.Channel != "" {
		t.Fatalf("unexpected %+v", u)
	}
}

func TestDecodeErrors(t *testing.T) {
	c := JSONCodec{}
	if _, err := c.Decode([]byte(`{"event":"Nope","args":[]}`)); !errors.Is(err, core.ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
	if _, err := c.Decode([]byte(`{"event":"ReceiveAnswer","args":["sdp"]}`)); !errors.Is(err, core.ErrMissingArg) {
		t.Fatalf("expected ErrMissingArg, got %v", err)
	}
	if _, err := c.Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected envelope error")
	}
}

func TestNewCodec(t *testing.T) {
	for name, frame := range map[string]int{"": websocket.TextMessage, "json": websocket.TextMessage, "msgpack": websocket.BinaryMessage} {
		c, err := NewCodec(name)
		if err != nil {
			t.Fatal(err)
		}
		if c.MessageType() != frame {
			t.Fatalf("%q: frame type %d", name, c.MessageType())
		}
	}
	if _, err := NewCodec("xml"); err == nil {
		t.Fatal("expected error")
	}
}
