package signal

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns events into websocket frames and back.
// The envelope is {"event": name, "args": [...]} in both encodings.
type Codec interface {
	Name() string
	MessageType() int
	Encode(core.Event) ([]byte, error)
	Decode([]byte) (core.Event, error)
}

func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

type jsonEnvelope struct {
	Event string            `json:"event"`
	Args  []json.RawMessage `json:"args"`
}

type JSONCodec struct{}

func (JSONCodec) Name() string     { return "json" }
func (JSONCodec) MessageType() int { return websocket.TextMessage }

func (JSONCodec) Encode(ev core.Event) ([]byte, error) {
	return json.Marshal(struct {
		Event string `json:"event"`
		Args  []any  `json:"args"`
	}{ev.EventName(), ev.Args()})
}

func (JSONCodec) Decode(data []byte) (core.Event, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bad envelope: %w", err)
	}
	return core.DecodeEvent(env.Event, &jsonArgs{args: env.Args})
}

type jsonArgs struct {
	args []json.RawMessage
}

func (a *jsonArgs) Remaining() int { return len(a.args) }

func (a *jsonArgs) Next(v any) error {
	raw := a.args[0]
	a.args = a.args[1:]
	return json.Unmarshal(raw, v)
}

type msgpackEnvelope struct {
	Event string               `msgpack:"event"`
	Args  []msgpack.RawMessage `msgpack:"args"`
}

type MsgpackCodec struct{}

func (MsgpackCodec) Name() string     { return "msgpack" }
func (MsgpackCodec) MessageType() int { return websocket.BinaryMessage }

func (MsgpackCodec) Encode(ev core.Event) ([]byte, error) {
	return msgpack.Marshal(struct {
		Event string `msgpack:"event"`
		Args  []any  `msgpack:"args"`
	}{ev.EventName(), ev.Args()})
}

func (MsgpackCodec) Decode(data []byte) (core.Event, error) {
	var env msgpackEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bad envelope: %w", err)
	}
	return core.DecodeEvent(env.Event, &msgpackArgs{args: env.Args})
}

type msgpackArgs struct {
	args []msgpack.RawMessage
}

func (a *msgpackArgs) Remaining() int { return len(a.args) }

func (a *msgpackArgs) Next(v any) error {
	raw := a.args[0]
	a.args = a.args[1:]
	return msgpack.Unmarshal(raw, v)
}
