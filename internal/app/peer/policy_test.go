package peer

import (
	"errors"
	"testing"

	"github.com/dkeye/VoiceMesh/internal/domain"
)

func TestLowerIDPicksOneInitiator(t *testing.T) {
	p := LowerID{}
	pairs := [][2]domain.ParticipantID{{"a", "b"}, {"b", "a"}, {"conn-1", "conn-2"}}
	for _, pair := range pairs {
		x, y := pair[0], pair[1]
		if p.InitiateOnJoin(x, y) == p.InitiateOnJoin(y, x) {
			t.Fatalf("%s/%s: exactly one side must initiate on join", x, y)
		}
		if p.InitiateOnRemoteJoin(x, y) == p.InitiateOnRemoteJoin(y, x) {
			t.Fatalf("%s/%s: exactly one side must initiate on remote join", x, y)
		}
		if p.OnGlare(x, y) == p.OnGlare(y, x) {
			t.Fatalf("%s/%s: exactly one side must yield", x, y)
		}
	}
}

func TestAlwaysPolicy(t *testing.T) {
	p := Always{}
	if !p.InitiateOnJoin("z", "a") || !p.InitiateOnJoin("a", "z") {
		t.Fatal("joining side always offers")
	}
	if p.InitiateOnRemoteJoin("a", "z") {
		t.Fatal("roster events are passive")
	}
	if p.OnGlare("z", "a") != YieldToOffer || p.OnGlare("a", "z") != DropOffer {
		t.Fatal("glare must resolve by id")
	}
}

func TestParsePolicy(t *testing.T) {
	cases := map[string]string{
		"":         PolicyLowerID,
		"lower-id": PolicyLowerID,
		" Always ": PolicyAlways,
	}
	for in, want := range cases {
		p, err := ParsePolicy(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if p.Name() != want {
			t.Fatalf("%q: got %s, want %s", in, p.Name(), want)
		}
	}
	if _, err := ParsePolicy("random"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestNegotiationErrorMatches(t *testing.T) {
	err := error(&NegotiationError{Op: "set remote answer", Peer: "b", Err: errInjected})
	if !errors.Is(err, domain.ErrNegotiation) {
		t.Fatal("must match ErrNegotiation")
	}
	if !errors.Is(err, errInjected) {
		t.Fatal("must match the cause")
	}
	if err.Error() != "set remote answer with b: injected" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
