package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeChannelName(t *testing.T) {
	cases := []struct {
		raw  string
		want ChannelName
		err  error
	}{
		{raw: "general", want: "general"},
		{raw: "  Team Sync ", want: "team-sync"},
		{raw: "a\t\tb  c", want: "a-b-c"},
		{raw: "   ", err: ErrChannelNameEmpty},
		{raw: "", err: ErrChannelNameEmpty},
		{raw: strings.Repeat("x", MaxChannelNameLen), want: ChannelName(strings.Repeat("x", MaxChannelNameLen))},
		{raw: strings.Repeat("x", MaxChannelNameLen+1), err: ErrChannelNameTooLong},
	}
	for _, tc := range cases {
		got, err := NormalizeChannelName(tc.raw)
		if !errors.Is(err, tc.err) {
			t.Fatalf("%q: err %v, want %v", tc.raw, err, tc.err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestParseChannelKind(t *testing.T) {
	for in, want := range map[string]ChannelKind{"text": ChannelText, " Voice ": ChannelVoice} {
		got, err := ParseChannelKind(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %q, %v", in, got, err)
		}
	}
	if _, err := ParseChannelKind("video"); !errors.Is(err, ErrUnknownChannelKind) {
		t.Fatalf("expected ErrUnknownChannelKind, got %v", err)
	}
}
