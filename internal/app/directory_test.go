package app

import (
	"errors"
	"testing"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/core/mock"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"go.uber.org/mock/gomock"
)

func TestDirectorySeeded(t *testing.T) {
	d := NewDirectory(nil)
	if !d.Has(domain.DefaultTextChannel) || !d.Has(domain.DefaultVoiceChannel) {
		t.Fatal("default channels missing")
	}
	voice := d.List(domain.ChannelVoice)
	if len(voice) != 1 || voice[0].Name != domain.DefaultVoiceChannel {
		t.Fatalf("unexpected voice channels %+v", voice)
	}
	if len(d.List("")) != 2 {
		t.Fatal("expected both channels")
	}
}

func TestDirectoryValidate(t *testing.T) {
	d := NewDirectory(nil)

	name, err := d.Validate("  Team   Sync ", domain.ChannelVoice)
	if err != nil || name != "team-sync" {
		t.Fatalf("got %q %v", name, err)
	}
	if _, err := d.Validate("general", domain.ChannelVoice); !errors.Is(err, domain.ErrChannelKindClash) {
		t.Fatal("text channel must not validate as voice")
	}
	if _, err := d.Validate("   ", domain.ChannelVoice); !errors.Is(err, domain.ErrChannelNameEmpty) {
		t.Fatalf("expected empty name error, got %v", err)
	}
}

func TestDirectoryCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mock.NewMockSender(ctrl)
	d := NewDirectory(sender)

	sender.EXPECT().
		Send(&core.CreateChannel{Name: "war-room", Kind: domain.ChannelVoice}).
		Return(nil)

	name, err := d.Create("War Room", domain.ChannelVoice)
	if err != nil || name != "war-room" {
		t.Fatalf("got %q %v", name, err)
	}
	// not known until the relay confirms
	if d.Has("war-room") {
		t.Fatal("channel added before ChannelCreated")
	}
	if !d.Add("war-room", domain.ChannelVoice) || d.Add("war-room", domain.ChannelVoice) {
		t.Fatal("add must report only the first insertion")
	}

	// known channels are not created twice
	if _, err := d.Create("war-room", domain.ChannelVoice); err != nil {
		t.Fatal(err)
	}
}
