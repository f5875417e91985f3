package app

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/core/mock"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"go.uber.org/mock/gomock"
)

func TestChatSend(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mock.NewMockSender(ctrl)
	c := NewChat("me", sender, ChatOptions{RateLimit: 2, RateInterval: time.Minute})

	sender.EXPECT().Send(&core.SendMessage{Text: "hello", Channel: domain.DefaultTextChannel}).Return(nil)
	sender.EXPECT().Send(&core.SendMessage{Text: "again", Channel: domain.DefaultTextChannel}).Return(nil)

	if err := c.Send("  hello "); err != nil {
		t.Fatal(err)
	}
	if err := c.Send(" "); !errors.Is(err, domain.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if err := c.Send("again"); err != nil {
		t.Fatal(err)
	}
	if err := c.Send("too much"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestChatSelect(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mock.NewMockSender(ctrl)
	c := NewChat("me", sender, ChatOptions{})

	gomock.InOrder(
		sender.EXPECT().Send(&core.GetChannelMessages{Channel: "random"}).Return(nil),
		sender.EXPECT().Send(&core.SendMessage{Text: "hi", Channel: "random"}).Return(nil),
	)

	name, err := c.Select("Random")
	if err != nil || name != "random" || c.Current() != "random" {
		t.Fatalf("got %q %v", name, err)
	}
	if err := c.Send("hi"); err != nil {
		t.Fatal(err)
	}
}

func TestChatHistoryIsBounded(t *testing.T) {
	c := NewChat("me", nil, ChatOptions{HistoryLimit: 3})
	ts := time.Unix(0, 0).UTC()
	for i := 0; i < 5; i++ {
		c.OnMessage(&core.MessageReceived{
			Text:      fmt.Sprintf("m%d", i),
			Author:    "Bob",
			Timestamp: ts,
			Channel:   domain.DefaultTextChannel,
		})
	}
	c.OnMessage(&core.MessageReceived{Text: "elsewhere", Author: "Bob", Channel: "random"})

	got := c.Messages("")
	if len(got) != 3 || got[0].Text != "m2" || got[2].Text != "m4" {
		t.Fatalf("unexpected history %+v", got)
	}
	if other := c.Messages("random"); len(other) != 1 {
		t.Fatalf("unexpected history %+v", other)
	}
}
