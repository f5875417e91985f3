package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const MaxChannelNameLen = 36

var (
	ErrChannelNameEmpty   = errors.New("channel name empty")
	ErrChannelNameTooLong = errors.New("channel name too long")
	ErrUnknownChannelKind = errors.New("unknown channel kind")
	ErrChannelKindClash   = errors.New("channel exists with another kind")
)

type ChannelName string

func (n ChannelName) String() string { return string(n) }

type ChannelKind string

const (
	ChannelText  ChannelKind = "text"
	ChannelVoice ChannelKind = "voice"
)

const (
	DefaultTextChannel  ChannelName = "general"
	DefaultVoiceChannel ChannelName = "general-voice"
)

func ParseChannelKind(s string) (ChannelKind, error) {
	switch ChannelKind(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelText:
		return ChannelText, nil
	case ChannelVoice:
		return ChannelVoice, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannelKind, s)
}

// NormalizeChannelName trims, lowercases and replaces whitespace runs with a
// single dash: "  Team Sync " becomes "team-sync".
func NormalizeChannelName(raw string) (ChannelName, error) {
	fields := strings.FieldsFunc(strings.ToLower(raw), unicode.IsSpace)
	name := strings.Join(fields, "-")
	if name == "" {
		return "", ErrChannelNameEmpty
	}
	if len(name) > MaxChannelNameLen {
		return "", ErrChannelNameTooLong
	}
	return ChannelName(name), nil
}
