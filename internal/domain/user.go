// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxParticipantIDLen = 64
	MaxUsernameLen      = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

// ParticipantID is issued by the relay on connect and never reused while
// that session is live.
type ParticipantID string

func (id ParticipantID) String() string { return string(id) }

// User is the roster entry of a remote participant.
type User struct {
	ID           ParticipantID `json:"id"`
	DisplayName  string        `json:"display_name"`
	InVoice      bool          `json:"in_voice"`
	VoiceChannel ChannelName   `json:"voice_channel,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in handlers.
// Relays may announce users before they picked a name, so an empty name
// falls back to DefaultUsername.
func NewUser(id ParticipantID, username string) User {
	u := User{ID: id, DisplayName: DefaultUsername}
	_ = u.SetUsername(username)
	return u
}

func (u *User) SetUsername(username string) error {
	username = strings.TrimSpace(username)
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.DisplayName = username
	return nil
}

// DefaultUsername is shown for participants that never announced a name.
const DefaultUsername = "Guest"

// ValidateUsername applies the same rules as SetUsername.
func ValidateUsername(username string) (string, error) {
	var u User
	if err := u.SetUsername(username); err != nil {
		return "", err
	}
	return u.DisplayName, nil
}
