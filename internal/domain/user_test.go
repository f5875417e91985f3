package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewUserFallsBackToGuest(t *testing.T) {
	if u := NewUser("p1", "  "); u.DisplayName != DefaultUsername {
		t.Fatalf("got %q", u.DisplayName)
	}
	if u := NewUser("p1", " Alice "); u.DisplayName != "Alice" || u.ID != "p1" {
		t.Fatalf("got %+v", u)
	}
}

func TestValidateUsername(t *testing.T) {
	if _, err := ValidateUsername(""); !errors.Is(err, ErrUsernameEmpty) {
		t.Fatalf("expected ErrUsernameEmpty, got %v", err)
	}
	if _, err := ValidateUsername(strings.Repeat("a", MaxUsernameLen+1)); !errors.Is(err, ErrUsernameTooLong) {
		t.Fatalf("expected ErrUsernameTooLong, got %v", err)
	}
	u := User{DisplayName: "Bob"}
	if err := u.SetUsername(strings.Repeat("a", MaxUsernameLen+1)); err == nil || u.DisplayName != "Bob" {
		t.Fatalf("rejected name must not change the user: %+v", u)
	}
}
