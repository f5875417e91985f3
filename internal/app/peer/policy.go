package peer

import (
	"fmt"
	"strings"

	"github.com/dkeye/VoiceMesh/internal/domain"
)

// GlareAction is what a link does when an offer arrives while its own offer
// is still outstanding.
type GlareAction int

const (
	// DropOffer keeps our initiator link and ignores the remote offer.
	DropOffer GlareAction = iota
	// YieldToOffer tears down our initiator link and answers instead.
	YieldToOffer
)

func (a GlareAction) String() string {
	if a == YieldToOffer {
		return "yield"
	}
	return "drop"
}

// Policy decides which side of a pair sends the offer.
type Policy interface {
	Name() string
	// InitiateOnJoin is asked for every peer already present when we join.
	InitiateOnJoin(self, remote domain.ParticipantID) bool
	// InitiateOnRemoteJoin is asked when a peer joins our voice channel.
	InitiateOnRemoteJoin(self, remote domain.ParticipantID) bool
	OnGlare(self, remote domain.ParticipantID) GlareAction
}

const (
	PolicyLowerID = "lower-id"
	PolicyAlways  = "always"
)

// LowerID makes the lexicographically smaller id the initiator regardless of
// who joined first, so both sides agree without coordination.
type LowerID struct{}

func (LowerID) Name() string { return PolicyLowerID }

func (LowerID) InitiateOnJoin(self, remote domain.ParticipantID) bool {
	return self < remote
}

func (LowerID) InitiateOnRemoteJoin(self, remote domain.ParticipantID) bool {
	return self < remote
}

func (LowerID) OnGlare(self, remote domain.ParticipantID) GlareAction {
	return glareByID(self, remote)
}

// Always makes the joining side offer to everyone already present; peers that
// join later offer to us.
type Always struct{}

func (Always) Name() string { return PolicyAlways }

func (Always) InitiateOnJoin(domain.ParticipantID, domain.ParticipantID) bool { return true }

func (Always) InitiateOnRemoteJoin(domain.ParticipantID, domain.ParticipantID) bool { return false }

func (Always) OnGlare(self, remote domain.ParticipantID) GlareAction {
	return glareByID(self, remote)
}

// glareByID lets the larger id yield so exactly one offer survives.
func glareByID(self, remote domain.ParticipantID) GlareAction {
	if self > remote {
		return YieldToOffer
	}
	return DropOffer
}

func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyLowerID:
		return LowerID{}, nil
	case PolicyAlways:
		return Always{}, nil
	}
	return nil, fmt.Errorf("unknown glare policy %q", name)
}
