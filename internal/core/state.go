package core

type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// NegotiationState of a single peer link.
//
//	initiator: New -> OfferPending -> AwaitingAnswer -> Connected
//	responder: New -> AwaitingLocalAnswer -> Connected
//
// Closed and Failed are terminal and reachable from any other state.
type NegotiationState int

const (
	StateNew NegotiationState = iota
	StateOfferPending
	StateAwaitingAnswer
	StateAwaitingLocalAnswer
	StateConnected
	StateClosed
	StateFailed
)

var stateNames = [...]string{
	StateNew:                 "new",
	StateOfferPending:        "offer_pending",
	StateAwaitingAnswer:      "awaiting_answer",
	StateAwaitingLocalAnswer: "awaiting_local_answer",
	StateConnected:           "connected",
	StateClosed:              "closed",
	StateFailed:              "failed",
}

func (s NegotiationState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s NegotiationState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether no further transition is possible.
func (s NegotiationState) Terminal() bool {
	return s == StateClosed || s == StateFailed
}
