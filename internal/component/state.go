package component

import (
	"fmt"
	"strings"
)

// Kind names a component type, e.g. "toast" or "tabs".
type Kind string

// String returns the kind name.
func (k Kind) String() string { return string(k) }

// State is the lifecycle position of one instance.
//
//	created -> initializing -> ready -> destroyed
//	                       \-> failed -> destroyed
//
// Inert instances never found their root; they ignore Init and Destroy.
type State int

const (
	StateCreated State = iota
	StateInitializing
	StateReady
	StateFailed
	StateDestroyed
	StateInert
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateDestroyed:
		return "destroyed"
	case StateInert:
		return "inert"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	for st := StateCreated; st <= StateInert; st++ {
		if st.String() == strings.ToLower(s) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown component state %q", s)
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Settled reports whether Init has finished, one way or another.
func (s State) Settled() bool {
	return s == StateReady || s == StateFailed || s == StateDestroyed || s == StateInert
}
