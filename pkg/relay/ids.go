// Copyright 2024-2026 Aiku AI

package relay

import (
	"math/rand/v2"
	"strconv"
)

// Role identifies one side of the relay.
type Role string

const (
	// RoleSource is the server channel messages are read from.
	RoleSource Role = "source"
	// RoleDestination is the server messages are relayed to and admin
	// commands arrive on.
	RoleDestination Role = "destination"
)

// short returns the one-letter tag used in wire logs.
func (r Role) short() string {
	if r == RoleSource {
		return "f"
	}
	return "t"
}

// ConnState is the registration state of an endpoint.
type ConnState int

// Endpoint states, in connection order.
const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateRegistered
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

// MarshalText lets the status API render states by name.
func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// nickSuffixFunc picks the random suffix appended on nick collisions.
type nickSuffixFunc func() int

func defaultNickSuffix() int {
	return rand.IntN(1000)
}

// collisionNick derives an alternative to base that differs from current.
func collisionNick(base, current string, suffix nickSuffixFunc) string {
	for range 16 {
		candidate := base + "_" + strconv.Itoa(suffix())
		if candidate != current {
			return candidate
		}
	}
	return current + "_"
}
