package sample

import (
	"github.com/rotblauer/livetrack/conceptual"
)

type Action string

const (
	// ActionLive carries a fresh sample.
	ActionLive Action = "live"

	// ActionRoute replaces (or, with a nil route, clears) the active route.
	ActionRoute Action = "route"

	// ActionOffline ends the publisher's session.
	ActionOffline Action = "offline"
)

// Envelope is a push-channel message.
type Envelope struct {
	Vehicle conceptual.VehicleID `json:"vehicle"`
	Action  Action               `json:"action"`
	Sample  *Sample              `json:"sample,omitempty"`
}

func NewLive(vehicle conceptual.VehicleID, s Sample) Envelope {
	return Envelope{Vehicle: vehicle, Action: ActionLive, Sample: &s}
}

// NewRoute wraps a route change in a sample so it flows through
// the same path as live samples.
func NewRoute(vehicle conceptual.VehicleID, last Sample) Envelope {
	last.HasRoute = true
	return Envelope{Vehicle: vehicle, Action: ActionRoute, Sample: &last}
}

func NewOffline(vehicle conceptual.VehicleID) Envelope {
	return Envelope{Vehicle: vehicle, Action: ActionOffline}
}
