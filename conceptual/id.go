package conceptual

import "strings"

// VehicleID names a tracked vehicle.
// It is the public code a publisher session is started with, eg. "YUG-199".
type VehicleID string

func (v VehicleID) String() string {
	return string(v)
}

func (v VehicleID) IsEmpty() bool {
	return strings.TrimSpace(string(v)) == ""
}
