// Package iss models the tracked satellite's position and the sources that
// produce it.
package iss

import (
	"context"
	"time"
)

// NORADID is the catalog number of the International Space Station.
const NORADID = 25544

// Position is the latest known satellite state. Every update replaces it
// wholesale.
type Position struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	AltitudeKm  float64   `json:"altitude_km"`
	VelocityKmh float64   `json:"velocity_kmh"`
	Visibility  string    `json:"visibility,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
}

// Source produces the current satellite position.
type Source interface {
	Name() string
	Position(ctx context.Context) (Position, error)
}
