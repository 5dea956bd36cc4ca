// Package location reads the user's position from a platform capability.
package location

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/star/isswatch/internal/permission"
)

// Lookup failures, classified like a browser geolocation error.
var (
	ErrPermissionDenied    = errors.New("user denied the request for geolocation")
	ErrPositionUnavailable = errors.New("location information is unavailable")
	ErrTimeout             = errors.New("the request to get user location timed out")
)

// Position is the user's latest coordinates.
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	AltitudeM float64   `json:"altitude_m,omitempty"`
	AccuracyM *float64  `json:"accuracy_m,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Provider is a geolocation capability.
type Provider interface {
	permission.Querier
	Current(ctx context.Context) (Position, error)
}

// Store keeps the most recent user position.
type Store struct {
	latest atomic.Pointer[Position]
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the latest position, or nil if none has been recorded.
func (s *Store) Get() *Position {
	return s.latest.Load()
}

// Set atomically replaces the latest position.
func (s *Store) Set(p Position) {
	s.latest.Store(&p)
}
