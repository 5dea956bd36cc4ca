// Package render presents satellite and user positions to display sinks.
package render

import (
	"context"
	"errors"

	"github.com/star/isswatch/internal/iss"
	"github.com/star/isswatch/internal/location"
	"github.com/star/isswatch/internal/transform"
)

// UserView is the user's position together with its relation to the ISS.
type UserView struct {
	Position   location.Position    `json:"position"`
	DistanceKm float64              `json:"distance_km"`
	Look       transform.LookAngles `json:"look"`
}

// Event types carried by Event.Type.
const (
	EventISS  = "iss"
	EventUser = "user"
)

// Event is the wire form of a single render, shared by the stream and
// publish sinks.
type Event struct {
	Type string        `json:"type"`
	ISS  *iss.Position `json:"iss,omitempty"`
	User *UserView     `json:"user,omitempty"`
}

// Renderer displays the latest records.
type Renderer interface {
	RenderSatellite(ctx context.Context, pos iss.Position) error
	RenderUser(ctx context.Context, view UserView) error
}

// Multi fans out to every renderer and joins their errors.
type Multi []Renderer

func (m Multi) RenderSatellite(ctx context.Context, pos iss.Position) error {
	var errs []error
	for _, r := range m {
		if err := r.RenderSatellite(ctx, pos); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) RenderUser(ctx context.Context, view UserView) error {
	var errs []error
	for _, r := range m {
		if err := r.RenderUser(ctx, view); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
