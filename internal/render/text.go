package render

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/star/isswatch/internal/iss"
)

// Text writes plain-text sections to w.
type Text struct {
	mu sync.Mutex
	w  io.Writer
}

// NewText creates a Text renderer writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

func (t *Text) RenderSatellite(ctx context.Context, pos iss.Position) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.w,
		"Current Location of the ISS\n"+
			"  Latitude: %.2f\n"+
			"  Longitude: %.2f\n"+
			"  Altitude: %.2f km\n"+
			"  Velocity: %.2f km/h\n",
		pos.Latitude, pos.Longitude, pos.AltitudeKm, pos.VelocityKmh)
	return err
}

func (t *Text) RenderUser(ctx context.Context, view UserView) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.w,
		"Your Location\n"+
			"  Latitude: %.2f\n"+
			"  Longitude: %.2f\n"+
			"  Distance to ISS: %.2f km\n"+
			"  Look angles: azimuth %.1f°, elevation %.1f°, range %.2f km\n",
		view.Position.Latitude, view.Position.Longitude, view.DistanceKm,
		view.Look.AzimuthDeg, view.Look.ElevationDeg, view.Look.RangeKm)
	return err
}
