package location

import (
	"context"
	"time"

	"github.com/star/isswatch/internal/permission"
)

// Static reports fixed, configured coordinates.
type Static struct {
	lat, lon, altM float64
	configured     bool
}

// NewStatic returns a provider for the given coordinates. Passing
// configured=false yields a provider whose permission is unsupported.
func NewStatic(lat, lon, altM float64, configured bool) *Static {
	return &Static{lat: lat, lon: lon, altM: altM, configured: configured}
}

func (s *Static) Name() string { return "static" }

// Query implements permission.Querier.
func (s *Static) Query(ctx context.Context) (permission.State, error) {
	if !s.configured {
		return permission.StateUnsupported, nil
	}
	return permission.StateGranted, nil
}

// Current implements Provider.
func (s *Static) Current(ctx context.Context) (Position, error) {
	if !s.configured {
		return Position{}, ErrPositionUnavailable
	}
	if err := ctx.Err(); err != nil {
		return Position{}, ErrTimeout
	}
	return Position{
		Latitude:  s.lat,
		Longitude: s.lon,
		AltitudeM: s.altM,
		Timestamp: time.Now().UTC(),
		Source:    s.Name(),
	}, nil
}
