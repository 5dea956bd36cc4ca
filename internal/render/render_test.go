package render

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/star/isswatch/internal/iss"
	"github.com/star/isswatch/internal/location"
	"github.com/star/isswatch/internal/transform"
)

func TestTextSatellite(t *testing.T) {
	var buf bytes.Buffer
	r := NewText(&buf)

	err := r.RenderSatellite(context.Background(), iss.Position{
		Latitude: 50.11496, Longitude: 118.07900, AltitudeKm: 408.05526, VelocityKmh: 27635.97197,
	})
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"Current Location of the ISS",
		"Latitude: 50.11",
		"Longitude: 118.08",
		"Altitude: 408.06 km",
		"Velocity: 27635.97 km/h",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTextUser(t *testing.T) {
	var buf bytes.Buffer
	r := NewText(&buf)

	err := r.RenderUser(context.Background(), UserView{
		Position:   location.Position{Latitude: -33.8688, Longitude: 151.2093},
		DistanceKm: 1234.5678,
		Look:       transform.LookAngles{AzimuthDeg: 270.04, ElevationDeg: -12.34, RangeKm: 2000},
	})
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"Your Location",
		"Latitude: -33.87",
		"Longitude: 151.21",
		"Distance to ISS: 1234.57 km",
		"elevation -12.3°",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

type recordingRenderer struct {
	sats  int
	users int
	err   error
}

func (r *recordingRenderer) RenderSatellite(ctx context.Context, pos iss.Position) error {
	r.sats++
	return r.err
}

func (r *recordingRenderer) RenderUser(ctx context.Context, view UserView) error {
	r.users++
	return r.err
}

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	boom := errors.New("sink down")
	ok := &recordingRenderer{}
	bad := &recordingRenderer{err: boom}
	m := Multi{bad, ok}

	if err := m.RenderSatellite(context.Background(), iss.Position{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want sink error", err)
	}
	if err := m.RenderUser(context.Background(), UserView{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want sink error", err)
	}
	if ok.sats != 1 || ok.users != 1 {
		t.Errorf("healthy sink got %d/%d renders, want 1/1", ok.sats, ok.users)
	}

	if err := (Multi{ok}).RenderSatellite(context.Background(), iss.Position{}); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}
