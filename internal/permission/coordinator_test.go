package permission

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type fakeQuerier struct {
	name   string
	state  State
	err    error
	calls  int
	order  *[]string
	inputs []string
}

func (f *fakeQuerier) Name() string { return f.name }

func (f *fakeQuerier) Query(ctx context.Context) (State, error) {
	f.calls++
	if f.order != nil {
		*f.order = append(*f.order, f.name)
	}
	return f.state, f.err
}

type listingQuerier struct {
	fakeQuerier
	listed bool
}

func (l *listingQuerier) Ports() ([]string, []string, error) {
	l.listed = true
	return []string{"in"}, []string{"out"}, nil
}

func TestCoordinatorBothGranted(t *testing.T) {
	var order []string
	geo := &fakeQuerier{name: "static", state: StateGranted, order: &order}
	midi := &fakeQuerier{name: "device", state: StatePrompt, order: &order}

	g, err := NewCoordinator(geo, midi, testLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !g.Ready() {
		t.Errorf("grants = %+v, want ready", g)
	}
	if len(order) != 2 || order[0] != "static" || order[1] != "device" {
		t.Errorf("query order = %v, want [static device]", order)
	}
}

func TestCoordinatorGeolocationDeniedSkipsMIDI(t *testing.T) {
	geo := &fakeQuerier{name: "gpsd", state: StateDenied}
	midi := &fakeQuerier{name: "device", state: StateGranted}

	g, err := NewCoordinator(geo, midi, testLogger()).Run(context.Background())
	if !errors.Is(err, ErrNotGranted) {
		t.Fatalf("err = %v, want ErrNotGranted", err)
	}
	if g.Ready() || g.Geolocation || g.MIDI {
		t.Errorf("grants = %+v, want none", g)
	}
	if midi.calls != 0 {
		t.Errorf("midi queried %d times, want 0", midi.calls)
	}
}

func TestCoordinatorMIDIDenied(t *testing.T) {
	geo := &fakeQuerier{name: "static", state: StateGranted}
	midi := &fakeQuerier{name: "device", state: StateUnsupported}

	g, err := NewCoordinator(geo, midi, testLogger()).Run(context.Background())
	if !errors.Is(err, ErrNotGranted) {
		t.Fatalf("err = %v, want ErrNotGranted", err)
	}
	if !g.Geolocation || g.MIDI || g.Ready() {
		t.Errorf("grants = %+v, want geolocation only", g)
	}
}

func TestCoordinatorQueryError(t *testing.T) {
	boom := errors.New("boom")
	geo := &fakeQuerier{name: "gpsd", state: StateUnsupported, err: boom}

	_, err := NewCoordinator(geo, &fakeQuerier{name: "device", state: StateGranted}, testLogger()).Run(context.Background())
	if !errors.Is(err, ErrNotGranted) {
		t.Fatalf("err = %v, want ErrNotGranted", err)
	}
}

func TestCoordinatorMissingCapability(t *testing.T) {
	_, err := NewCoordinator(nil, nil, testLogger()).Run(context.Background())
	if !errors.Is(err, ErrNotGranted) {
		t.Fatalf("err = %v, want ErrNotGranted", err)
	}

	geo := &fakeQuerier{name: "static", state: StateGranted}
	g, err := NewCoordinator(geo, nil, testLogger()).Run(context.Background())
	if !errors.Is(err, ErrNotGranted) {
		t.Fatalf("err = %v, want ErrNotGranted", err)
	}
	if g.Ready() {
		t.Error("grants should not be ready without midi")
	}
}

func TestCoordinatorListsPorts(t *testing.T) {
	geo := &fakeQuerier{name: "static", state: StateGranted}
	midi := &listingQuerier{fakeQuerier: fakeQuerier{name: "device", state: StateGranted}}

	if _, err := NewCoordinator(geo, midi, testLogger()).Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !midi.listed {
		t.Error("expected midi ports to be listed after grant")
	}
}

func TestStateAllowed(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateGranted, true},
		{StatePrompt, true},
		{StateDenied, false},
		{StateUnsupported, false},
		{State(""), false},
	}
	for _, tt := range tests {
		if got := tt.state.Allowed(); got != tt.want {
			t.Errorf("%q.Allowed() = %v, want %v", tt.state, got, tt.want)
		}
	}
}
