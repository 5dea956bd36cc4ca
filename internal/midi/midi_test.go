package midi

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/star/isswatch/internal/permission"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    uint8
		wantErr bool
	}{
		{"C4", 60, false},
		{"c4", 60, false},
		{"A4", 69, false},
		{"F#3", 54, false},
		{"Bb2", 46, false},
		{"C-1", 0, false},
		{"G9", 127, false},
		{"72", 72, false},
		{"128", 0, true},
		{"H4", 0, true},
		{"C", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseKey(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestTriggerFire(t *testing.T) {
	always := Trigger{}
	if !always.Fire(12000) {
		t.Error("zero threshold should always fire")
	}

	near := Trigger{WithinKm: 2000}
	if !near.Fire(1999.9) || !near.Fire(2000) {
		t.Error("distance within threshold should fire")
	}
	if near.Fire(2000.1) {
		t.Error("distance beyond threshold should not fire")
	}
}

func TestDeviceWritesNoteOnOff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "midiC0D0")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	d := NewDevice(path)
	state, err := d.Query(context.Background())
	if err != nil || state != permission.StateGranted {
		t.Fatalf("Query = %q, %v; want granted", state, err)
	}

	n := Note{Channel: 1, Key: 60, Velocity: 100, Duration: 10 * time.Millisecond}
	if err := d.PlayNote(context.Background(), n); err != nil {
		t.Fatalf("PlayNote: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 6 {
		t.Fatalf("wrote %d bytes (% x), want 6", len(data), data)
	}
	if !bytes.Equal(data[:3], []byte{0x91, 60, 100}) {
		t.Errorf("note on = % x, want 91 3c 64", data[:3])
	}
	if data[3] != 0x81 || data[4] != 60 {
		t.Errorf("note off = % x, want 81 3c ..", data[3:])
	}
}

func TestDeviceMissingNode(t *testing.T) {
	d := NewDevice(filepath.Join(t.TempDir(), "nope", "midiC9D9"))
	state, err := d.Query(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != permission.StateUnsupported {
		t.Errorf("state = %q, want unsupported", state)
	}
}

func TestDevicePorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"midiC1D0", "midiC0D0", "pcmC0D0p"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0644)
	}

	in, out, err := NewDevice(filepath.Join(dir, "midiC0D0")).Ports()
	if err != nil {
		t.Fatal(err)
	}
	if len(in) != 2 || len(out) != 2 {
		t.Fatalf("ports = %v / %v, want 2 each", in, out)
	}
	if filepath.Base(out[0]) != "midiC0D0" {
		t.Errorf("first port = %q, want midiC0D0", out[0])
	}
}

func TestFileRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "iss.mid")
	f := NewFile(path)

	state, err := f.Query(context.Background())
	if err != nil || state != permission.StateGranted {
		t.Fatalf("Query = %q, %v; want granted", state, err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	f.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 5 * time.Second)
	}

	for i := 0; i < 3; i++ {
		if err := f.PlayNote(context.Background(), DefaultNote); err != nil {
			t.Fatalf("PlayNote: %v", err)
		}
	}
	if f.Len() != 3 {
		t.Errorf("Len = %d, want 3", f.Len())
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading midi file: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("MThd")) {
		t.Errorf("file does not start with MThd header: % x", data[:min(8, len(data))])
	}
	if !bytes.Contains(data, []byte("MTrk")) {
		t.Error("file has no MTrk chunk")
	}
}

func TestFileRecorderEmptyWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mid")
	if err := NewFile(path).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no file, stat err = %v", err)
	}
}

func TestToTicks(t *testing.T) {
	if got := toTicks(500 * time.Millisecond); got != ticksPerQuarter {
		t.Errorf("toTicks(500ms) = %d, want %d", got, ticksPerQuarter)
	}
	if got := toTicks(time.Second); got != 2*ticksPerQuarter {
		t.Errorf("toTicks(1s) = %d, want %d", got, 2*ticksPerQuarter)
	}
	if got := toTicks(-time.Second); got != 0 {
		t.Errorf("toTicks(-1s) = %d, want 0", got)
	}
}
