package midi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/star/isswatch/internal/permission"
)

// ticksPerQuarter is the SMF resolution. At the default 120 BPM a quarter
// note lasts 500ms.
const (
	ticksPerQuarter = 960
	quarterDuration = 500 * time.Millisecond
)

type recordedNote struct {
	at   time.Time
	note Note
}

// File records notes and writes them as a Standard MIDI File on Close.
type File struct {
	path string
	now  func() time.Time

	mu    sync.Mutex
	notes []recordedNote
}

// NewFile creates a recorder that writes to path on Close.
func NewFile(path string) *File {
	return &File{path: path, now: time.Now}
}

func (f *File) Name() string { return "file" }

// Query implements permission.Querier: granted when the target directory
// accepts new files.
func (f *File) Query(ctx context.Context) (permission.State, error) {
	if f.path == "" {
		return permission.StateUnsupported, nil
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		if os.IsPermission(err) {
			return permission.StateDenied, nil
		}
		return permission.StateUnsupported, fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".isswatch-probe-*")
	if err != nil {
		if os.IsPermission(err) {
			return permission.StateDenied, nil
		}
		return permission.StateUnsupported, fmt.Errorf("probing %s: %w", dir, err)
	}
	tmp.Close()
	os.Remove(tmp.Name())
	return permission.StateGranted, nil
}

// Ports reports the recording target as the only output.
func (f *File) Ports() ([]string, []string, error) {
	return nil, []string{f.path}, nil
}

// PlayNote records n at the current time. It does not block for the
// note's duration.
func (f *File) PlayNote(ctx context.Context, n Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, recordedNote{at: f.now(), note: n})
	return nil
}

// Len returns the number of recorded notes.
func (f *File) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes)
}

// Close writes the recorded notes to disk. Nothing is written when no note
// was recorded.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.notes) == 0 {
		return nil
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))

	// Each event's delta is measured from the previous event.
	cursor := f.notes[0].at
	for _, rn := range f.notes {
		on := rn.at
		if on.Before(cursor) {
			on = cursor
		}
		tr.Add(toTicks(on.Sub(cursor)), gomidi.NoteOn(rn.note.Channel, rn.note.Key, rn.note.Velocity))
		tr.Add(toTicks(rn.note.Duration), gomidi.NoteOff(rn.note.Channel, rn.note.Key))
		cursor = on.Add(rn.note.Duration)
	}
	tr.Close(0)

	if err := s.Add(tr); err != nil {
		return fmt.Errorf("adding midi track: %w", err)
	}
	if err := s.WriteFile(f.path); err != nil {
		return fmt.Errorf("writing midi file: %w", err)
	}
	return nil
}

func toTicks(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d * ticksPerQuarter / quarterDuration)
}
