// Package midi emits notes on a MIDI output: a raw MIDI device node or a
// Standard MIDI File.
package midi

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/star/isswatch/internal/permission"
)

// Note is a single note to play.
type Note struct {
	Channel  uint8 // 0-15
	Key      uint8 // 60 = C4
	Velocity uint8
	Duration time.Duration
}

// DefaultNote is middle C on the first channel for one second.
var DefaultNote = Note{Channel: 0, Key: 60, Velocity: 100, Duration: time.Second}

// Output is a MIDI capability that can play notes.
type Output interface {
	permission.Querier
	PlayNote(ctx context.Context, n Note) error
	Close() error
}

var pitchClasses = map[string]int{
	"C": 0, "C#": 1, "DB": 1, "D": 2, "D#": 3, "EB": 3, "E": 4, "F": 5,
	"F#": 6, "GB": 6, "G": 7, "G#": 8, "AB": 8, "A": 9, "A#": 10, "BB": 10, "B": 11,
}

// ParseKey converts a note name such as "C4" or "F#3", or a plain MIDI
// number, to a key number. C4 is 60.
func ParseKey(s string) (uint8, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty note name")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 127 {
			return 0, fmt.Errorf("note number %d out of range 0-127", n)
		}
		return uint8(n), nil
	}

	i := 1
	if len(s) > 1 && (s[1] == '#' || s[1] == 'B') {
		i = 2
	}
	pc, ok := pitchClasses[s[:i]]
	if !ok {
		return 0, fmt.Errorf("invalid note name %q", s)
	}
	octave, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, fmt.Errorf("invalid octave in note %q", s)
	}
	key := (octave+1)*12 + pc
	if key < 0 || key > 127 {
		return 0, fmt.Errorf("note %q out of range", s)
	}
	return uint8(key), nil
}

// Trigger decides whether a cycle should emit a note.
type Trigger struct {
	// WithinKm plays only when the distance is at most this many km.
	// Zero or less plays on every cycle.
	WithinKm float64
}

// Fire reports whether a note should play for distanceKm.
func (t Trigger) Fire(distanceKm float64) bool {
	if t.WithinKm <= 0 {
		return true
	}
	return distanceKm <= t.WithinKm
}
