package midi

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/star/isswatch/internal/permission"
)

// DefaultDevicePath is the first ALSA raw MIDI node on Linux.
const DefaultDevicePath = "/dev/snd/midiC0D0"

// Device writes raw MIDI messages to a character device.
type Device struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// NewDevice creates a Device for path. The node is opened lazily.
func NewDevice(path string) *Device {
	if path == "" {
		path = DefaultDevicePath
	}
	return &Device{path: path}
}

func (d *Device) Name() string { return "device" }

// Query implements permission.Querier. A missing node means the capability
// is unsupported; a node that cannot be opened for writing is denied.
func (d *Device) Query(ctx context.Context) (permission.State, error) {
	if _, err := os.Stat(d.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return permission.StateUnsupported, nil
		}
		return permission.StateUnsupported, fmt.Errorf("stat %s: %w", d.path, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.openLocked(); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return permission.StateDenied, nil
		}
		return permission.StateUnsupported, err
	}
	return permission.StateGranted, nil
}

// Ports lists the raw MIDI nodes next to the configured device. Raw nodes
// are bidirectional, so each appears as both input and output.
func (d *Device) Ports() ([]string, []string, error) {
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(d.path), "midi*"))
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(matches)
	return matches, matches, nil
}

func (d *Device) openLocked() error {
	if d.f != nil {
		return nil
	}
	f, err := os.OpenFile(d.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening midi device: %w", err)
	}
	d.f = f
	return nil
}

// PlayNote sends Note On, waits for the duration or ctx, then sends Note Off.
func (d *Device) PlayNote(ctx context.Context, n Note) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.openLocked(); err != nil {
		return err
	}
	if _, err := d.f.Write(gomidi.NoteOn(n.Channel, n.Key, n.Velocity)); err != nil {
		return fmt.Errorf("writing note on: %w", err)
	}

	timer := time.NewTimer(n.Duration)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}

	if _, err := d.f.Write(gomidi.NoteOff(n.Channel, n.Key)); err != nil {
		return fmt.Errorf("writing note off: %w", err)
	}
	return nil
}

// Close releases the device node.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
