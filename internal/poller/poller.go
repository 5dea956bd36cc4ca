// Package poller runs the recurring fetch, locate and render cycle.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/star/isswatch/internal/geo"
	"github.com/star/isswatch/internal/iss"
	"github.com/star/isswatch/internal/location"
	"github.com/star/isswatch/internal/metrics"
	"github.com/star/isswatch/internal/midi"
	"github.com/star/isswatch/internal/render"
	"github.com/star/isswatch/internal/transform"
)

// DefaultInterval is the fixed poll period.
const DefaultInterval = 5 * time.Second

// Config controls the cycle cadence and the MIDI note.
type Config struct {
	Interval time.Duration
	Trigger  midi.Trigger
	Note     midi.Note
}

// Deps are the capabilities a cycle drives. Output may be nil.
type Deps struct {
	Source   iss.Source
	Locator  location.Provider
	Renderer render.Renderer
	Output   midi.Output
	ISS      *iss.Store
	User     *location.Store
}

// CycleResult is what one cycle produced. ISS is nil when the fetch
// failed; User is nil when the fetch or the location lookup failed.
type CycleResult struct {
	ISS        *iss.Position
	User       *location.Position
	DistanceKm float64
	Look       transform.LookAngles
	NotePlayed bool
	Err        error
}

// Poller fetches the ISS position on a fixed period.
type Poller struct {
	cfg     Config
	deps    Deps
	logger  *slog.Logger
	running atomic.Bool
}

// New creates a Poller. Nil stores are replaced with fresh ones.
func New(cfg Config, deps Deps, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Note == (midi.Note{}) {
		cfg.Note = midi.DefaultNote
	}
	if deps.ISS == nil {
		deps.ISS = iss.NewStore()
	}
	if deps.User == nil {
		deps.User = location.NewStore()
	}
	return &Poller{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "poller"),
	}
}

// Running reports whether Run has started and not yet returned.
func (p *Poller) Running() bool {
	return p.running.Load()
}

// Run executes one cycle immediately, then one per tick, until ctx is
// cancelled. Cycles never overlap.
func (p *Poller) Run(ctx context.Context) {
	p.running.Store(true)
	defer p.running.Store(false)

	p.logger.Info("polling started",
		"interval_seconds", p.cfg.Interval.Seconds(),
		"source", p.deps.Source.Name(),
		"locator", p.deps.Locator.Name(),
	)

	p.Cycle(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("polling stopped")
			return
		case <-ticker.C:
			p.Cycle(ctx)
		}
	}
}

// Cycle performs a single poll. Every failure is logged and reported in
// the result; none of them stop the poller.
func (p *Poller) Cycle(ctx context.Context) CycleResult {
	var res CycleResult

	start := time.Now()
	pos, err := p.deps.Source.Position(ctx)
	metrics.ObserveFetch(p.deps.Source.Name(), time.Since(start))
	if err != nil {
		var se *iss.StatusError
		if errors.As(err, &se) {
			p.logger.Error("satellite source returned non-success status",
				"status", se.StatusCode,
				"url", se.URL,
			)
		} else {
			p.logger.Error("satellite fetch failed", "source", p.deps.Source.Name(), "error", err)
		}
		metrics.ObservePoll(metrics.OutcomeFetchError)
		res.Err = err
		return res
	}

	res.ISS = &pos
	p.deps.ISS.Set(pos)
	metrics.SetAltitude(pos.AltitudeKm)
	if err := p.deps.Renderer.RenderSatellite(ctx, pos); err != nil {
		p.logger.Warn("render satellite failed", "error", err)
	}

	user, err := p.deps.Locator.Current(ctx)
	if err != nil {
		p.logger.Error("location lookup failed",
			"reason", locationReason(err),
			"locator", p.deps.Locator.Name(),
			"error", err,
		)
		metrics.ObservePoll(metrics.OutcomeLocationError)
		res.Err = err
		return res
	}

	res.User = &user
	res.DistanceKm = geo.Distance(pos.Latitude, pos.Longitude, user.Latitude, user.Longitude)
	res.Look = transform.Look(
		transform.Geodetic{LatDeg: user.Latitude, LonDeg: user.Longitude, AltM: user.AltitudeM},
		transform.Geodetic{LatDeg: pos.Latitude, LonDeg: pos.Longitude, AltM: pos.AltitudeKm * 1000},
	)

	p.deps.User.Set(user)
	metrics.SetDistance(res.DistanceKm)

	view := render.UserView{Position: user, DistanceKm: res.DistanceKm, Look: res.Look}
	if err := p.deps.Renderer.RenderUser(ctx, view); err != nil {
		p.logger.Warn("render user failed", "error", err)
	}

	p.logger.Debug("cycle complete",
		"distance_km", res.DistanceKm,
		"elevation_deg", res.Look.ElevationDeg,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if p.deps.Output != nil && p.cfg.Trigger.Fire(res.DistanceKm) {
		res.NotePlayed = p.playNote(ctx)
	}

	metrics.ObservePoll(metrics.OutcomeOK)
	return res
}

func (p *Poller) playNote(ctx context.Context) bool {
	n := p.cfg.Note
	p.logger.Info("playing note",
		"output", p.deps.Output.Name(),
		"key", n.Key,
		"channel", n.Channel,
		"duration_ms", n.Duration.Milliseconds(),
	)
	if err := p.deps.Output.PlayNote(ctx, n); err != nil {
		p.logger.Warn("midi note failed", "output", p.deps.Output.Name(), "error", err)
		metrics.ObserveNote(false)
		return false
	}
	metrics.ObserveNote(true)
	return true
}

func locationReason(err error) string {
	switch {
	case errors.Is(err, location.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, location.ErrPositionUnavailable):
		return "position_unavailable"
	case errors.Is(err, location.ErrTimeout):
		return "timeout"
	default:
		return "unknown"
	}
}
