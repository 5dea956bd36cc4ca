package propagation

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/star/isswatch/internal/iss"
	"github.com/star/isswatch/internal/tle"
	"github.com/star/isswatch/internal/transform"
)

// Fetcher retrieves raw TLE text.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// SourceConfig controls the SGP4 position source.
type SourceConfig struct {
	NORADID int
	// MaxAge is how long fetched elements are used before a refetch.
	MaxAge time.Duration
}

// Source implements iss.Source by propagating a cached element set.
type Source struct {
	cfg     SourceConfig
	fetcher Fetcher
	cache   *tle.Cache
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	prop        *SGP4Propagator
	fetchedAt   time.Time
	nextAttempt time.Time // earliest refetch after a failed refresh
}

// refreshRetry spaces refetch attempts while stale elements are in use.
const refreshRetry = 10 * time.Minute

// NewSource creates an SGP4 source. cache may be nil to disable the disk
// cache.
func NewSource(cfg SourceConfig, fetcher Fetcher, cache *tle.Cache, logger *slog.Logger) *Source {
	if cfg.NORADID == 0 {
		cfg.NORADID = iss.NORADID
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	return &Source{
		cfg:     cfg,
		fetcher: fetcher,
		cache:   cache,
		logger:  logger.With("component", "propagation"),
		now:     time.Now,
	}
}

// Name implements iss.Source.
func (s *Source) Name() string { return "sgp4" }

// LoadCache primes the source from the newest cached TLE file, if any.
func (s *Source) LoadCache() error {
	if s.cache == nil {
		return nil
	}
	data, ts, err := s.cache.LoadLatest()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.installLocked(data, ts); err != nil {
		return err
	}
	s.logger.Info("loaded TLE from cache", "norad_id", s.cfg.NORADID, "cached_at", ts.UTC().Format(time.RFC3339))
	return nil
}

// Position implements iss.Source.
func (s *Source) Position(ctx context.Context) (iss.Position, error) {
	prop, err := s.propagator(ctx)
	if err != nil {
		return iss.Position{}, err
	}

	now := s.now().UTC().Truncate(time.Second)
	teme, err := prop.Propagate(now)
	if err != nil {
		return iss.Position{}, err
	}

	ecef := transform.TEMEToECEF(teme, now)
	geo := transform.ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z)
	inertialKmS := math.Sqrt(teme.VX*teme.VX + teme.VY*teme.VY + teme.VZ*teme.VZ)

	return iss.Position{
		Latitude:    geo.LatDeg,
		Longitude:   geo.LonDeg,
		AltitudeKm:  geo.AltM / 1000.0,
		VelocityKmh: inertialKmS * 3600.0,
		Timestamp:   now,
		Source:      s.Name(),
	}, nil
}

// propagator returns the current SGP4 propagator, refetching elements when
// none are loaded or they are older than MaxAge. A failed refetch keeps
// using stale elements when there are any.
func (s *Source) propagator(ctx context.Context) (*SGP4Propagator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.prop != nil && (now.Sub(s.fetchedAt) < s.cfg.MaxAge || now.Before(s.nextAttempt)) {
		return s.prop, nil
	}

	data, err := s.fetcher.Fetch(ctx)
	if err == nil {
		fetchedAt := now
		if err = s.installLocked(data, fetchedAt); err == nil {
			if s.cache != nil {
				if cerr := s.cache.Write(data, fetchedAt); cerr != nil {
					s.logger.Warn("failed to write TLE cache", "error", cerr)
				}
			}
			return s.prop, nil
		}
	}

	if s.prop != nil {
		s.nextAttempt = now.Add(refreshRetry)
		s.logger.Warn("TLE refresh failed, using stale elements",
			"error", err,
			"age_seconds", int(now.Sub(s.fetchedAt).Seconds()),
			"retry_at", s.nextAttempt.UTC().Format(time.RFC3339),
		)
		return s.prop, nil
	}
	return nil, fmt.Errorf("loading TLE: %w", err)
}

func (s *Source) installLocked(data []byte, fetchedAt time.Time) error {
	sets, err := tle.Parse(bytes.NewReader(data), s.logger)
	if err != nil {
		return err
	}
	set, ok := tle.Find(sets, s.cfg.NORADID)
	if !ok {
		return fmt.Errorf("no element set for NORAD %d", s.cfg.NORADID)
	}
	prop, err := NewSGP4Propagator(set.Line1, set.Line2, set.NORADID)
	if err != nil {
		return err
	}

	s.prop = prop
	s.fetchedAt = fetchedAt
	s.logger.Debug("installed element set",
		"norad_id", set.NORADID,
		"name", set.Name,
		"epoch", set.Epoch.UTC().Format(time.RFC3339),
	)
	return nil
}
