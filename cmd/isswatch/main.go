package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/isswatch/internal/api"
	"github.com/star/isswatch/internal/auth"
	"github.com/star/isswatch/internal/config"
	"github.com/star/isswatch/internal/iss"
	"github.com/star/isswatch/internal/location"
	"github.com/star/isswatch/internal/midi"
	"github.com/star/isswatch/internal/permission"
	"github.com/star/isswatch/internal/poller"
	"github.com/star/isswatch/internal/propagation"
	"github.com/star/isswatch/internal/publish"
	"github.com/star/isswatch/internal/render"
	"github.com/star/isswatch/internal/stream"
	"github.com/star/isswatch/internal/tle"
	"github.com/star/isswatch/web"
)

func main() {
	configPath := flag.String("config", os.Getenv("ISSWATCH_CONFIG"), "path to YAML config file")
	quiet := flag.Bool("quiet", false, "do not print renders to stdout")
	flag.Parse()

	bootLogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	cfg, err := config.Load(*configPath, os.Getenv, bootLogger)
	if err != nil {
		bootLogger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		bootLogger.Error("invalid log configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *quiet); err != nil {
		logger.Error("isswatch stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, quiet bool) error {
	source, err := newSource(cfg, logger)
	if err != nil {
		return err
	}
	locator := newLocator(cfg.Location)
	output := newOutput(cfg.MIDI)
	defer func() {
		if err := output.Close(); err != nil {
			logger.Warn("closing midi output", "output", output.Name(), "error", err)
		}
	}()

	// Geolocation first, then MIDI. Nothing polls until both are granted.
	grants, err := permission.NewCoordinator(locator, output, logger).Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("permissions granted", "geolocation", grants.Geolocation, "midi", grants.MIDI)

	note, err := cfg.MIDI.ToNote()
	if err != nil {
		return err
	}

	issStore := iss.NewStore()
	userStore := location.NewStore()
	hub := stream.NewHub(stream.Config{
		MaxConcurrentPerIP: cfg.Stream.MaxConcurrentPerIP,
		MaxTotal:           cfg.Stream.MaxTotal,
		KeepaliveInterval:  cfg.Stream.KeepaliveInterval,
		BufferSize:         cfg.Stream.BufferSize,
		TrustProxy:         cfg.HTTP.TrustProxy,
	}, logger)

	renderers := render.Multi{hub}
	if !quiet {
		renderers = append(renderers, render.NewText(os.Stdout))
	}
	if rdb := publish.Connect(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); rdb != nil {
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Renders still go out; each publish failure is logged by the poller.
			logger.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
		}
		p := publish.NewPublisher(rdb, cfg.Redis.Channel, cfg.Redis.TTL)
		renderers = append(renderers, p)
		logger.Info("redis publishing enabled", "addr", cfg.Redis.Addr, "channel", p.Channel())
	}

	poll := poller.New(poller.Config{
		Interval: cfg.Poll.Interval,
		Trigger:  midi.Trigger{WithinKm: cfg.MIDI.TriggerKm},
		Note:     note,
	}, poller.Deps{
		Source:   source,
		Locator:  locator,
		Renderer: renderers,
		Output:   output,
		ISS:      issStore,
		User:     userStore,
	}, logger)

	srv := api.NewServer(cfg.HTTP.Addr, logger, auth.Config{
		Enabled: cfg.Auth.Enabled,
		Token:   cfg.Auth.Token,
	}, api.Deps{
		ISS:        issStore,
		User:       userStore,
		Stream:     hub,
		Static:     web.Content,
		Ready:      poll.Running,
		TrustProxy: cfg.HTTP.TrustProxy,
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.HTTP.Addr, "auth_enabled", cfg.Auth.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		poll.Run(pollCtx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = fmt.Errorf("server listen: %w", err)
	}
	logger.Info("shutting down...")

	cancelPoll()
	<-pollDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("stopped")
	return runErr
}

func newSource(cfg config.Config, logger *slog.Logger) (iss.Source, error) {
	switch cfg.Source.Kind {
	case "sgp4":
		src := propagation.NewSource(
			propagation.SourceConfig{NORADID: iss.NORADID, MaxAge: cfg.TLE.MaxAge},
			tle.NewFetcher(cfg.TLE.URL),
			tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxFiles),
			logger,
		)
		if err := src.LoadCache(); err != nil {
			logger.Info("no usable TLE cache, fetching on first cycle", "cache_dir", cfg.TLE.CacheDir, "error", err)
		}
		return src, nil
	case "api":
		return iss.NewAPISource(cfg.Source.URL, cfg.Source.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

func newLocator(cfg config.LocationConfig) location.Provider {
	if cfg.Provider == "gpsd" {
		return location.NewGPSD(cfg.GPSDAddr, cfg.Timeout)
	}
	if !cfg.Configured() {
		return location.NewStatic(0, 0, 0, false)
	}
	return location.NewStatic(*cfg.Latitude, *cfg.Longitude, cfg.AltitudeM, true)
}

func newOutput(cfg config.MIDIConfig) midi.Output {
	if cfg.Output == "file" {
		return midi.NewFile(cfg.FilePath)
	}
	return midi.NewDevice(cfg.DevicePath)
}
