// Command diag runs a single poll cycle against the live sources and
// prints the result. It skips the permission flow and MIDI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/star/isswatch/internal/iss"
	"github.com/star/isswatch/internal/location"
	"github.com/star/isswatch/internal/poller"
	"github.com/star/isswatch/internal/propagation"
	"github.com/star/isswatch/internal/render"
	"github.com/star/isswatch/internal/tle"
)

func main() {
	lat := flag.Float64("lat", 39.7392, "observer latitude in degrees")
	lon := flag.Float64("lon", -104.9903, "observer longitude in degrees")
	alt := flag.Float64("alt", 1609, "observer altitude in meters")
	useSGP4 := flag.Bool("sgp4", false, "propagate a CelesTrak TLE instead of calling the API")
	apiURL := flag.String("url", iss.DefaultAPIURL, "satellite API URL")
	timeout := flag.Duration("timeout", 10*time.Second, "overall timeout")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var source iss.Source = iss.NewAPISource(*apiURL, *timeout)
	if *useSGP4 {
		source = propagation.NewSource(propagation.SourceConfig{}, tle.NewFetcher(""), nil, logger)
	}

	p := poller.New(poller.Config{}, poller.Deps{
		Source:   source,
		Locator:  location.NewStatic(*lat, *lon, *alt, true),
		Renderer: render.NewText(os.Stdout),
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res := p.Cycle(ctx)
	if res.Err != nil {
		fmt.Println("ERROR:", res.Err)
		os.Exit(1)
	}

	fmt.Printf("\nSource: %s\n", res.ISS.Source)
	fmt.Printf("Look angles: az=%.1f° el=%.1f° range=%.0f km (visible=%t)\n",
		res.Look.AzimuthDeg, res.Look.ElevationDeg, res.Look.RangeKm, res.Look.Visible())
}
