package permission

import (
	"context"
	"fmt"
	"log/slog"
)

// Grants records which capabilities were granted.
type Grants struct {
	Geolocation bool
	MIDI        bool
}

// Ready reports whether every capability needed for polling was granted.
func (g Grants) Ready() bool {
	return g.Geolocation && g.MIDI
}

// Coordinator requests geolocation and then MIDI access, in that order.
type Coordinator struct {
	geolocation Querier
	midi        Querier
	logger      *slog.Logger
}

// NewCoordinator creates a Coordinator. Either querier may be nil, which is
// treated as an absent capability.
func NewCoordinator(geolocation, midi Querier, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		geolocation: geolocation,
		midi:        midi,
		logger:      logger.With("component", "permission"),
	}
}

// Run requests geolocation first and, only if that is allowed, MIDI. The
// returned Grants is Ready only when both were allowed; otherwise the error
// wraps ErrNotGranted and names the capability that stopped the flow.
func (c *Coordinator) Run(ctx context.Context) (Grants, error) {
	var g Grants

	ok, err := c.request(ctx, "geolocation", c.geolocation)
	if !ok {
		return g, err
	}
	g.Geolocation = true

	ok, err = c.request(ctx, "midi", c.midi)
	if !ok {
		return g, err
	}
	g.MIDI = true

	if pl, isLister := c.midi.(PortLister); isLister {
		c.logPorts(pl)
	}

	c.logger.Info("all permissions granted")
	return g, nil
}

func (c *Coordinator) request(ctx context.Context, capability string, q Querier) (bool, error) {
	if q == nil {
		c.logger.Warn("capability not supported", "capability", capability)
		return false, fmt.Errorf("%s: %w: %s", capability, ErrNotGranted, StateUnsupported)
	}

	state, err := q.Query(ctx)
	if err != nil {
		c.logger.Error("permission query failed",
			"capability", capability,
			"provider", q.Name(),
			"state", string(state),
			"error", err,
		)
		return false, fmt.Errorf("%s (%s): %w: %v", capability, q.Name(), ErrNotGranted, err)
	}

	if !state.Allowed() {
		c.logger.Warn("permission denied",
			"capability", capability,
			"provider", q.Name(),
			"state", string(state),
		)
		return false, fmt.Errorf("%s (%s): %w: %s", capability, q.Name(), ErrNotGranted, state)
	}

	c.logger.Info("permission granted",
		"capability", capability,
		"provider", q.Name(),
		"state", string(state),
	)
	return true, nil
}

func (c *Coordinator) logPorts(pl PortLister) {
	inputs, outputs, err := pl.Ports()
	if err != nil {
		c.logger.Debug("could not list midi ports", "error", err)
		return
	}
	c.logger.Info("midi ports", "inputs", inputs, "outputs", outputs)
}
