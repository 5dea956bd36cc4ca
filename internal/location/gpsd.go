package location

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/star/isswatch/internal/permission"
)

const gpsdDefaultAddr = "127.0.0.1:2947"

// watchCommand enables JSON streaming reports. scaled=true yields SI units.
const watchCommand = "?WATCH={\"enable\":true,\"json\":true,\"scaled\":true}\n"

type gpsdMsgBase struct {
	Class string `json:"class"`
}

type gpsdTPV struct {
	Class  string   `json:"class"`
	Mode   *int     `json:"mode"`
	Time   string   `json:"time"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Alt    *float64 `json:"alt"`
	AltMSL *float64 `json:"altMSL"`

	// Estimated position errors (meters) when available.
	Epx *float64 `json:"epx"`
	Epy *float64 `json:"epy"`
	Eph *float64 `json:"eph"`
}

// GPSD reads one fix per lookup from a gpsd daemon.
type GPSD struct {
	addr    string
	timeout time.Duration
}

// NewGPSD creates a gpsd provider. An empty addr uses 127.0.0.1:2947; a
// non-positive timeout uses 10 seconds.
func NewGPSD(addr string, timeout time.Duration) *GPSD {
	if strings.TrimSpace(addr) == "" {
		addr = gpsdDefaultAddr
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GPSD{addr: addr, timeout: timeout}
}

func (g *GPSD) Name() string { return "gpsd" }

// Addr returns the gpsd address.
func (g *GPSD) Addr() string { return g.addr }

func (g *GPSD) dial(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{Timeout: 2 * time.Second}
	return d.DialContext(ctx, "tcp", g.addr)
}

// Query implements permission.Querier. A refused connection is a denial;
// any other dial failure means the capability is missing.
func (g *GPSD) Query(ctx context.Context) (permission.State, error) {
	conn, err := g.dial(ctx)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return permission.StateDenied, nil
		}
		return permission.StateUnsupported, fmt.Errorf("dialing gpsd at %s: %w", g.addr, err)
	}
	conn.Close()
	return permission.StateGranted, nil
}

// Current connects, enables watch mode, and returns the first TPV report
// carrying a 2D or 3D fix.
func (g *GPSD) Current(ctx context.Context) (Position, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	conn, err := g.dial(ctx)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return Position{}, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		if ctx.Err() != nil {
			return Position{}, ErrTimeout
		}
		return Position{}, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write([]byte(watchCommand)); err != nil {
		return Position{}, fmt.Errorf("%w: gpsd watch: %v", ErrPositionUnavailable, err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		pos, ok, err := parseGPSDLine(time.Now().UTC(), scanner.Text())
		if err != nil {
			continue
		}
		if ok {
			return pos, nil
		}
	}

	err = scanner.Err()
	if ctx.Err() != nil || errors.Is(err, os.ErrDeadlineExceeded) {
		return Position{}, ErrTimeout
	}
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}
	return Position{}, fmt.Errorf("%w: gpsd closed the connection without a fix", ErrPositionUnavailable)
}

// parseGPSDLine returns a position when line is a TPV report with a fix.
func parseGPSDLine(nowUTC time.Time, line string) (Position, bool, error) {
	var base gpsdMsgBase
	if err := json.Unmarshal([]byte(line), &base); err != nil {
		return Position{}, false, fmt.Errorf("gpsd json parse failed: %v", err)
	}
	if !strings.EqualFold(strings.TrimSpace(base.Class), "TPV") {
		// VERSION, DEVICES, WATCH and SKY carry no position.
		return Position{}, false, nil
	}

	var tpv gpsdTPV
	if err := json.Unmarshal([]byte(line), &tpv); err != nil {
		return Position{}, false, fmt.Errorf("gpsd tpv parse failed: %v", err)
	}
	if tpv.Mode == nil || *tpv.Mode < 2 || tpv.Lat == nil || tpv.Lon == nil {
		return Position{}, false, nil
	}

	pos := Position{
		Latitude:  *tpv.Lat,
		Longitude: *tpv.Lon,
		Timestamp: nowUTC,
		Source:    "gpsd",
	}
	if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(tpv.Time)); err == nil {
		pos.Timestamp = t.UTC()
	}

	altM := tpv.AltMSL
	if altM == nil {
		altM = tpv.Alt
	}
	if altM != nil {
		pos.AltitudeM = *altM
	}

	if tpv.Eph != nil {
		v := *tpv.Eph
		pos.AccuracyM = &v
	} else if tpv.Epx != nil && tpv.Epy != nil {
		v := math.Sqrt((*tpv.Epx)*(*tpv.Epx) + (*tpv.Epy)*(*tpv.Epy))
		pos.AccuracyM = &v
	}
	return pos, true, nil
}
