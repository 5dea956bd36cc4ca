package config

import (
	"log/slog"
	"strconv"
	"time"
)

const envPrefix = "ISSWATCH_"

// applyEnv overrides cfg from ISSWATCH_* variables. A value that fails to
// parse is logged and the previous setting kept.
func applyEnv(cfg *Config, getenv func(string) string, logger *slog.Logger) {
	e := envReader{getenv: getenv, logger: logger}

	e.str("HTTP_ADDR", &cfg.HTTP.Addr)
	e.boolean("HTTP_TRUST_PROXY", &cfg.HTTP.TrustProxy)

	e.boolean("AUTH_ENABLED", &cfg.Auth.Enabled)
	e.str("AUTH_TOKEN", &cfg.Auth.Token)

	e.seconds("POLL_INTERVAL", &cfg.Poll.Interval)

	e.str("SOURCE", &cfg.Source.Kind)
	e.str("SOURCE_URL", &cfg.Source.URL)

	e.str("TLE_URL", &cfg.TLE.URL)
	e.str("TLE_CACHE_DIR", &cfg.TLE.CacheDir)
	e.seconds("TLE_MAX_AGE", &cfg.TLE.MaxAge)

	e.str("LOCATION_PROVIDER", &cfg.Location.Provider)
	e.floatPtr("LAT", &cfg.Location.Latitude)
	e.floatPtr("LON", &cfg.Location.Longitude)
	e.float("ALT_M", &cfg.Location.AltitudeM)
	e.str("GPSD_ADDR", &cfg.Location.GPSDAddr)

	e.str("MIDI_OUTPUT", &cfg.MIDI.Output)
	e.str("MIDI_DEVICE", &cfg.MIDI.DevicePath)
	e.str("MIDI_FILE", &cfg.MIDI.FilePath)
	e.str("MIDI_NOTE", &cfg.MIDI.Note)
	e.float("MIDI_TRIGGER_KM", &cfg.MIDI.TriggerKm)

	e.integer("STREAM_MAX_CONCURRENT", &cfg.Stream.MaxConcurrentPerIP)
	e.seconds("STREAM_KEEPALIVE_INTERVAL", &cfg.Stream.KeepaliveInterval)

	e.str("REDIS_ADDR", &cfg.Redis.Addr)
	e.str("REDIS_PASSWORD", &cfg.Redis.Password)
	e.str("REDIS_CHANNEL", &cfg.Redis.Channel)

	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)
}

type envReader struct {
	getenv func(string) string
	logger *slog.Logger
}

func (e envReader) lookup(name string) (string, string, bool) {
	key := envPrefix + name
	v := e.getenv(key)
	return key, v, v != ""
}

func (e envReader) warn(key, value string) {
	if e.logger != nil {
		e.logger.Warn("invalid environment override, keeping previous value", "key", key, "value", value)
	}
}

func (e envReader) str(name string, dst *string) {
	if _, v, ok := e.lookup(name); ok {
		*dst = v
	}
}

func (e envReader) boolean(name string, dst *bool) {
	key, v, ok := e.lookup(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.warn(key, v)
		return
	}
	*dst = b
}

func (e envReader) integer(name string, dst *int) {
	key, v, ok := e.lookup(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		e.warn(key, v)
		return
	}
	*dst = n
}

func (e envReader) float(name string, dst *float64) {
	key, v, ok := e.lookup(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.warn(key, v)
		return
	}
	*dst = f
}

func (e envReader) floatPtr(name string, dst **float64) {
	key, v, ok := e.lookup(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.warn(key, v)
		return
	}
	*dst = &f
}

// seconds accepts a whole number of seconds or a duration string such as
// "1m30s".
func (e envReader) seconds(name string, dst *time.Duration) {
	key, v, ok := e.lookup(name)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = time.Duration(n) * time.Second
		return
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		*dst = d
		return
	}
	e.warn(key, v)
}
