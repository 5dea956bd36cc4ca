// Package config loads isswatch settings from an optional YAML file and
// ISSWATCH_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/star/isswatch/internal/midi"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Poll     PollConfig     `yaml:"poll"`
	Source   SourceConfig   `yaml:"source"`
	TLE      TLEConfig      `yaml:"tle"`
	Location LocationConfig `yaml:"location"`
	MIDI     MIDIConfig     `yaml:"midi"`
	Stream   StreamConfig   `yaml:"stream"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Addr       string `yaml:"addr"`
	TrustProxy bool   `yaml:"trust_proxy"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// SourceConfig selects where ISS positions come from: "api" for the
// wheretheiss.at service, "sgp4" for local propagation.
type SourceConfig struct {
	Kind    string        `yaml:"kind"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type TLEConfig struct {
	URL      string        `yaml:"url"`
	CacheDir string        `yaml:"cache_dir"`
	MaxFiles int           `yaml:"max_files"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// LocationConfig selects the geolocation provider. Latitude and Longitude
// are pointers so an unset static location can be told apart from 0,0.
type LocationConfig struct {
	Provider  string        `yaml:"provider"`
	Latitude  *float64      `yaml:"latitude"`
	Longitude *float64      `yaml:"longitude"`
	AltitudeM float64       `yaml:"altitude_m"`
	GPSDAddr  string        `yaml:"gpsd_addr"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Configured reports whether both static coordinates are set.
func (l LocationConfig) Configured() bool {
	return l.Latitude != nil && l.Longitude != nil
}

type MIDIConfig struct {
	Output     string        `yaml:"output"`
	DevicePath string        `yaml:"device_path"`
	FilePath   string        `yaml:"file_path"`
	Note       string        `yaml:"note"`
	Channel    int           `yaml:"channel"` // 1-16
	Velocity   int           `yaml:"velocity"`
	Duration   time.Duration `yaml:"duration"`
	TriggerKm  float64       `yaml:"trigger_km"`
}

// ToNote converts the configured note settings.
func (m MIDIConfig) ToNote() (midi.Note, error) {
	key, err := midi.ParseKey(m.Note)
	if err != nil {
		return midi.Note{}, err
	}
	return midi.Note{
		Channel:  uint8(m.Channel - 1),
		Key:      key,
		Velocity: uint8(m.Velocity),
		Duration: m.Duration,
	}, nil
}

type StreamConfig struct {
	MaxConcurrentPerIP int           `yaml:"max_concurrent_per_ip"`
	MaxTotal           int           `yaml:"max_total"`
	KeepaliveInterval  time.Duration `yaml:"keepalive_interval"`
	BufferSize         int           `yaml:"buffer_size"`
}

// RedisConfig enables the Redis publisher when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Channel  string        `yaml:"channel"`
	TTL      time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Logger builds the process logger writing to w.
func (l LogConfig) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format must be 'json' or 'text', got %q", l.Format)
	}
}

// Load reads path (if non-empty), applies environment overrides from
// getenv, fills defaults and validates the result.
func Load(path string, getenv func(string) string, logger *slog.Logger) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if getenv != nil {
		applyEnv(&cfg, getenv, logger)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = 5 * time.Second
	}

	if cfg.Source.Kind == "" {
		cfg.Source.Kind = "api"
	}
	if cfg.Source.Timeout <= 0 {
		cfg.Source.Timeout = cfg.Poll.Interval
	}

	if cfg.TLE.CacheDir == "" {
		cfg.TLE.CacheDir = "/tmp/isswatch/tle"
	}
	if cfg.TLE.MaxFiles <= 0 {
		cfg.TLE.MaxFiles = 5
	}
	if cfg.TLE.MaxAge <= 0 {
		cfg.TLE.MaxAge = 24 * time.Hour
	}

	if cfg.Location.Provider == "" {
		cfg.Location.Provider = "static"
	}
	if cfg.Location.GPSDAddr == "" {
		cfg.Location.GPSDAddr = "127.0.0.1:2947"
	}
	if cfg.Location.Timeout <= 0 {
		cfg.Location.Timeout = 10 * time.Second
	}

	if cfg.MIDI.Output == "" {
		cfg.MIDI.Output = "device"
	}
	if cfg.MIDI.DevicePath == "" {
		cfg.MIDI.DevicePath = midi.DefaultDevicePath
	}
	if cfg.MIDI.FilePath == "" {
		cfg.MIDI.FilePath = "isswatch.mid"
	}
	if cfg.MIDI.Note == "" {
		cfg.MIDI.Note = "C4"
	}
	if cfg.MIDI.Channel == 0 {
		cfg.MIDI.Channel = 1
	}
	if cfg.MIDI.Velocity == 0 {
		cfg.MIDI.Velocity = int(midi.DefaultNote.Velocity)
	}
	if cfg.MIDI.Duration <= 0 {
		cfg.MIDI.Duration = midi.DefaultNote.Duration
	}

	if cfg.Stream.MaxConcurrentPerIP <= 0 {
		cfg.Stream.MaxConcurrentPerIP = 10
	}
	if cfg.Stream.MaxTotal <= 0 {
		cfg.Stream.MaxTotal = 1000
	}
	if cfg.Stream.KeepaliveInterval <= 0 {
		cfg.Stream.KeepaliveInterval = 30 * time.Second
	}
	if cfg.Stream.BufferSize <= 0 {
		cfg.Stream.BufferSize = 16
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate checks a defaulted configuration.
func (c Config) Validate() error {
	if c.Auth.Enabled && c.Auth.Token == "" {
		return errors.New("auth.token is required when auth is enabled")
	}

	switch c.Source.Kind {
	case "api", "sgp4":
	default:
		return fmt.Errorf("source.kind must be 'api' or 'sgp4', got %q", c.Source.Kind)
	}

	switch c.Location.Provider {
	case "static", "gpsd":
	default:
		return fmt.Errorf("location.provider must be 'static' or 'gpsd', got %q", c.Location.Provider)
	}
	if lat := c.Location.Latitude; lat != nil && (*lat < -90 || *lat > 90) {
		return fmt.Errorf("location.latitude must be within [-90, 90], got %v", *lat)
	}
	if lon := c.Location.Longitude; lon != nil && (*lon < -180 || *lon > 180) {
		return fmt.Errorf("location.longitude must be within [-180, 180], got %v", *lon)
	}

	switch c.MIDI.Output {
	case "device", "file":
	default:
		return fmt.Errorf("midi.output must be 'device' or 'file', got %q", c.MIDI.Output)
	}
	if c.MIDI.Channel < 1 || c.MIDI.Channel > 16 {
		return fmt.Errorf("midi.channel must be within [1, 16], got %d", c.MIDI.Channel)
	}
	if c.MIDI.Velocity < 1 || c.MIDI.Velocity > 127 {
		return fmt.Errorf("midi.velocity must be within [1, 127], got %d", c.MIDI.Velocity)
	}
	if _, err := midi.ParseKey(c.MIDI.Note); err != nil {
		return fmt.Errorf("midi.note: %w", err)
	}
	if c.MIDI.TriggerKm < 0 {
		return errors.New("midi.trigger_km must be >= 0")
	}

	if _, err := c.Log.Logger(io.Discard); err != nil {
		return err
	}
	return nil
}
