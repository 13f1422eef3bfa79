// Package config resolves daemon settings from built-in defaults, an optional
// TOML file, and STATUSD_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvConfigPath names the env var that points at a TOML file when --config
// is not given.
const EnvConfigPath = "STATUSD_CONFIG"

type Config struct {
	SocketName        string        // STATUSD_SOCKET_NAME (default "statusd.sock")
	SocketReadTimeout time.Duration // STATUSD_SOCKET_READ_TIMEOUT (default 5s; 0 = none)
	HTTPAddr          string        // STATUSD_HTTP_ADDR (default "127.0.0.1:7878"; empty = disabled)
	GRPCAddr          string        // STATUSD_GRPC_ADDR (default "127.0.0.1:7879"; empty = disabled)
	AuthToken         string        // STATUSD_AUTH_TOKEN (optional, empty = auth disabled)
	NATSURL           string        // STATUSD_NATS_URL (optional, empty = no mirror)
	NATSSubjectPrefix string        // STATUSD_NATS_PREFIX (default "statusd")

	TTL             time.Duration // STATUSD_TTL (default 2s)
	SweepInterval   time.Duration // STATUSD_SWEEP_INTERVAL (default 100ms)
	ProcessInterval time.Duration // STATUSD_PROCESS_INTERVAL (default 100ms)
	UsageInterval   time.Duration // STATUSD_USAGE_INTERVAL (default 100ms)
	ClockInterval   time.Duration // STATUSD_CLOCK_INTERVAL (default 1s)
	HistoryLength   int           // STATUSD_HISTORY_LENGTH (default 100)

	Watch    []string // STATUSD_WATCH (comma separated)
	LogLevel string   // STATUSD_LOG_LEVEL (default "info")
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		SocketName:        "statusd.sock",
		SocketReadTimeout: 5 * time.Second,
		HTTPAddr:          "127.0.0.1:7878",
		GRPCAddr:          "127.0.0.1:7879",
		NATSSubjectPrefix: "statusd",
		TTL:               2 * time.Second,
		SweepInterval:     100 * time.Millisecond,
		ProcessInterval:   100 * time.Millisecond,
		UsageInterval:     100 * time.Millisecond,
		ClockInterval:     time.Second,
		HistoryLength:     100,
		LogLevel:          "info",
	}
}

// fileConfig is the TOML layout. Pointers distinguish unset keys from zero
// values so an explicit empty http_addr can disable the listener.
type fileConfig struct {
	SocketName        *string  `toml:"socket_name"`
	SocketReadTimeout *string  `toml:"socket_read_timeout"`
	HTTPAddr          *string  `toml:"http_addr"`
	GRPCAddr          *string  `toml:"grpc_addr"`
	AuthToken         *string  `toml:"auth_token"`
	NATSURL           *string  `toml:"nats_url"`
	NATSSubjectPrefix *string  `toml:"nats_prefix"`
	TTL               *string  `toml:"ttl"`
	SweepInterval     *string  `toml:"sweep_interval"`
	ProcessInterval   *string  `toml:"process_interval"`
	UsageInterval     *string  `toml:"usage_interval"`
	ClockInterval     *string  `toml:"clock_interval"`
	HistoryLength     *int     `toml:"history_length"`
	Watch             []string `toml:"watch"`
	LogLevel          *string  `toml:"log_level"`
}

// Load resolves the configuration. path names a TOML file; when empty,
// STATUSD_CONFIG is consulted. A missing file named by STATUSD_CONFIG is
// ignored, a missing file named by path is an error.
func Load(path string) (*Config, error) {
	c := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		err := c.applyFile(path)
		if err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
			return nil, err
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyFile(path string) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}

	setString(&c.SocketName, fc.SocketName)
	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.GRPCAddr, fc.GRPCAddr)
	setString(&c.AuthToken, fc.AuthToken)
	setString(&c.NATSURL, fc.NATSURL)
	setString(&c.NATSSubjectPrefix, fc.NATSSubjectPrefix)
	setString(&c.LogLevel, fc.LogLevel)
	if fc.HistoryLength != nil {
		c.HistoryLength = *fc.HistoryLength
	}
	if fc.Watch != nil {
		c.Watch = fc.Watch
	}

	for _, d := range []struct {
		key string
		src *string
		dst *time.Duration
	}{
		{"socket_read_timeout", fc.SocketReadTimeout, &c.SocketReadTimeout},
		{"ttl", fc.TTL, &c.TTL},
		{"sweep_interval", fc.SweepInterval, &c.SweepInterval},
		{"process_interval", fc.ProcessInterval, &c.ProcessInterval},
		{"usage_interval", fc.UsageInterval, &c.UsageInterval},
		{"clock_interval", fc.ClockInterval, &c.ClockInterval},
	} {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("config %s: %s: %w", path, d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.SocketName = envOrDefault("STATUSD_SOCKET_NAME", c.SocketName)
	c.AuthToken = envOrDefault("STATUSD_AUTH_TOKEN", c.AuthToken)
	c.NATSURL = envOrDefault("STATUSD_NATS_URL", c.NATSURL)
	c.NATSSubjectPrefix = envOrDefault("STATUSD_NATS_PREFIX", c.NATSSubjectPrefix)
	c.LogLevel = envOrDefault("STATUSD_LOG_LEVEL", c.LogLevel)

	// Set-but-empty disables the listener.
	if v, ok := os.LookupEnv("STATUSD_HTTP_ADDR"); ok {
		c.HTTPAddr = v
	}
	if v, ok := os.LookupEnv("STATUSD_GRPC_ADDR"); ok {
		c.GRPCAddr = v
	}

	if v := os.Getenv("STATUSD_WATCH"); v != "" {
		c.Watch = SplitList(v)
	}
	if v := os.Getenv("STATUSD_HISTORY_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STATUSD_HISTORY_LENGTH: %w", err)
		}
		c.HistoryLength = n
	}

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"STATUSD_SOCKET_READ_TIMEOUT", &c.SocketReadTimeout},
		{"STATUSD_TTL", &c.TTL},
		{"STATUSD_SWEEP_INTERVAL", &c.SweepInterval},
		{"STATUSD_PROCESS_INTERVAL", &c.ProcessInterval},
		{"STATUSD_USAGE_INTERVAL", &c.UsageInterval},
		{"STATUSD_CLOCK_INTERVAL", &c.ClockInterval},
	} {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	if c.SocketName == "" {
		return fmt.Errorf("socket name is required")
	}
	if strings.ContainsRune(c.SocketName, os.PathSeparator) {
		return fmt.Errorf("socket name %q must not contain a path separator", c.SocketName)
	}
	for name, d := range map[string]time.Duration{
		"ttl":              c.TTL,
		"sweep_interval":   c.SweepInterval,
		"process_interval": c.ProcessInterval,
		"usage_interval":   c.UsageInterval,
		"clock_interval":   c.ClockInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.SocketReadTimeout < 0 {
		return fmt.Errorf("socket_read_timeout must not be negative")
	}
	if c.HistoryLength <= 0 {
		return fmt.Errorf("history_length must be positive, got %d", c.HistoryLength)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
