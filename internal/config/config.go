// Package config loads nudge settings: built-in defaults, then an optional
// YAML file (XDG config dir or an explicit path), then NUDGE_* environment
// variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/nudge/internal/model"
)

const appName = "nudge"

type Config struct {
	DBPath     string           `yaml:"db_path"`
	Title      string           `yaml:"title"`
	Platform   model.Platform   `yaml:"platform"`
	Permission string           `yaml:"permission"`
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Device     DeviceConfig     `yaml:"device"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Push       PushConfig       `yaml:"push"`
	Desktop    DesktopConfig    `yaml:"desktop"`
	API        APIConfig        `yaml:"api"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File enables rotating file output in addition to stderr.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	OriginPatterns []string `yaml:"origin_patterns"`
	// RateLimit is requests per minute per client; 0 disables it.
	RateLimit int `yaml:"rate_limit"`
	// TrustedProxies lists addresses or CIDRs whose X-Forwarded-For header
	// is believed. Empty means the header is ignored.
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
}

type DeviceConfig struct {
	Physical bool `yaml:"physical"`
}

type DispatcherConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Retention time.Duration `yaml:"retention"`
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
	// UseKeyring reads the private key from the OS keyring instead of this file.
	UseKeyring bool `yaml:"use_keyring"`
}

type DesktopConfig struct {
	Enabled bool `yaml:"enabled"`
}

type APIConfig struct {
	TokenHash string `yaml:"token_hash"`
}

// Permission modes for the local platform's prompt.
const (
	PermissionGrant  = "grant"
	PermissionDeny   = "deny"
	PermissionPrompt = "prompt"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:     filepath.Join(dataDir(), appName+".db"),
		Title:      "Habit Reminder",
		Platform:   model.PlatformIOS,
		Permission: PermissionPrompt,
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		HTTP: HTTPConfig{
			Addr:      "127.0.0.1:8787",
			RateLimit: 120,
		},
		Device: DeviceConfig{Physical: true},
		Dispatcher: DispatcherConfig{
			Interval:  30 * time.Second,
			Retention: 30 * 24 * time.Hour,
		},
		Push: PushConfig{
			Subscriber: "mailto:noreply@nudge.local",
		},
		Desktop: DesktopConfig{Enabled: true},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/nudge/config.yaml, falling back to
// ~/.config/nudge/config.yaml.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "config.yaml")
}

func dataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", appName)
}

// Load builds the configuration. An empty path uses DefaultPath and a missing
// default file is not an error; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.decode(data); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays YAML onto c; keys absent from the document keep their
// current values.
func (c *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"NUDGE_DB_PATH":           &c.DBPath,
		"NUDGE_TITLE":             &c.Title,
		"NUDGE_PERMISSION":        &c.Permission,
		"NUDGE_LOG_LEVEL":         &c.Log.Level,
		"NUDGE_LOG_FORMAT":        &c.Log.Format,
		"NUDGE_LOG_FILE":          &c.Log.File,
		"NUDGE_HTTP_ADDR":         &c.HTTP.Addr,
		"NUDGE_VAPID_PUBLIC_KEY":  &c.Push.VAPIDPublicKey,
		"NUDGE_VAPID_PRIVATE_KEY": &c.Push.VAPIDPrivateKey,
		"NUDGE_VAPID_SUBSCRIBER":  &c.Push.Subscriber,
		"NUDGE_API_TOKEN_HASH":    &c.API.TokenHash,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	if v, ok := lookup("NUDGE_PLATFORM"); ok {
		c.Platform = model.Platform(v)
	}

	flags := map[string]*bool{
		"NUDGE_DEVICE_PHYSICAL":  &c.Device.Physical,
		"NUDGE_DESKTOP_ENABLED":  &c.Desktop.Enabled,
		"NUDGE_PUSH_USE_KEYRING": &c.Push.UseKeyring,
	}
	for key, dst := range flags {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}

	if v, ok := lookup("NUDGE_DISPATCH_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NUDGE_DISPATCH_INTERVAL: %w", err)
		}
		c.Dispatcher.Interval = d
	}
	if v, ok := lookup("NUDGE_HTTP_RATE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NUDGE_HTTP_RATE_LIMIT: %w", err)
		}
		c.HTTP.RateLimit = n
	}
	if v, ok := lookup("NUDGE_HTTP_TRUSTED_PROXIES"); ok {
		c.HTTP.TrustedProxies = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.HTTP.TrustedProxies = append(c.HTTP.TrustedProxies, p)
			}
		}
	}
	return nil
}

// Validate rejects values the rest of the program cannot act on.
func (c *Config) Validate() error {
	switch c.Platform {
	case model.PlatformIOS, model.PlatformAndroid, model.PlatformNone:
	default:
		return fmt.Errorf("platform %q: must be ios, android or none", c.Platform)
	}
	switch c.Permission {
	case PermissionGrant, PermissionDeny, PermissionPrompt:
	default:
		return fmt.Errorf("permission %q: must be grant, deny or prompt", c.Permission)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q: must be text or json", c.Log.Format)
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.Dispatcher.Interval <= 0 {
		return fmt.Errorf("dispatcher.interval %s: must be positive", c.Dispatcher.Interval)
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit %d: must not be negative", c.HTTP.RateLimit)
	}
	for _, p := range c.HTTP.TrustedProxies {
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			return fmt.Errorf("http.trusted_proxies %q: not an address or CIDR", p)
		}
	}
	return nil
}

// Save writes c as YAML to path, creating parent directories.
func Save(path string, c *Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
