// Package config loads the dmarcpolicy configuration file.
//
// The file is YAML. Every field is optional; absent fields keep the values of
// Default. Durations are written the way time.ParseDuration reads them:
//
//	cache_dir: /var/cache/dmarcpolicy
//	log_level: debug
//	dns:
//	  nameservers: ["9.9.9.9:53", "1.1.1.1:53"]
//	  timeout: 2s
//	public_suffix:
//	  max_age: 72h
//	server:
//	  addr: 127.0.0.1:8053
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/synqronlabs/dmarcpolicy/publicsuffix"
)

// AppName names the per-user cache directory.
const AppName = "dmarcpolicy"

// ErrInvalid is matched by errors from Validate.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the complete configuration.
type Config struct {
	// CacheDir holds the public suffix list and the DNS cache.
	CacheDir string `yaml:"cache_dir" validate:"required"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	DNS          DNSConfig          `yaml:"dns"`
	PublicSuffix PublicSuffixConfig `yaml:"public_suffix"`
	Server       ServerConfig       `yaml:"server"`
}

// DNSConfig configures TXT lookups.
type DNSConfig struct {
	// Nameservers in "host:port" form. Empty means the system resolvers.
	Nameservers []string `yaml:"nameservers" validate:"omitempty,dive,hostname_port|tcp_addr"`

	// DNSSEC sets the DO bit on queries.
	DNSSEC bool `yaml:"dnssec"`

	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	Retries int           `yaml:"retries" validate:"gte=0,lte=10"`

	// CacheMaxAge is how long answers are remembered. Zero disables the cache.
	CacheMaxAge time.Duration `yaml:"cache_max_age" validate:"gte=0"`

	// UseStdlib selects the Go standard library resolver. It still sends
	// queries to Nameservers when any are set. DNSSEC and Retries do not
	// apply to it.
	UseStdlib bool `yaml:"use_stdlib"`
}

// PublicSuffixConfig configures the public suffix list source.
type PublicSuffixConfig struct {
	URL string `yaml:"url" validate:"required,url"`

	// MaxAge is the age after which the cached list is downloaded again.
	MaxAge time.Duration `yaml:"max_age" validate:"gt=0"`

	// RefreshInterval is how often a running server checks MaxAge.
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"gt=0"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`

	// ShutdownTimeout bounds the wait for in-flight requests on shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		CacheDir: defaultCacheDir(),
		LogLevel: "info",
		DNS: DNSConfig{
			Timeout:     3 * time.Second,
			Retries:     2,
			CacheMaxAge: 24 * time.Hour,
		},
		PublicSuffix: PublicSuffixConfig{
			URL:             publicsuffix.DefaultURL,
			MaxAge:          7 * 24 * time.Hour,
			RefreshInterval: time.Hour,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8053",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// defaultCacheDir returns $XDG_CACHE_HOME/dmarcpolicy, falling back to the
// working directory when no user cache directory is known.
func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", "."+AppName)
	}
	return filepath.Join(dir, AppName)
}

// Load reads and validates the file at path. An empty path yields Default.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result. Unknown keys
// are rejected.
func Parse(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Path returns name inside the cache directory.
func (c Config) Path(name string) string {
	return filepath.Join(c.CacheDir, name)
}

// EnsureCacheDir creates the cache directory if needed.
func (c Config) EnsureCacheDir() error {
	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		return fmt.Errorf("config: creating cache directory: %w", err)
	}
	return nil
}

// Level returns LogLevel as a slog.Level.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
