package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "cddns.yaml"
	envPrefix   = "CDDNS_"

	defaultInventoryPath   = "inventory.yaml"
	defaultWatchIntervalMS = 30000
	defaultRequestTimeout  = 10000
	defaultLogLevel        = "info"
	defaultLogEnv          = "dev"
)

var (
	ErrMissingToken    = errors.New("missing API token")
	ErrInvalidInterval = errors.New("watch interval must not be negative")
)

var defaultIPSources = []string{"dns", "web"}

type Config struct {
	Token            string    `yaml:"token" toml:"token"`
	RequestTimeoutMS int       `yaml:"request_timeout_ms" toml:"request_timeout_ms"`
	StatePath        string    `yaml:"state_path" toml:"state_path"`
	List             List      `yaml:"list" toml:"list"`
	Inventory        Inventory `yaml:"inventory" toml:"inventory"`
	IP               IP        `yaml:"ip" toml:"ip"`
	Metrics          Metrics   `yaml:"metrics" toml:"metrics"`
	Log              Log       `yaml:"log" toml:"log"`
}

// List holds regex filters applied when listing zones and records.
type List struct {
	IncludeZones   []string `yaml:"include_zones,omitempty" toml:"include_zones,omitempty"`
	IgnoreZones    []string `yaml:"ignore_zones,omitempty" toml:"ignore_zones,omitempty"`
	IncludeRecords []string `yaml:"include_records,omitempty" toml:"include_records,omitempty"`
	IgnoreRecords  []string `yaml:"ignore_records,omitempty" toml:"ignore_records,omitempty"`
}

type Inventory struct {
	Path            string `yaml:"path" toml:"path"`
	ForceUpdate     bool   `yaml:"force_update" toml:"force_update"`
	ForcePrune      bool   `yaml:"force_prune" toml:"force_prune"`
	WatchIntervalMS int    `yaml:"watch_interval_ms" toml:"watch_interval_ms"`
	Reload          *bool  `yaml:"reload,omitempty" toml:"reload,omitempty"`
}

type IP struct {
	Sources []string `yaml:"sources" toml:"sources"`
	IPv4    string   `yaml:"ipv4,omitempty" toml:"ipv4,omitempty"`
	IPv6    string   `yaml:"ipv6,omitempty" toml:"ipv6,omitempty"`
	WebURLs []string `yaml:"web_urls,omitempty" toml:"web_urls,omitempty"`
}

type Metrics struct {
	Addr string `yaml:"addr" toml:"addr"`
}

type Log struct {
	Level string `yaml:"level" toml:"level"`
	Env   string `yaml:"env" toml:"env"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the config file at path, then applies defaults and CDDNS_*
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	configFile := true
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("fail find config file, proceeding", "path", path)
		configFile = false
	}

	var cfg Config
	if configFile {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := decode(path, data, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv(os.LookupEnv)
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if isTOML(path) {
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func (c *Config) applyDefaults() {
	if c.RequestTimeoutMS == 0 {
		c.RequestTimeoutMS = defaultRequestTimeout
	}
	if c.Inventory.Path == "" {
		c.Inventory.Path = defaultInventoryPath
	}
	if c.Inventory.WatchIntervalMS == 0 {
		c.Inventory.WatchIntervalMS = defaultWatchIntervalMS
	}
	if c.Inventory.Reload == nil {
		reload := true
		c.Inventory.Reload = &reload
	}
	if len(c.IP.Sources) == 0 {
		c.IP.Sources = append([]string(nil), defaultIPSources...)
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.Env == "" {
		c.Log.Env = defaultLogEnv
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	env := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		return v, ok && v != ""
	}

	if token, ok := env("TOKEN"); ok {
		c.Token = token
	}
	if path, ok := env("INVENTORY_PATH"); ok {
		c.Inventory.Path = path
	}
	if v, ok := env("FORCE_UPDATE"); ok {
		setBool(&c.Inventory.ForceUpdate, "force_update", v)
	}
	if v, ok := env("FORCE_PRUNE"); ok {
		setBool(&c.Inventory.ForcePrune, "force_prune", v)
	}
	if v, ok := env("WATCH_INTERVAL_MS"); ok {
		setInt(&c.Inventory.WatchIntervalMS, "watch_interval_ms", v)
	}
	if v, ok := env("REQUEST_TIMEOUT_MS"); ok {
		setInt(&c.RequestTimeoutMS, "request_timeout_ms", v)
	}
	if statePath, ok := env("STATE_PATH"); ok {
		c.StatePath = statePath
	}
	if addr, ok := env("METRICS_ADDR"); ok {
		c.Metrics.Addr = addr
	}
	if sources, ok := env("IP_SOURCES"); ok {
		c.IP.Sources = strings.Split(sources, ",")
	}
	if loglevel, ok := env("LOG_LEVEL"); ok {
		c.Log.Level = loglevel
	}
	if logenv, ok := env("LOG_ENV"); ok {
		c.Log.Env = logenv
	}
}

func setBool(dst *bool, name, v string) {
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Default().Warn("fail parse bool from env", "field", name, "value", v, "error", err)
		return
	}
	*dst = b
}

func setInt(dst *int, name, v string) {
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Default().Warn("fail parse int from env", "field", name, "value", v, "error", err)
		return
	}
	*dst = n
}

// Validate reports problems that must stop the process before any cycle runs.
func (c *Config) Validate() error {
	var errs []error
	if c.Inventory.WatchIntervalMS < 0 {
		errs = append(errs, ErrInvalidInterval)
	}
	if c.RequestTimeoutMS <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	for _, s := range c.IP.Sources {
		switch s {
		case "static", "dns", "web":
		default:
			errs = append(errs, fmt.Errorf("unknown ip source %q", s))
		}
	}
	if c.IP.IPv4 != "" {
		if a, err := netip.ParseAddr(c.IP.IPv4); err != nil || !a.Is4() {
			errs = append(errs, fmt.Errorf("ip.ipv4 %q is not an IPv4 address", c.IP.IPv4))
		}
	}
	if c.IP.IPv6 != "" {
		if a, err := netip.ParseAddr(c.IP.IPv6); err != nil || !a.Is6() {
			errs = append(errs, fmt.Errorf("ip.ipv6 %q is not an IPv6 address", c.IP.IPv6))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Inventory.WatchIntervalMS) * time.Millisecond
}

func (c *Config) Reload() bool {
	return c.Inventory.Reload == nil || *c.Inventory.Reload
}

// RequireToken fails when no API token was configured.
func (c *Config) RequireToken() error {
	if c.Token == "" {
		return fmt.Errorf("%w: set token in the config file or %sTOKEN", ErrMissingToken, envPrefix)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	r := *c
	if r.Token != "" {
		r.Token = "<redacted>"
	}
	return r
}

// Save writes cfg to path, as TOML when the extension is .toml and YAML otherwise.
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
