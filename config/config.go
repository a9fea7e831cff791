package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blesswinsamuel/dht11_exporter/dht"
)

// Pin backends.
const (
	BackendPeriph = "periph"
	BackendEmbd   = "embd"
	BackendSim    = "sim"
)

// Config represents the exporter configuration.
type Config struct {
	Listen      string `yaml:"listen"`
	MetricsPath string `yaml:"metrics_path"`

	Backend string `yaml:"backend"`
	// Pin is a periph.io pin name (e.g. "P1_7", "GPIO4") or an embd pin key.
	Pin string `yaml:"pin"`

	// SamplesLog2 > 0 averages 2^SamplesLog2 reads per scrape instead of retrying single reads.
	SamplesLog2 int `yaml:"samples_log2"`
	MaxRetries  int `yaml:"max_retries"`
	// MinInterval is the shortest time between two sensor reads; scrapes in
	// between are served the previous values.
	MinInterval time.Duration `yaml:"min_interval"`
	// ScrapeTimeout is how long the scraper waits for a response. Averaged
	// reads must finish within it.
	ScrapeTimeout time.Duration `yaml:"scrape_timeout"`

	LogLevel string `yaml:"log_level"`

	Sim SimConfig `yaml:"sim"`
}

// SimConfig configures the simulated sensor used by the sim backend.
type SimConfig struct {
	ResponseLatencyUs uint32     `yaml:"response_latency_us"`
	Frames            []SimFrame `yaml:"frames"`
}

// SimFrame is one reading the simulated sensor sends. The checksum is computed.
type SimFrame struct {
	Humidity        uint8 `yaml:"humidity"`
	HumidityFrac    uint8 `yaml:"humidity_frac"`
	Temperature     uint8 `yaml:"temperature"`
	TemperatureFrac uint8 `yaml:"temperature_frac"`
}

// Frame returns the wire frame for f.
func (f SimFrame) Frame() dht.Frame {
	return dht.NewFrame(f.Humidity, f.HumidityFrac, f.Temperature, f.TemperatureFrac)
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Listen:        "localhost:9101",
		MetricsPath:   "/metrics",
		Backend:       BackendPeriph,
		Pin:           "P1_7",
		SamplesLog2:   0,
		MaxRetries:    11,
		MinInterval:   5 * time.Second,
		ScrapeTimeout: 10 * time.Second, // Prometheus default
		LogLevel:      "info",
		Sim: SimConfig{
			ResponseLatencyUs: 20,
			Frames:            []SimFrame{{Humidity: 45, Temperature: 23}},
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ensureDefaults()

	return cfg, nil
}

// LoadFromFlags loads configuration from a YAML file (optional, -config) and flags.
// Flags that are set override values from the file.
func LoadFromFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	def := Default()
	cfgPath := fs.String("config", "", "path to YAML config file")
	listen := fs.String("listen", def.Listen, "listen address")
	metricsPath := fs.String("metrics_path", def.MetricsPath, "path under which metrics are served")
	backend := fs.String("backend", def.Backend, "pin backend: periph|embd|sim")
	pin := fs.String("pin", def.Pin, "data pin name")
	samplesLog2 := fs.Int("samples_log2", def.SamplesLog2, "average 2^n reads per scrape (0-14)")
	maxRetries := fs.Int("max_retries", def.MaxRetries, "read attempts per scrape when not averaging")
	minInterval := fs.Duration("min_interval", def.MinInterval, "minimum time between sensor reads")
	scrapeTimeout := fs.Duration("scrape_timeout", def.ScrapeTimeout, "scrape timeout an averaged read must fit in")
	logLevel := fs.String("log_level", def.LogLevel, "log level: debug|info|warn|error|fatal")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := def
	if *cfgPath != "" {
		var err error
		if cfg, err = Load(*cfgPath); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = *listen
		case "metrics_path":
			cfg.MetricsPath = *metricsPath
		case "backend":
			cfg.Backend = *backend
		case "pin":
			cfg.Pin = *pin
		case "samples_log2":
			cfg.SamplesLog2 = *samplesLog2
		case "max_retries":
			cfg.MaxRetries = *maxRetries
		case "min_interval":
			cfg.MinInterval = *minInterval
		case "scrape_timeout":
			cfg.ScrapeTimeout = *scrapeTimeout
		case "log_level":
			cfg.LogLevel = *logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the exporter cannot run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendPeriph, BackendEmbd:
		if c.Pin == "" {
			return fmt.Errorf("backend %s needs a pin", c.Backend)
		}
	case BackendSim:
		if len(c.Sim.Frames) == 0 {
			return errors.New("sim backend needs at least one frame")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.SamplesLog2 < 0 || c.SamplesLog2 > dht.MaxSamplesLog2 {
		return fmt.Errorf("samples_log2 must be within 0..%d, got %d", dht.MaxSamplesLog2, c.SamplesLog2)
	}
	if c.ScrapeTimeout <= 0 {
		return fmt.Errorf("scrape_timeout must be positive, got %v", c.ScrapeTimeout)
	}
	if d := AveragingDuration(c.SamplesLog2); c.SamplesLog2 > 0 && d > c.ScrapeTimeout {
		return fmt.Errorf("samples_log2 %d takes about %v per read, longer than scrape_timeout %v", c.SamplesLog2, d, c.ScrapeTimeout)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be > 0, got %d", c.MaxRetries)
	}
	if c.MinInterval < dht.MinSampleInterval {
		return fmt.Errorf("min_interval must be at least %v, got %v", dht.MinSampleInterval, c.MinInterval)
	}
	if !strings.HasPrefix(c.MetricsPath, "/") {
		return fmt.Errorf("metrics_path must start with /, got %q", c.MetricsPath)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// AveragingDuration bounds how long averaging 2^samplesLog2 reads takes.
func AveragingDuration(samplesLog2 int) time.Duration {
	return time.Duration(1<<uint(samplesLog2)) * dht.MinSampleInterval
}

// ensureDefaults fills fields a config file left empty.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.MetricsPath == "" {
		c.MetricsPath = def.MetricsPath
	}
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.MinInterval == 0 {
		c.MinInterval = def.MinInterval
	}
	if c.ScrapeTimeout == 0 {
		c.ScrapeTimeout = def.ScrapeTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Sim.ResponseLatencyUs == 0 {
		c.Sim.ResponseLatencyUs = def.Sim.ResponseLatencyUs
	}
}
