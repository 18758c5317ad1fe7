// Package config provides configuration loading and validation for ipsniper.
// It handles reading configuration from files, providing defaults, and ensuring
// all required settings are properly set.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lc/ipsniper/internal/engine"
	"github.com/lc/ipsniper/internal/filesys"
)

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNoConfig is returned when the configuration file is not found.
	ErrNoConfig = errors.New("configuration file not found")
)

const (
	// DefaultConfigPath is the default path for the configuration file,
	// relative to the user's home directory.
	DefaultConfigPath = ".ipsniper/config.yaml"
	// DefaultInputFile is the default domain list.
	DefaultInputFile = "domains.txt"
	// DefaultOutputFile is the default sink for matching domains.
	DefaultOutputFile = "matching_domains.txt"
	// DefaultDNSTimeout is the default per-query timeout.
	DefaultDNSTimeout = 5 * time.Second
	// DefaultRetryDelay is the pause between timed-out attempts.
	DefaultRetryDelay = 500 * time.Millisecond
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 2
	// DefaultConcurrency is the in-flight lookup budget.
	DefaultConcurrency = 50
	// DefaultFlushThreshold is the set size that triggers a flush.
	DefaultFlushThreshold = 100
	// DefaultMonitorInterval is the rate sampling period.
	DefaultMonitorInterval = time.Second
)

// Scheduling strategies.
const (
	StrategyBatch     = engine.StrategyBatch
	StrategySemaphore = engine.StrategySemaphore
	StrategyPool      = engine.StrategyPool
)

// Flush failure policies.
const (
	OnErrorRequeue = engine.OnErrorRequeue
	OnErrorAbort   = engine.OnErrorAbort
)

// Output modes.
const (
	ModeTruncate = string(filesys.ModeTruncate)
	ModeAppend   = string(filesys.ModeAppend)
)

// DefaultServers are the upstream resolvers queried when none are configured.
var DefaultServers = []string{
	"101.101.101.101",
	"168.95.1.1",
	"168.95.192.1",
	"61.31.233.1",
	"203.133.1.7",
	"203.133.1.6",
	"210.243.121.155",
}

// DefaultTargets is the target IP set used when none is configured.
var DefaultTargets = []string{"182.173.0.181"}

// Config holds the application configuration.
type Config struct {
	Input     string          `yaml:"input"`
	Output    OutputConfig    `yaml:"output"`
	Resolvers ResolversConfig `yaml:"resolvers"`
	Targets   []string        `yaml:"targets"`
	Retry     RetryConfig     `yaml:"retry"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Flush     FlushConfig     `yaml:"flush"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Status    StatusConfig    `yaml:"status"`
}

// OutputConfig describes the match sink.
type OutputConfig struct {
	Path string `yaml:"path"`
	Mode string `yaml:"mode"`
}

// ResolversConfig holds the upstream DNS servers and their query timeout.
type ResolversConfig struct {
	Servers []string      `yaml:"servers"`
	Timeout time.Duration `yaml:"timeout"`
}

// RetryConfig holds the timeout retry policy.
type RetryConfig struct {
	Max   int           `yaml:"max"`
	Delay time.Duration `yaml:"delay"`
}

// SchedulerConfig holds the fan-out policy.
type SchedulerConfig struct {
	Strategy    string `yaml:"strategy"`
	Concurrency int    `yaml:"concurrency"`
}

// FlushConfig holds the incremental persistence policy.
type FlushConfig struct {
	Threshold int    `yaml:"threshold"`
	OnError   string `yaml:"on_error"`
}

// MonitorConfig holds the rate monitor settings.
type MonitorConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// StatusConfig holds the optional live status endpoint.
type StatusConfig struct {
	Socket string `yaml:"socket"`
}

// Provider defines the interface for loading configuration.
type Provider interface {
	Load() (*Config, error)
}

// FSProvider implements Provider using the local filesystem.
type FSProvider struct {
	fs   filesys.ReadWriteFS
	path string
}

var _ Provider = (*FSProvider)(nil)

// New creates a provider for path, or for ~/.ipsniper/config.yaml when path
// is empty. If the home directory cannot be determined, it falls back to the
// current directory.
func New(path string) *FSProvider {
	if path != "" {
		return NewWithPath(filesys.OS(), path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not determine home directory: %v\n", err)
		home = ""
	}
	return NewWithPath(filesys.OS(), filepath.Join(home, DefaultConfigPath))
}

// NewWithPath creates a new provider with a specific config path.
// It allows specifying both the filesystem implementation and the path to use.
func NewWithPath(fs filesys.ReadWriteFS, path string) *FSProvider {
	return &FSProvider{
		fs:   fs,
		path: path,
	}
}

// Default returns a default configuration with preset values.
// This is used when no configuration file exists.
func Default() *Config {
	return &Config{
		Input: DefaultInputFile,
		Output: OutputConfig{
			Path: DefaultOutputFile,
			Mode: ModeTruncate,
		},
		Resolvers: ResolversConfig{
			Servers: append([]string(nil), DefaultServers...),
			Timeout: DefaultDNSTimeout,
		},
		Targets: append([]string(nil), DefaultTargets...),
		Retry: RetryConfig{
			Max:   DefaultMaxRetries,
			Delay: DefaultRetryDelay,
		},
		Scheduler: SchedulerConfig{
			Strategy:    StrategySemaphore,
			Concurrency: DefaultConcurrency,
		},
		Flush: FlushConfig{
			Threshold: DefaultFlushThreshold,
			OnError:   OnErrorRequeue,
		},
		Monitor: MonitorConfig{
			Interval: DefaultMonitorInterval,
		},
	}
}

// Load loads the configuration from the provider's path. Keys absent from
// the file keep their default values.
func (p *FSProvider) Load() (*Config, error) {
	_ = p.ensureConfigDir()

	cfg, err := p.loadAndParse()
	if err != nil {
		if errors.Is(err, ErrNoConfig) {
			return Default(), nil
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// Validate checks the configuration to ensure all required fields are set.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Input) == "" {
		return errors.New("input path cannot be empty")
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		return errors.New("output path cannot be empty")
	}
	switch c.Output.Mode {
	case ModeTruncate, ModeAppend:
	default:
		return fmt.Errorf("unknown output mode %q", c.Output.Mode)
	}
	if len(c.Resolvers.Servers) == 0 {
		return errors.New("at least one DNS server is required")
	}
	if c.Resolvers.Timeout <= 0 {
		return errors.New("DNS timeout must be positive")
	}
	if len(c.Targets) == 0 {
		return errors.New("at least one target IP is required")
	}
	for _, t := range c.Targets {
		if _, err := netip.ParseAddr(strings.TrimSpace(t)); err != nil {
			return fmt.Errorf("invalid target IP %q", t)
		}
	}
	if c.Retry.Max < 0 {
		return errors.New("max retries cannot be negative")
	}
	if c.Retry.Delay < 0 {
		return errors.New("retry delay cannot be negative")
	}
	switch c.Scheduler.Strategy {
	case StrategyBatch, StrategySemaphore, StrategyPool:
	default:
		return fmt.Errorf("unknown scheduler strategy %q", c.Scheduler.Strategy)
	}
	if c.Scheduler.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	if c.Flush.Threshold < 1 {
		return errors.New("flush threshold must be at least 1")
	}
	switch c.Flush.OnError {
	case OnErrorRequeue, OnErrorAbort:
	default:
		return fmt.Errorf("unknown flush error policy %q", c.Flush.OnError)
	}
	if c.Monitor.Interval <= 0 {
		return errors.New("monitor interval must be positive")
	}
	return nil
}

// Path returns the file the provider reads from and saves to.
func (p *FSProvider) Path() string { return p.path }

// Save validates cfg and writes it to the provider's path as YAML.
// An existing file is only replaced when overwrite is set.
func (p *FSProvider) Save(cfg *Config, overwrite bool) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !overwrite {
		if _, err := p.fs.Stat(p.path); err == nil {
			return fmt.Errorf("config file %s already exists", p.path)
		}
	}
	if err := p.ensureConfigDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := p.fs.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func (p *FSProvider) ensureConfigDir() error {
	dir := filepath.Dir(p.path)
	if _, err := p.fs.Stat(dir); os.IsNotExist(err) {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	return nil
}

func (p *FSProvider) loadAndParse() (*Config, error) {
	f, err := p.fs.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	cfg := Default()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// empty file: all defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("decoding config file: %w", err)
	}

	return cfg, nil
}
