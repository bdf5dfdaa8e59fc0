package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config carries the aggregator's builder inputs (spec.md §6) plus the
// transport and logging settings taskpulsed needs to start a process
// around it.
type Config struct {
	// PublishInterval is the cadence of the aggregator's periodic
	// publisher.
	PublishInterval time.Duration `yaml:"publishInterval"`
	// Retention is how long a closed task's stats survive past close.
	// A closed task with unpublished changes and no watcher is dropped
	// without waiting for it.
	Retention time.Duration `yaml:"retention"`
	// RecordingPath, if set, is where raw events are persisted via
	// aggregator.FileRecorder.
	RecordingPath string `yaml:"recordingPath"`

	// GRPCAddr is the listen address for the Aggregator's gRPC
	// transport (pkg/api.Server).
	GRPCAddr string `yaml:"grpcAddr"`
	// MetricsAddr is the listen address for Prometheus metrics and
	// HTTP health endpoints.
	MetricsAddr string `yaml:"metricsAddr"`

	LogLevel string `yaml:"logLevel"`
	LogJSON  bool   `yaml:"logJSON"`
}

// Default returns the configuration taskpulsed starts from before any
// file or flags are applied.
func Default() Config {
	return Config{
		PublishInterval: time.Second,
		Retention:       6 * time.Hour,
		GRPCAddr:        "127.0.0.1:9100",
		MetricsAddr:     "127.0.0.1:9101",
		LogLevel:        "info",
	}
}

// LoadFile overlays cfg with values present in the YAML file at path.
// Fields absent from the file are left untouched, so a partial file
// only overrides what it mentions.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyFlags overlays cfg with every flag in flags that was actually
// set on the command line, so flags always win over the file and the
// file always wins over the built-in default — cobra's own
// Changed bookkeeping is what lets an unset flag fall through instead
// of stomping the file's value with its zero default.
func (c *Config) ApplyFlags(flags *pflag.FlagSet) {
	if flags.Changed("publish-interval") {
		c.PublishInterval, _ = flags.GetDuration("publish-interval")
	}
	if flags.Changed("retention") {
		c.Retention, _ = flags.GetDuration("retention")
	}
	if flags.Changed("record") {
		c.RecordingPath, _ = flags.GetString("record")
	}
	if flags.Changed("grpc-addr") {
		c.GRPCAddr, _ = flags.GetString("grpc-addr")
	}
	if flags.Changed("metrics-addr") {
		c.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("log-level") {
		c.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		c.LogJSON, _ = flags.GetBool("log-json")
	}
}

// Validate reports the first configuration error found, if any.
func (c Config) Validate() error {
	if c.PublishInterval <= 0 {
		return fmt.Errorf("publishInterval must be positive, got %s", c.PublishInterval)
	}
	if c.Retention <= 0 {
		return fmt.Errorf("retention must be positive, got %s", c.Retention)
	}
	if c.GRPCAddr == "" {
		return fmt.Errorf("grpcAddr must not be empty")
	}
	if c.MetricsAddr == "" {
		return fmt.Errorf("metricsAddr must not be empty")
	}
	return nil
}
