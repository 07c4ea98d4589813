// Package config loads the periodic-logger configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/judwhite/go-svcctl"
	"github.com/judwhite/go-svcctl/internal/logger"
	"github.com/judwhite/go-svcctl/manager"
	"gopkg.in/yaml.v3"
)

// DefaultServiceName is used when the file names no service.
const DefaultServiceName = "periodic-logger"

// Config is the on-disk configuration.
type Config struct {
	// Service is the record add installs. Path and Args are filled in by
	// the command when empty.
	Service manager.Options `yaml:"service"`

	Logging logger.Params `yaml:"logging"`

	// PollInterval is how often the service checks for a stop request.
	// Default: 2s
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Default returns a Config with defaults filled in.
func Default() *Config {
	return &Config{
		Service: manager.Options{
			Name: DefaultServiceName,
		},
		Logging: logger.Params{
			Level:      logger.DefaultLogLevel,
			Format:     logger.DefaultLogFormat,
			MaxFiles:   logger.DefaultMaxLogFiles,
			MaxSizeMiB: logger.DefaultMaxLogSize,
		},
		PollInterval: svcctl.DefaultPollInterval,
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyDefaults fills zero values a partial file left behind.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Service.Name == "" {
		c.Service.Name = defaults.Service.Name
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaults.PollInterval
	}
}

// Validate reports every problem with c.
func (c *Config) Validate() error {
	var result *multierror.Error

	if err := c.Service.Validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("service: %w", err))
	}
	if c.PollInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval))
	}
	if c.Logging.GetLevel() != c.Logging.Level {
		result = multierror.Append(result, fmt.Errorf("logging.level %q is not a log level", c.Logging.Level))
	}
	if c.Logging.GetFormat() != c.Logging.Format {
		result = multierror.Append(result, fmt.Errorf("logging.format must be one of [json, text], got %q", c.Logging.Format))
	}

	return result.ErrorOrNil()
}
