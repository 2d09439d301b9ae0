package logger

import (
	"fmt"
	"io"
	"time"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// ParseLevel converts a string to a LogLevel
func ParseLevel(s string) (LogLevel, error) {
	switch level := LogLevel(s); level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return level, nil
	default:
		return "", fmt.Errorf("invalid log level: %s", s)
	}
}

// LogFormat represents the output format for logs
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Component identifies which part of the system generated the log
type Component string

const (
	ComponentAPI       Component = "api"
	ComponentCLI       Component = "cli"
	ComponentScheduler Component = "scheduler"
	ComponentService   Component = "service"
	ComponentStore     Component = "store"
	ComponentWorker    Component = "worker"
)

// Config holds the logging configuration for both tiers
type Config struct {
	Level  LogLevel  `json:"level" yaml:"level"`
	Format LogFormat `json:"format" yaml:"format"`

	// Tier 1: Console
	Console ConsoleConfig `json:"console" yaml:"console"`

	// Tier 2: File (optional)
	File FileConfig `json:"file" yaml:"file"`
}

// ConsoleConfig configures console logging
type ConsoleConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Color   bool `json:"color" yaml:"color"` // text format only
	// Output defaults to os.Stderr
	Output io.Writer `json:"-" yaml:"-"`
}

// FileConfig configures rotating file logging
type FileConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`

	BufferSize    int           `json:"buffer_size" yaml:"buffer_size"`       // entries queued before writes block
	BatchSize     int           `json:"batch_size" yaml:"batch_size"`         // entries per write
	BatchInterval time.Duration `json:"batch_interval" yaml:"batch_interval"` // max delay before a partial batch is written
}

// DefaultConfig returns a default logging configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Console: ConsoleConfig{
			Enabled: true,
			Color:   true,
		},
		File: FileConfig{
			Enabled:       false,
			Path:          "/var/log/studyplan/studyplan.log",
			MaxSizeMB:     100,
			MaxBackups:    5,
			MaxAgeDays:    30,
			Compress:      true,
			BufferSize:    10000,
			BatchSize:     100,
			BatchInterval: 100 * time.Millisecond,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := ParseLevel(string(c.Level)); err != nil {
		return err
	}

	switch c.Format {
	case FormatJSON, FormatText:
	default:
		return fmt.Errorf("invalid log format: %s", c.Format)
	}

	if c.File.Enabled {
		if c.File.Path == "" {
			return fmt.Errorf("file logging enabled but path is empty")
		}
		if c.File.MaxSizeMB <= 0 {
			return fmt.Errorf("file max size must be > 0")
		}
		if c.File.BatchSize <= 0 || c.File.BatchInterval <= 0 {
			return fmt.Errorf("file batch size and interval must be > 0")
		}
	}

	return nil
}
