package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muaviaUsmani/studyplan/internal/logger"
	"github.com/muaviaUsmani/studyplan/internal/timeline"
)

// Config holds all configuration for the studyplan services
type Config struct {
	// RedisURL is the connection URL for the plan store
	RedisURL string
	// APIPort is the port the API server listens on
	APIPort string
	// PlanTTL is how long a stored plan is kept
	PlanTTL time.Duration
	// ReplanEnabled enables periodic re-planning in the scheduler daemon
	ReplanEnabled bool
	// ReplanInterval is how often the scheduler checks for due re-plans
	ReplanInterval time.Duration
	// WorkerConcurrency is the number of re-plans that can run at once
	WorkerConcurrency int
	// RunTimeout bounds a single generate or re-plan run, including storage
	RunTimeout time.Duration
	// SchedulesFile is an optional YAML file of re-plan schedules
	SchedulesFile string
	// PreferencesFile is an optional YAML file of default preferences and policy
	PreferencesFile string
	// Preferences are the defaults applied when a request does not override them
	Preferences timeline.Preferences
	// Policy holds the planner's heuristic constants
	Policy timeline.Policy
	// Logging configuration
	Logging *logger.Config
}

// SchedulingFile is the YAML document read from PREFERENCES_FILE or the CLI --prefs flag
type SchedulingFile struct {
	Preferences timeline.Preferences `yaml:"preferences"`
	Policy      timeline.Policy      `yaml:"policy"`
}

// LoadConfig loads configuration from environment variables with sensible defaults.
// Preference precedence is: built-in defaults, then PREFERENCES_FILE, then individual env vars.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		APIPort:           getEnv("API_PORT", "8080"),
		PlanTTL:           getEnvAsDuration("PLAN_TTL", 30*24*time.Hour),
		ReplanEnabled:     getEnvAsBool("REPLAN_ENABLED", true),
		ReplanInterval:    getEnvAsDuration("REPLAN_INTERVAL", 30*time.Second),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),
		RunTimeout:        getEnvAsDuration("RUN_TIMEOUT", 30*time.Second),
		SchedulesFile:     getEnv("SCHEDULES_FILE", ""),
		PreferencesFile:   getEnv("PREFERENCES_FILE", ""),
		Preferences:       timeline.DefaultPreferences(),
		Logging:           loadLoggingConfig(),
	}

	if cfg.PreferencesFile != "" {
		prefs, policy, err := LoadSchedulingFile(cfg.PreferencesFile, cfg.Preferences)
		if err != nil {
			return nil, err
		}
		cfg.Preferences = prefs
		cfg.Policy = policy
	}

	if err := applyPreferenceEnv(&cfg.Preferences); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL cannot be empty")
	}
	if cfg.APIPort == "" {
		return nil, fmt.Errorf("API_PORT cannot be empty")
	}
	if cfg.WorkerConcurrency < 1 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if cfg.PlanTTL < 0 {
		return nil, fmt.Errorf("PLAN_TTL cannot be negative")
	}
	if cfg.ReplanInterval <= 0 {
		return nil, fmt.Errorf("REPLAN_INTERVAL must be positive")
	}
	if cfg.RunTimeout <= 0 {
		return nil, fmt.Errorf("RUN_TIMEOUT must be positive")
	}

	if _, err := timeline.NewEngine(cfg.Preferences, cfg.Policy); err != nil {
		return nil, fmt.Errorf("invalid scheduling config: %w", err)
	}

	if err := cfg.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	return cfg, nil
}

// LoadSchedulingFile reads a preferences/policy YAML file. Keys missing from the
// preferences section keep the values in defaults; missing policy keys fall back
// to the planner defaults.
func LoadSchedulingFile(path string, defaults timeline.Preferences) (timeline.Preferences, timeline.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return timeline.Preferences{}, timeline.Policy{}, fmt.Errorf("failed to read preferences file: %w", err)
	}

	// Unknown keys are rejected so a misspelled setting does not silently keep its default
	doc := SchedulingFile{Preferences: defaults}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return timeline.Preferences{}, timeline.Policy{}, fmt.Errorf("failed to parse preferences file %s: %w", path, err)
	}

	if _, err := timeline.NewEngine(doc.Preferences, doc.Policy); err != nil {
		return timeline.Preferences{}, timeline.Policy{}, fmt.Errorf("preferences file %s: %w", path, err)
	}
	return doc.Preferences, doc.Policy, nil
}

// applyPreferenceEnv overrides individual preference fields from the environment.
// Unlike the other settings, a malformed value is an error rather than a silent default.
func applyPreferenceEnv(prefs *timeline.Preferences) error {
	if v := os.Getenv("MAX_HOURS_PER_DAY"); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_HOURS_PER_DAY %q: %w", v, err)
		}
		prefs.MaxHoursPerDay = hours
	}
	if v := os.Getenv("PREFERRED_START"); v != "" {
		start, err := timeline.ParseClockTime(v)
		if err != nil {
			return fmt.Errorf("invalid PREFERRED_START: %w", err)
		}
		prefs.PreferredStart = start
	}
	if v := os.Getenv("PREFERRED_END"); v != "" {
		end, err := timeline.ParseClockTime(v)
		if err != nil {
			return fmt.Errorf("invalid PREFERRED_END: %w", err)
		}
		prefs.PreferredEnd = end
	}
	if v := os.Getenv("MIN_STUDY_BLOCK_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MIN_STUDY_BLOCK_MINUTES %q: %w", v, err)
		}
		prefs.MinStudyBlockMinutes = minutes
	}
	if v := os.Getenv("BREAK_DURATION_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BREAK_DURATION_MINUTES %q: %w", v, err)
		}
		prefs.BreakDurationMinutes = minutes
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// loadLoggingConfig loads logging configuration from environment variables
func loadLoggingConfig() *logger.Config {
	cfg := logger.DefaultConfig()

	if level := getEnv("LOG_LEVEL", ""); level != "" {
		cfg.Level = logger.LogLevel(level)
	}
	if format := getEnv("LOG_FORMAT", ""); format != "" {
		cfg.Format = logger.LogFormat(format)
	}

	// Tier 1: Console
	cfg.Console.Enabled = getEnvAsBool("LOG_CONSOLE_ENABLED", true)
	cfg.Console.Color = getEnvAsBool("LOG_COLOR", true)

	// Tier 2: File
	cfg.File.Enabled = getEnvAsBool("LOG_FILE_ENABLED", false)
	cfg.File.Path = getEnv("LOG_FILE_PATH", cfg.File.Path)
	cfg.File.MaxSizeMB = getEnvAsInt("LOG_FILE_MAX_SIZE_MB", cfg.File.MaxSizeMB)
	cfg.File.MaxBackups = getEnvAsInt("LOG_FILE_MAX_BACKUPS", cfg.File.MaxBackups)
	cfg.File.MaxAgeDays = getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", cfg.File.MaxAgeDays)
	cfg.File.Compress = getEnvAsBool("LOG_FILE_COMPRESS", cfg.File.Compress)
	cfg.File.BufferSize = getEnvAsInt("LOG_FILE_BUFFER_SIZE", cfg.File.BufferSize)
	cfg.File.BatchSize = getEnvAsInt("LOG_FILE_BATCH_SIZE", cfg.File.BatchSize)
	cfg.File.BatchInterval = getEnvAsDuration("LOG_FILE_BATCH_INTERVAL", cfg.File.BatchInterval)

	return cfg
}
