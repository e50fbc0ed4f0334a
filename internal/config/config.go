package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. LAE_ENGINE_MAX_CONCURRENCY
const EnvPrefix = "LAE"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Engine    EngineConfig    `yaml:"engine" envconfig:"ENGINE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// EngineConfig tunes index computation
type EngineConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" validate:"min=1,max=64"`
	ReducerTimeout time.Duration `yaml:"reducer_timeout" envconfig:"REDUCER_TIMEOUT" validate:"gt=0"`
	CacheTTL       time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" validate:"gte=0"`
	CacheSize      int           `yaml:"cache_size" envconfig:"CACHE_SIZE" validate:"gte=0"`
	DefaultHour    int           `yaml:"default_hour" envconfig:"DEFAULT_HOUR" validate:"min=0,max=23"`
	BaseStart      string        `yaml:"base_start" envconfig:"BASE_START" validate:"omitempty,datetime=2006-01-02"`
	BaseEnd        string        `yaml:"base_end" envconfig:"BASE_END" validate:"omitempty,datetime=2006-01-02"`
	Timezone       string        `yaml:"timezone" envconfig:"TIMEZONE" validate:"required"`
	RankingLimit   int           `yaml:"ranking_limit" envconfig:"RANKING_LIMIT" validate:"gte=0"`
}

// TelemetryConfig selects the OpenTelemetry exporters
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	EnableTracing  bool    `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	EnableMetrics  bool    `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// Location resolves the configured timezone
func (e EngineConfig) Location() (*time.Location, error) {
	return time.LoadLocation(e.Timezone)
}

// BasePeriod parses the configured base period bounds; empty bounds are zero
func (e EngineConfig) BasePeriod() (start, end time.Time, err error) {
	if e.BaseStart != "" {
		if start, err = time.Parse("2006-01-02", e.BaseStart); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid base_start: %w", err)
		}
	}
	if e.BaseEnd != "" {
		if end, err = time.Parse("2006-01-02", e.BaseEnd); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid base_end: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("base period ends before it starts")
	}
	return start, end, nil
}

// Load builds the configuration from defaults, then the YAML file at path (if
// given, else the first config.yaml found), then LAE_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML values onto cfg; absent keys keep their value
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

var validate = validator.New()

// Validate checks field ranges and cross-field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Engine.Location(); err != nil {
		return fmt.Errorf("invalid engine timezone %q: %w", c.Engine.Timezone, err)
	}
	if _, _, err := c.Engine.BasePeriod(); err != nil {
		return err
	}

	// logs are always structured
	c.Logging.Format = "json"
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/indexengine.log"
	}
	return nil
}

// getConfigFilePath returns the first config file found in the usual locations
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			MaxBodyBytes:    64 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/indexengine.log",
		},
		Engine: EngineConfig{
			MaxConcurrency: DefaultMaxConcurrency,
			ReducerTimeout: DefaultReducerTimeout,
			CacheTTL:       DefaultCacheTTL,
			CacheSize:      DefaultCacheSize,
			DefaultHour:    12,
			Timezone:       "UTC",
			RankingLimit:   50,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			Environment:    "development",
			EnableTracing:  false,
			EnableMetrics:  true,
			TraceExporter:  "stdout",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
