package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// FileEnv names the environment variable pointing at an optional YAML
// config file.
const FileEnv = "DASHBOARD_CONFIG"

type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Dataset   DatasetConfig   `yaml:"dataset" envconfig:"DATASET"`
	Logger    LoggerConfig    `yaml:"log" envconfig:"LOG"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gte=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// DatasetConfig locates the sales table and controls how long a loaded copy
// is served before the source is read again.
type DatasetConfig struct {
	Source   string        `yaml:"source" envconfig:"SOURCE" validate:"required"`
	CacheTTL time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" validate:"gt=0"`
	TopN     int           `yaml:"top_n" envconfig:"TOP_N" validate:"min=1,max=100"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `yaml:"rate_limit_enabled" envconfig:"RATE_LIMIT_ENABLED"`
	RateLimitRPS    int      `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" validate:"gt=0"`
	RateLimitBurst  int      `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" validate:"gt=0"`
	AllowedOrigins  []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	TrustedProxies  []string `yaml:"trusted_proxies" envconfig:"TRUSTED_PROXIES" validate:"dive,ip|cidr"`
}

type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	TracingEnabled bool    `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8084,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Dataset: DatasetConfig{
			Source:   "Sample - Superstore.xlsx",
			CacheTTL: time.Hour,
			TopN:     10,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			EnableRateLimit: true,
			RateLimitRPS:    100,
			RateLimitBurst:  10,
			AllowedOrigins:  []string{"http://localhost:8084"},
			TrustedProxies:  []string{"127.0.0.1"},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "sales-dashboard",
			TracingEnabled: false,
			SampleRatio:    1.0,
		},
	}
}

// Load builds the configuration from the defaults, then the YAML file named
// by DASHBOARD_CONFIG, then a .env file in the working directory, then the
// process environment. Later layers win.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// mergeFile overlays the YAML file at path. Keys absent from the file keep
// their current values.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Logger.Level = strings.ToLower(strings.TrimSpace(c.Logger.Level))
	c.Logger.Format = strings.ToLower(strings.TrimSpace(c.Logger.Format))
	c.Security.AllowedOrigins = trimAll(c.Security.AllowedOrigins)
	c.Security.TrustedProxies = trimAll(c.Security.TrustedProxies)
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

var structValidator = validator.New()

func (c *Config) validate() error {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s, got %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be positive", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s, got %q", field, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "ip|cidr":
		return fmt.Sprintf("%s must be an IP address or CIDR, got %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
