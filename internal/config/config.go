package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultHost           = "0.0.0.0"
	defaultPort           = "8000"
	defaultAPIV1Str       = "/api/v1"
	defaultProjectName    = "Property Creator API"
	defaultEnvFile        = ".env"
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultAirtableURL    = "https://api.airtable.com/v0"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > environment > .env file > YAML config > Defaults
type Config struct {
	Host                 string         `yaml:"host"`
	Port                 string         `yaml:"port"`
	APIV1Str             string         `yaml:"api_v1_str"`
	ProjectName          string         `yaml:"project_name"`
	Airtable             AirtableConfig `yaml:"airtable"`
	ShutdownGracePeriod  time.Duration  `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    time.Duration  `yaml:"read_header_timeout"`
	WriteTimeout         time.Duration  `yaml:"write_timeout"`
	IdleTimeout          time.Duration  `yaml:"idle_timeout"`
	EnableRequestLogging bool           `yaml:"enable_request_logging"`
	EnableMetrics        bool           `yaml:"enable_metrics"`
	LogLevel             string         `yaml:"log_level"`
	LogFormat            string         `yaml:"log_format"`
	RateLimitRPS         float64        `yaml:"-"`
	RateLimitBurst       int            `yaml:"-"`
}

// AirtableConfig identifies the upstream table and how to reach it.
type AirtableConfig struct {
	APIKey   string        `yaml:"-"`
	BaseID   string        `yaml:"base_id"`
	TableID  string        `yaml:"table_id"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	Typecast bool          `yaml:"typecast"`
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Host                 string        `yaml:"host"`
	Port                 string        `yaml:"port"`
	APIV1Str             string        `yaml:"api_v1_str"`
	ProjectName          string        `yaml:"project_name"`
	Airtable             yamlAirtable  `yaml:"airtable"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	EnableMetrics        *bool         `yaml:"enable_metrics"`
	LogLevel             string        `yaml:"log_level"`
	LogFormat            string        `yaml:"log_format"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlAirtable represents the airtable section in YAML. The API key is
// deliberately absent: it is only read from the environment.
type yamlAirtable struct {
	BaseID   string `yaml:"base_id"`
	TableID  string `yaml:"table_id"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
	Typecast *bool  `yaml:"typecast"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	EnvFile        string
	Host           *string
	Port           *string
	LogLevel       *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// lookupFunc resolves a configuration key from the environment.
type lookupFunc func(key string) (string, bool)

// Load extracts configuration from multiple sources with precedence:
// CLI flags > environment > .env file > YAML config > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Load from YAML file if specified
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	envFile, required := defaultEnvFile, false
	if overrides != nil && overrides.EnvFile != "" {
		envFile, required = overrides.EnvFile, true
	}
	dotenv, err := loadDotEnv(envFile, required)
	if err != nil {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	// Apply environment variables (override YAML and the .env file)
	applyEnvConfig(&cfg, envLookup(dotenv))

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	cfg.APIV1Str = normalizePrefix(cfg.APIV1Str)

	// Validate final configuration
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Addr returns the listen address of the HTTP server.
// A port that already carries a host is used as is.
func (c Config) Addr() string {
	if _, _, err := net.SplitHostPort(c.Port); err == nil {
		return c.Port
	}
	return net.JoinHostPort(c.Host, c.Port)
}

// defaultConfig returns a Config with default values. Airtable credentials
// have no defaults.
func defaultConfig() Config {
	return Config{
		Host:        defaultHost,
		Port:        defaultPort,
		APIV1Str:    defaultAPIV1Str,
		ProjectName: defaultProjectName,
		Airtable: AirtableConfig{
			BaseURL: defaultAirtableURL,
			Timeout: 30 * time.Second,
		},
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         60 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		EnableMetrics:        true,
		LogLevel:             defaultLogLevel,
		LogFormat:            defaultLogFormat,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// loadDotEnv reads key/value pairs from a dotenv file without touching the
// process environment. A missing file is only an error when required.
func loadDotEnv(path string, required bool) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return values, nil
}

// envLookup prefers the process environment over dotenv values. An empty
// process variable counts as unset.
func envLookup(dotenv map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	if yamlCfg.Host != "" {
		cfg.Host = yamlCfg.Host
	}

	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	if yamlCfg.APIV1Str != "" {
		cfg.APIV1Str = yamlCfg.APIV1Str
	}

	if yamlCfg.ProjectName != "" {
		cfg.ProjectName = yamlCfg.ProjectName
	}

	if yamlCfg.Airtable.BaseID != "" {
		cfg.Airtable.BaseID = yamlCfg.Airtable.BaseID
	}

	if yamlCfg.Airtable.TableID != "" {
		cfg.Airtable.TableID = yamlCfg.Airtable.TableID
	}

	if yamlCfg.Airtable.BaseURL != "" {
		cfg.Airtable.BaseURL = yamlCfg.Airtable.BaseURL
	}

	setDuration(&cfg.Airtable.Timeout, yamlCfg.Airtable.Timeout)

	if yamlCfg.Airtable.Typecast != nil {
		cfg.Airtable.Typecast = *yamlCfg.Airtable.Typecast
	}

	setDuration(&cfg.ShutdownGracePeriod, yamlCfg.ShutdownGracePeriod)
	setDuration(&cfg.ReadHeaderTimeout, yamlCfg.ReadHeaderTimeout)
	setDuration(&cfg.WriteTimeout, yamlCfg.WriteTimeout)
	setDuration(&cfg.IdleTimeout, yamlCfg.IdleTimeout)

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if yamlCfg.EnableMetrics != nil {
		cfg.EnableMetrics = *yamlCfg.EnableMetrics
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	if yamlCfg.LogFormat != "" {
		cfg.LogFormat = yamlCfg.LogFormat
	}

	if yamlCfg.RateLimit.RPS != nil && *yamlCfg.RateLimit.RPS >= 0 {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}

	if yamlCfg.RateLimit.Burst != nil && *yamlCfg.RateLimit.Burst >= 0 {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
}

// applyEnvConfig applies environment variable configuration. Keys are case
// sensitive.
func applyEnvConfig(cfg *Config, lookup lookupFunc) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	setString(&cfg.Host, get("HOST"))
	setString(&cfg.Port, get("PORT"))
	setString(&cfg.APIV1Str, get("API_V1_STR"))
	setString(&cfg.ProjectName, get("PROJECT_NAME"))
	setString(&cfg.Airtable.APIKey, get("AIRTABLE_API_KEY"))
	setString(&cfg.Airtable.BaseID, get("AIRTABLE_BASE_ID"))
	setString(&cfg.Airtable.TableID, get("AIRTABLE_TABLE_ID"))
	setString(&cfg.Airtable.BaseURL, get("AIRTABLE_BASE_URL"))
	setDuration(&cfg.Airtable.Timeout, get("AIRTABLE_TIMEOUT"))
	setBool(&cfg.Airtable.Typecast, get("AIRTABLE_TYPECAST"))
	setDuration(&cfg.ShutdownGracePeriod, get("SHUTDOWN_GRACE_PERIOD"))
	setBool(&cfg.EnableRequestLogging, get("ENABLE_REQUEST_LOGGING"))
	setBool(&cfg.EnableMetrics, get("ENABLE_METRICS"))
	setString(&cfg.LogLevel, get("LOG_LEVEL"))
	setString(&cfg.LogFormat, get("LOG_FORMAT"))

	if rps := get("RATE_LIMIT_RPS"); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := get("RATE_LIMIT_BURST"); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Host != nil && *overrides.Host != "" {
		cfg.Host = *overrides.Host
	}

	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	var missing []string
	if cfg.Airtable.APIKey == "" {
		missing = append(missing, "AIRTABLE_API_KEY")
	}
	if cfg.Airtable.BaseID == "" {
		missing = append(missing, "AIRTABLE_BASE_ID")
	}
	if cfg.Airtable.TableID == "" {
		missing = append(missing, "AIRTABLE_TABLE_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	if cfg.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.Airtable.Timeout <= 0 {
		return fmt.Errorf("AIRTABLE_TIMEOUT must be positive")
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.LogFormat)
	}
	return nil
}

// normalizePrefix ensures a leading slash and strips trailing ones, so the
// prefix can be joined with route paths directly.
func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setDuration(dst *time.Duration, value string) {
	if value == "" {
		return
	}
	if d, err := time.ParseDuration(value); err == nil {
		*dst = d
	}
}

func setBool(dst *bool, value string) {
	if value == "" {
		return
	}
	if b, err := strconv.ParseBool(value); err == nil {
		*dst = b
	}
}
