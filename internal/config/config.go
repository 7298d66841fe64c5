// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Driver   DriverConfig   `mapstructure:"driver" yaml:"driver"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the connection details for the result store. An empty
// URL leaves result persistence disabled.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// EngineConfig tunes the browser engine.
type EngineConfig struct {
	MaxSessions       int      `mapstructure:"max_sessions" yaml:"max_sessions"`
	Headless          bool     `mapstructure:"headless" yaml:"headless"`
	BrowserArgs       []string `mapstructure:"browser_args" yaml:"browser_args"`
	SnapshotMaxChars  int      `mapstructure:"snapshot_max_chars" yaml:"snapshot_max_chars"`
	AgentFailureLimit int      `mapstructure:"agent_failure_limit" yaml:"agent_failure_limit"`
}

// DriverConfig bounds each phase of a session run. A zero value disables the
// bound for that phase.
type DriverConfig struct {
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	OperationTimeout  time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	AgentTimeout      time.Duration `mapstructure:"agent_timeout" yaml:"agent_timeout"`
	CloseTimeout      time.Duration `mapstructure:"close_timeout" yaml:"close_timeout"`
}

// LLMConfig defines shared settings for the language-model clients. The API
// key here is a fallback; keys supplied per work item take precedence.
type LLMConfig struct {
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	RetryMaxElapsed   time.Duration `mapstructure:"retry_max_elapsed" yaml:"retry_max_elapsed"`
	RetryMaxInterval  time.Duration `mapstructure:"retry_max_interval" yaml:"retry_max_interval"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxOutputTokens   int32         `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	OpenAIBaseURL     string        `mapstructure:"openai_base_url" yaml:"openai_base_url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagepilot")
	v.SetDefault("logger.log_file", "pagepilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Engine --
	v.SetDefault("engine.max_sessions", 4)
	v.SetDefault("engine.headless", true)
	v.SetDefault("engine.snapshot_max_chars", 60000)
	v.SetDefault("engine.agent_failure_limit", 3)

	// -- Driver --
	v.SetDefault("driver.connect_timeout", "60s")
	v.SetDefault("driver.navigation_timeout", "45s")
	v.SetDefault("driver.operation_timeout", "120s")
	v.SetDefault("driver.agent_timeout", "10m")
	v.SetDefault("driver.close_timeout", "15s")

	// -- LLM --
	v.SetDefault("llm.api_timeout", "90s")
	v.SetDefault("llm.retry_max_elapsed", "2m")
	v.SetDefault("llm.retry_max_interval", "30s")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_output_tokens", 4096)
	v.SetDefault("llm.requests_per_second", 0.0)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("llm.api_key", "PAGEPILOT_LLM_API_KEY")
	v.BindEnv("database.url", "PAGEPILOT_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Engine.MaxSessions <= 0 {
		return fmt.Errorf("engine.max_sessions must be a positive integer")
	}
	if c.Engine.AgentFailureLimit <= 0 {
		return fmt.Errorf("engine.agent_failure_limit must be a positive integer")
	}
	if err := c.Driver.Validate(); err != nil {
		return fmt.Errorf("driver configuration invalid: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the driver phase bounds.
func (d *DriverConfig) Validate() error {
	checks := []struct {
		name  string
		value time.Duration
	}{
		{"connect_timeout", d.ConnectTimeout},
		{"navigation_timeout", d.NavigationTimeout},
		{"operation_timeout", d.OperationTimeout},
		{"agent_timeout", d.AgentTimeout},
		{"close_timeout", d.CloseTimeout},
	}
	for _, check := range checks {
		if check.value < 0 {
			return fmt.Errorf("%s must not be negative", check.name)
		}
	}
	return nil
}

// Validate checks the language-model client settings.
func (l *LLMConfig) Validate() error {
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	if l.MaxOutputTokens < 0 {
		return fmt.Errorf("max_output_tokens must not be negative")
	}
	if l.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if l.APITimeout < 0 {
		return fmt.Errorf("api_timeout must not be negative")
	}
	return nil
}
