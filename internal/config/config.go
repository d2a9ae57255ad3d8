package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main humelink configuration
type Config struct {
	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Anthropic backend
	Anthropic AnthropicConfig `json:"anthropic" mapstructure:"anthropic"`

	// Session store
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Weather lookup
	Weather WeatherConfig `json:"weather" mapstructure:"weather"`

	// Persona prompt
	Persona PersonaConfig `json:"persona" mapstructure:"persona"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory for the session archive
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `json:"port" mapstructure:"port"`
	Host string `json:"host" mapstructure:"host"`
}

// AnthropicConfig holds model backend configuration
type AnthropicConfig struct {
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	Model     string `json:"model" mapstructure:"model"`
	MaxTokens int    `json:"max_tokens" mapstructure:"max_tokens"`
}

// SessionConfig holds session store configuration
type SessionConfig struct {
	IdleTimeout   time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval"`
	ArchivePath   string        `json:"archive_path" mapstructure:"archive_path"`
}

// WeatherConfig holds weather lookup configuration
type WeatherConfig struct {
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	FetchTimeout time.Duration `json:"fetch_timeout" mapstructure:"fetch_timeout"`
	CacheTTL     time.Duration `json:"cache_ttl" mapstructure:"cache_ttl"`
}

// PersonaConfig holds persona prompt configuration
type PersonaConfig struct {
	PromptFile string `json:"prompt_file" mapstructure:"prompt_file"`
	Watch      bool   `json:"watch" mapstructure:"watch"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3000,
			Host: "0.0.0.0",
		},
		Anthropic: AnthropicConfig{
			Model:     "claude-haiku-4-5",
			MaxTokens: 1000,
		},
		Session: SessionConfig{
			IdleTimeout:   time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Weather: WeatherConfig{
			Endpoint:     "https://wttr.in/Syracuse,NY?format=j1",
			FetchTimeout: 10 * time.Second,
			CacheTTL:     20 * time.Minute,
		},
		Persona: PersonaConfig{
			Watch: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic api key is required (set ANTHROPIC_API_KEY)")
	}
	if c.Anthropic.Model == "" {
		return fmt.Errorf("anthropic model is required")
	}
	if c.Anthropic.MaxTokens <= 0 {
		return fmt.Errorf("anthropic max_tokens must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session idle_timeout must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session sweep_interval must be positive")
	}
	if c.Weather.Endpoint == "" {
		return fmt.Errorf("weather endpoint is required")
	}
	if c.Weather.FetchTimeout <= 0 {
		return fmt.Errorf("weather fetch_timeout must be positive")
	}
	if c.Weather.CacheTTL <= 0 {
		return fmt.Errorf("weather cache_ttl must be positive")
	}
	return nil
}
