// Package config loads server settings from file, environment, and defaults
// via viper. Environment variables use the NOVA_ prefix, e.g.
// NOVA_SERVER_PORT=9000.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Memory  MemoryConfig  `mapstructure:"memory"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Weather WeatherConfig `mapstructure:"weather"`
}

// ServerConfig configures the wire transport.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	EnableCORS     bool          `mapstructure:"enable_cors"`
	KnownRetention time.Duration `mapstructure:"known_retention"`
	MaxKnownIDs    int           `mapstructure:"max_known_ids"`
}

// MemoryConfig selects and configures the long-term memory backend.
type MemoryConfig struct {
	Backend string `mapstructure:"backend"` // file or redis
	Dir     string `mapstructure:"dir"`
	Redis   struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
}

// LLMConfig points at the language-understanding provider.
type LLMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WeatherConfig points at the weather provider the get_weather capability
// adapts.
type WeatherConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// Load reads configuration with the precedence flags > env > file > defaults.
// path, when non-empty, names an explicit config file; otherwise nova.yaml
// is searched for in $HOME/.nova and the working directory. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8990)
	v.SetDefault("server.enable_cors", true)
	v.SetDefault("server.known_retention", time.Hour)
	v.SetDefault("server.max_known_ids", 4096)
	v.SetDefault("memory.backend", "file")
	v.SetDefault("memory.dir", "$HOME/.nova/memory")
	v.SetDefault("memory.redis.addr", "localhost:6379")
	v.SetDefault("memory.redis.password", "")
	v.SetDefault("memory.redis.db", 0)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("weather.base_url", "http://localhost:8991")

	v.SetEnvPrefix("NOVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nova")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.nova")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &config, nil
}
