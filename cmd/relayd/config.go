package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the daemon configuration loaded from environment variables.
type Config struct {
	// Server
	Port     string
	LogLevel string // debug, info, warn, error

	// Provider selection
	Provider string
	Model    string

	// API keys
	AnthropicKey string
	OpenAIKey    string
	GoogleKey    string

	// Storage. Empty means the in-memory store.
	DatabasePath string

	// Streaming
	StreamHeartbeat   time.Duration
	StreamMaxDuration time.Duration

	// Tools
	ToolTimeout     time.Duration
	EnableDemoTools bool

	// Optional MCP server to mirror tools from (URL of an SSE endpoint).
	MCPServerURL string
}

// LoadConfig reads configuration from the environment, loading a .env file
// first when one is present.
func LoadConfig() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Port:              getEnvOrDefault("RELAY_PORT", "8080"),
		LogLevel:          getEnvOrDefault("RELAY_LOG_LEVEL", "info"),
		Provider:          os.Getenv("RELAY_PROVIDER"),
		Model:             os.Getenv("RELAY_MODEL"),
		AnthropicKey:      os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		GoogleKey:         os.Getenv("GOOGLE_API_KEY"),
		DatabasePath:      os.Getenv("RELAY_DB"),
		StreamHeartbeat:   getEnvDurationOrDefault("RELAY_STREAM_HEARTBEAT", 15*time.Second),
		StreamMaxDuration: getEnvDurationOrDefault("RELAY_STREAM_MAX_DURATION", 0),
		ToolTimeout:       getEnvDurationOrDefault("RELAY_TOOL_TIMEOUT", 30*time.Second),
		EnableDemoTools:   getEnvBoolOrDefault("RELAY_DEMO_TOOLS", true),
		MCPServerURL:      os.Getenv("RELAY_MCP_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected provider has its key.
func (c *Config) Validate() error {
	switch c.Provider {
	case "anthropic":
		if c.AnthropicKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for anthropic provider")
		}
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for openai provider")
		}
	case "google":
		if c.GoogleKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required for google provider")
		}
	case "":
		return fmt.Errorf("RELAY_PROVIDER is required (anthropic, openai, or google)")
	default:
		return fmt.Errorf("unknown provider: %s (must be anthropic, openai, or google)", c.Provider)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
