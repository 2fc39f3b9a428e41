package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	defaultPort           = 3001
	defaultWelcomeDelayMs = 300
	defaultMockLatencyMs  = 600
	defaultTimeoutSeconds = 30
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: defaultPort,
			Bind: "loopback",
			Auth: GatewayAuth{Mode: "none"},
		},
		Agent: AgentConfig{
			Mode:           "mock",
			TokenMode:      "proxy",
			TimeoutSeconds: defaultTimeoutSeconds,
			MockLatencyMs:  defaultMockLatencyMs,
		},
		Conversation: ConversationConfig{
			WelcomeDelayMs: defaultWelcomeDelayMs,
			DefaultSpace:   "consumer",
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// TokenProxyURL returns the configured proxy endpoint, or the gateway's
// own /api/auth/token route when none is set.
func (c Config) TokenProxyURL() string {
	if c.Agent.TokenProxyURL != "" {
		return c.Agent.TokenProxyURL
	}
	return fmt.Sprintf("http://127.0.0.1:%d/api/auth/token", c.Gateway.Port)
}
