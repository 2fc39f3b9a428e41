package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields lets credentials live in the environment as ${VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Gateway.Auth.Password = expandEnvVars(cfg.Gateway.Auth.Password)
	cfg.Agent.ClientID = expandEnvVars(cfg.Agent.ClientID)
	cfg.Agent.ClientSecret = expandEnvVars(cfg.Agent.ClientSecret)
	cfg.Agent.InstanceURL = expandEnvVars(cfg.Agent.InstanceURL)
	cfg.Agent.BaseURL = expandEnvVars(cfg.Agent.BaseURL)
	cfg.Agent.AgentID = expandEnvVars(cfg.Agent.AgentID)
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. With no
// arguments it reads ./.env. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return &ConfigError{Message: "failed to load " + f + ": " + err.Error()}
		}
	}
	return nil
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields left empty by a partial file.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = d.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = d.Gateway.Bind
	}
	if cfg.Gateway.Auth.Mode == "" {
		cfg.Gateway.Auth.Mode = d.Gateway.Auth.Mode
	}
	if cfg.Agent.Mode == "" {
		cfg.Agent.Mode = d.Agent.Mode
	}
	if cfg.Agent.TokenMode == "" {
		cfg.Agent.TokenMode = d.Agent.TokenMode
	}
	if cfg.Agent.TimeoutSeconds == 0 {
		cfg.Agent.TimeoutSeconds = d.Agent.TimeoutSeconds
	}
	if cfg.Conversation.WelcomeDelayMs == 0 {
		cfg.Conversation.WelcomeDelayMs = d.Conversation.WelcomeDelayMs
	}
	if cfg.Conversation.DefaultSpace == "" {
		cfg.Conversation.DefaultSpace = d.Conversation.DefaultSpace
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = d.Store.Driver
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads ADVISOR_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ADVISOR_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("ADVISOR_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("ADVISOR_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Auth.Mode = "token"
		cfg.Gateway.Auth.Token = v
	}
	if v := os.Getenv("ADVISOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("ADVISOR_USE_MOCK_DATA"); v != "" {
		if mock, err := strconv.ParseBool(v); err == nil {
			if mock {
				cfg.Agent.Mode = "mock"
			} else {
				cfg.Agent.Mode = "live"
			}
		}
	}
	if v := os.Getenv("ADVISOR_AGENT_BASE_URL"); v != "" {
		cfg.Agent.BaseURL = v
	}
	if v := os.Getenv("ADVISOR_AGENT_ID"); v != "" {
		cfg.Agent.AgentID = v
	}
	if v := os.Getenv("ADVISOR_AGENT_CLIENT_ID"); v != "" {
		cfg.Agent.ClientID = v
	}
	if v := os.Getenv("ADVISOR_AGENT_CLIENT_SECRET"); v != "" {
		cfg.Agent.ClientSecret = v
	}
	if v := os.Getenv("ADVISOR_AGENT_INSTANCE_URL"); v != "" {
		cfg.Agent.InstanceURL = v
	}
	if v := os.Getenv("ADVISOR_DEFAULT_SPACE"); v != "" {
		cfg.Conversation.DefaultSpace = v
	}
}
