package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

func oneOf(issues []ValidationIssue, path, value string, valid []string) []ValidationIssue {
	if value != "" && !slices.Contains(valid, value) {
		issues = append(issues, ValidationIssue{
			Path:    path,
			Message: fmt.Sprintf("must be one of %v, got %q", valid, value),
		})
	}
	return issues
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}
	issues = oneOf(issues, "gateway.bind", cfg.Gateway.Bind, []string{"loopback", "lan", "custom"})
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{Path: "gateway.customBindHost", Message: "required when bind: custom"})
	}
	issues = oneOf(issues, "gateway.auth.mode", cfg.Gateway.Auth.Mode, []string{"token", "password", "none"})
	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		issues = append(issues, ValidationIssue{Path: "gateway.tls", Message: "certPath and keyPath are required when TLS is enabled"})
	}

	issues = oneOf(issues, "agent.mode", cfg.Agent.Mode, []string{"mock", "live"})
	issues = oneOf(issues, "agent.tokenMode", cfg.Agent.TokenMode, []string{"proxy", "direct"})
	if cfg.Agent.IsLive() {
		required := []struct{ path, value string }{
			{"agent.baseUrl", cfg.Agent.BaseURL},
			{"agent.agentId", cfg.Agent.AgentID},
			{"agent.clientId", cfg.Agent.ClientID},
			{"agent.clientSecret", cfg.Agent.ClientSecret},
			{"agent.instanceUrl", cfg.Agent.InstanceURL},
		}
		for _, r := range required {
			if r.value == "" {
				issues = append(issues, ValidationIssue{Path: r.path, Message: "required when agent.mode: live"})
			}
		}
	}
	if cfg.Agent.TimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.timeoutSeconds",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Agent.TimeoutSeconds),
		})
	}

	if cfg.Agent.MockLatencyMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.mockLatencyMs",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Agent.MockLatencyMs),
		})
	}

	if cfg.Conversation.WelcomeDelayMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "conversation.welcomeDelayMs",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Conversation.WelcomeDelayMs),
		})
	}
	issues = oneOf(issues, "conversation.defaultSpace", cfg.Conversation.DefaultSpace, []string{"consumer", "b2b"})

	issues = oneOf(issues, "store.driver", cfg.Store.Driver, []string{"sqlite", "memory"})

	issues = oneOf(issues, "logging.level", cfg.Logging.Level,
		[]string{"silent", "fatal", "error", "warn", "info", "debug", "trace"})
	issues = oneOf(issues, "logging.consoleStyle", cfg.Logging.ConsoleStyle, []string{"pretty", "json"})

	return issues
}
