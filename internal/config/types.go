package config

// Config is the root configuration for the advisor.
type Config struct {
	Gateway      GatewayConfig      `yaml:"gateway,omitempty"`
	Agent        AgentConfig        `yaml:"agent,omitempty"`
	Conversation ConversationConfig `yaml:"conversation,omitempty"`
	Background   BackgroundConfig   `yaml:"background,omitempty"`
	Store        StoreConfig        `yaml:"store,omitempty"`
	Logging      LoggingConfig      `yaml:"logging,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket server that fronts the
// token proxy and the conversation API.
type GatewayConfig struct {
	Port           int              `yaml:"port,omitempty"`
	Bind           string           `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string           `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth      `yaml:"auth,omitempty"`
	TLS            GatewayTLS       `yaml:"tls,omitempty"`
	ControlUI      GatewayControlUI `yaml:"controlUi,omitempty"`
}

// GatewayAuth configures WebSocket authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password" | "none"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// GatewayControlUI lists the storefront origins allowed to call the API.
type GatewayControlUI struct {
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// AgentConfig selects the response source and carries the live agent
// platform credentials.
type AgentConfig struct {
	Mode           string `yaml:"mode,omitempty"` // "mock" | "live"
	BaseURL        string `yaml:"baseUrl,omitempty"`
	AgentID        string `yaml:"agentId,omitempty"`
	ClientID       string `yaml:"clientId,omitempty"`
	ClientSecret   string `yaml:"clientSecret,omitempty"`
	InstanceURL    string `yaml:"instanceUrl,omitempty"`
	TokenMode      string `yaml:"tokenMode,omitempty"` // "proxy" | "direct"
	TokenProxyURL  string `yaml:"tokenProxyUrl,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
	MockLatencyMs  int    `yaml:"mockLatencyMs,omitempty"`
}

// ConversationConfig tunes the orchestrator.
type ConversationConfig struct {
	WelcomeDelayMs int    `yaml:"welcomeDelayMs,omitempty"`
	DefaultSpace   string `yaml:"defaultSpace,omitempty"` // "consumer" | "b2b"
}

// BackgroundConfig points at the host serving preseeded scene images.
// An empty AssetBaseURL disables preseeded lookups.
type BackgroundConfig struct {
	AssetBaseURL string `yaml:"assetBaseUrl,omitempty"`
}

// StoreConfig selects chat summary persistence.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "memory"
	Path   string `yaml:"path,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// IsLive reports whether the live agent platform is selected.
func (c AgentConfig) IsLive() bool { return c.Mode == "live" }
