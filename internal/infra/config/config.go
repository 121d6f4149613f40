package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	LLM       LLMConfig       `yaml:"llm"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// AgentConfig holds conversation behavior settings.
type AgentConfig struct {
	// SendConfidence is the intent confidence above which a message is
	// treated as a transfer and a confirmation prompt is shown.
	SendConfidence float64 `yaml:"send_confidence"`
	// SendLatency is the simulated network delay for the send tool.
	SendLatency time.Duration `yaml:"send_latency"`
	// SwapLatency is the simulated network delay for the swap tool.
	SwapLatency   time.Duration `yaml:"swap_latency"`
	SystemPrompt  string        `yaml:"system_prompt"`
	MaxHistory    int           `yaml:"max_history"`
	StaleSessionAge time.Duration `yaml:"stale_session_age"`
}

// LLMConfig holds text-completion provider settings.
type LLMConfig struct {
	Provider       ProviderConfig       `yaml:"provider"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ProviderConfig holds settings for the completion provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // "gemini" or "none"
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// PoolConfig holds HTTP connection pool settings for the provider client.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// CircuitBreakerConfig holds circuit breaker settings for the provider.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// SimulatorConfig holds transaction progress simulator settings.
type SimulatorConfig struct {
	// TickInterval is how often a pending transaction advances.
	TickInterval time.Duration `yaml:"tick_interval"`
	// FailureDelay is when the one-shot failure roll happens.
	FailureDelay time.Duration `yaml:"failure_delay"`
	// FailureChance is the probability, in [0,1], that the roll fails
	// a still-pending transaction.
	FailureChance float64 `yaml:"failure_chance"`
	// Seed makes the simulator's randomness reproducible when non-zero.
	Seed int64 `yaml:"seed"`
}

// ChannelsConfig holds the UI shell settings.
type ChannelsConfig struct {
	HTTP HTTPChannelConfig `yaml:"http"`
	TUI  TUIChannelConfig  `yaml:"tui"`
}

// HTTPChannelConfig holds HTTP chat API settings.
type HTTPChannelConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Addr           string `yaml:"addr"`
	RequestsPerMin int    `yaml:"requests_per_min"`
	BurstSize      int    `yaml:"burst_size"`
}

// TUIChannelConfig holds terminal chat shell settings.
type TUIChannelConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			SendConfidence: 0.6,
			SendLatency:    time.Second,
			SwapLatency:    1500 * time.Millisecond,
			SystemPrompt: "You are a helpful cryptocurrency wallet assistant. " +
				"Keep responses concise and relevant to cryptocurrency and wallet operations.",
			MaxHistory:      200,
			StaleSessionAge: 24 * time.Hour,
		},
		LLM: LLMConfig{
			Provider: ProviderConfig{
				Name:  "gemini",
				Type:  "gemini",
				Model: "gemini-2.5-flash",
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled: true,
			},
		},
		Simulator: SimulatorConfig{
			TickInterval:  500 * time.Millisecond,
			FailureDelay:  3 * time.Second,
			FailureChance: 0.1,
		},
		Channels: ChannelsConfig{
			HTTP: HTTPChannelConfig{
				Enabled:        false,
				Addr:           ":3000",
				RequestsPerMin: 100,
				BurstSize:      20,
			},
			TUI: TUIChannelConfig{Enabled: true},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing file
// is not an error: defaults plus env overrides are returned.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides layers environment variables over cfg. The API key is
// deliberately env-first so it never has to live in the config file.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.LLM.Provider.APIKey = v
	}
	if v := os.Getenv("WALLETCHAT_LLM_API_KEY"); v != "" {
		cfg.LLM.Provider.APIKey = v
	}
	if v := os.Getenv("WALLETCHAT_LLM_BASE_URL"); v != "" {
		cfg.LLM.Provider.BaseURL = v
	}
	if v := os.Getenv("WALLETCHAT_LLM_MODEL"); v != "" {
		cfg.LLM.Provider.Model = v
	}
	if v := os.Getenv("WALLETCHAT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("WALLETCHAT_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("WALLETCHAT_HTTP_ADDR"); v != "" {
		cfg.Channels.HTTP.Addr = v
		cfg.Channels.HTTP.Enabled = true
	}
	if v := os.Getenv("WALLETCHAT_SIMULATOR_SEED"); v != "" {
		var seed int64
		if _, err := fmt.Sscanf(v, "%d", &seed); err == nil {
			cfg.Simulator.Seed = seed
		}
	}
}
