package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateAgent(cfg, ve)
	validateLLM(cfg, ve)
	validateSimulator(cfg, ve)
	validateChannels(cfg, ve)
	validateLogger(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateAgent(cfg *Config, ve *ValidationError) {
	if cfg.Agent.SendConfidence < 0 || cfg.Agent.SendConfidence >= 1 {
		ve.Add("agent.send_confidence must be in [0,1)")
	}
	if cfg.Agent.SendLatency < 0 {
		ve.Add("agent.send_latency must be >= 0")
	}
	if cfg.Agent.SwapLatency < 0 {
		ve.Add("agent.swap_latency must be >= 0")
	}
	if cfg.Agent.MaxHistory <= 0 {
		ve.Add("agent.max_history must be > 0")
	}
}

func validateLLM(cfg *Config, ve *ValidationError) {
	switch cfg.LLM.Provider.Type {
	case "gemini", "none", "":
	default:
		ve.Add("llm.provider.type %q is not supported (want: gemini, none)", cfg.LLM.Provider.Type)
	}
	if cfg.LLM.Provider.Type == "gemini" && cfg.LLM.Provider.Model == "" {
		ve.Add("llm.provider.model is required for the gemini provider")
	}
}

func validateSimulator(cfg *Config, ve *ValidationError) {
	if cfg.Simulator.TickInterval <= 0 {
		ve.Add("simulator.tick_interval must be > 0")
	}
	if cfg.Simulator.FailureDelay <= 0 {
		ve.Add("simulator.failure_delay must be > 0")
	}
	if cfg.Simulator.FailureChance < 0 || cfg.Simulator.FailureChance > 1 {
		ve.Add("simulator.failure_chance must be in [0,1]")
	}
}

func validateChannels(cfg *Config, ve *ValidationError) {
	if cfg.Channels.HTTP.Enabled {
		if cfg.Channels.HTTP.Addr == "" {
			ve.Add("channels.http.addr is required when the http channel is enabled")
		}
		if cfg.Channels.HTTP.RequestsPerMin <= 0 {
			ve.Add("channels.http.requests_per_min must be > 0")
		}
		if cfg.Channels.HTTP.BurstSize <= 0 {
			ve.Add("channels.http.burst_size must be > 0")
		}
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		ve.Add("logger.level %q is not valid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json", "":
	default:
		ve.Add("logger.format %q is not valid (want: text, json)", cfg.Logger.Format)
	}
}
