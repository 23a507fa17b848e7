// Package config provides layered configuration for agentroute
// applications: built-in defaults, an optional YAML file and environment
// variable overrides, validated before use.
package config

import "time"

// Generator providers.
const (
	ProviderMock      = "mock"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config is the top-level configuration.
type Config struct {
	// App is the application name of every session key.
	App       string          `yaml:"app"`
	Router    RouterConfig    `yaml:"router"`
	Generator GeneratorConfig `yaml:"generator"`
	Session   SessionConfig   `yaml:"session"`
	Runner    RunnerConfig    `yaml:"runner"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RouterConfig configures classification and delegation.
type RouterConfig struct {
	Name              string `yaml:"name"`
	Instruction       string `yaml:"instruction"`
	ClarificationText string `yaml:"clarification_text"`
	MaxGeneratorCalls int    `yaml:"max_generator_calls"`
	EventBufferSize   int    `yaml:"event_buffer_size"`
}

// GeneratorConfig selects and configures the generator backend.
type GeneratorConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	APIKeyFile  string  `yaml:"api_key_file"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	Stream      bool    `yaml:"stream"`

	// Responses maps exact input text to a canned answer (mock provider).
	Responses map[string]string `yaml:"responses"`
	// Fallback answers inputs without a canned response (mock provider).
	Fallback string `yaml:"fallback"`
}

// SessionConfig selects the session store.
type SessionConfig struct {
	Backend string `yaml:"backend"`
	// Path of the SQLite database file, or ":memory:".
	Path string `yaml:"path"`
}

// RunnerConfig configures turn execution.
type RunnerConfig struct {
	MaxConcurrentTurns int `yaml:"max_concurrent_turns"`
	// TurnTimeout bounds a whole turn. 0 disables the bound.
	TurnTimeout time.Duration `yaml:"turn_timeout"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns a Config populated with default values. The defaults
// run fully offline: mock generator, in-memory sessions.
func Defaults() Config {
	return Config{
		App: "routing_app",
		Router: RouterConfig{
			Name:              "Coordinator",
			MaxGeneratorCalls: 8,
			EventBufferSize:   16,
		},
		Generator: GeneratorConfig{
			Provider:  ProviderMock,
			MaxTokens: 1024,
		},
		Session: SessionConfig{
			Backend: BackendMemory,
			Path:    "agentroute.db",
		},
		Runner: RunnerConfig{
			MaxConcurrentTurns: 10,
			TurnTimeout:        60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
