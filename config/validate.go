package config

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentroute/logging"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.App == "" {
		errs = append(errs, errors.New("app is required"))
	}

	if c.Router.MaxGeneratorCalls < 0 {
		errs = append(errs, fmt.Errorf("router.max_generator_calls must be >= 0, got %d", c.Router.MaxGeneratorCalls))
	}
	if c.Router.EventBufferSize < 0 {
		errs = append(errs, fmt.Errorf("router.event_buffer_size must be >= 0, got %d", c.Router.EventBufferSize))
	}

	switch c.Generator.Provider {
	case ProviderMock:
	case ProviderOpenAI, ProviderAnthropic:
		if c.Generator.APIKey == "" && c.Generator.BaseURL == "" {
			errs = append(errs, fmt.Errorf("generator.api_key is required for provider %q", c.Generator.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("generator.provider must be \"mock\", \"openai\" or \"anthropic\", got %q", c.Generator.Provider))
	}

	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		errs = append(errs, fmt.Errorf("generator.temperature must be within [0, 2], got %v", c.Generator.Temperature))
	}

	switch c.Session.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Session.Path == "" {
			errs = append(errs, errors.New("session.path is required when session.backend is \"sqlite\""))
		}
	default:
		errs = append(errs, fmt.Errorf("session.backend must be \"memory\" or \"sqlite\", got %q", c.Session.Backend))
	}

	if c.Runner.MaxConcurrentTurns < 0 {
		errs = append(errs, fmt.Errorf("runner.max_concurrent_turns must be >= 0, got %d", c.Runner.MaxConcurrentTurns))
	}
	if c.Runner.TurnTimeout < 0 {
		errs = append(errs, fmt.Errorf("runner.turn_timeout must be >= 0, got %v", c.Runner.TurnTimeout))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
