package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, AGENTROUTE_CONFIG env, ./agentroute.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (api_key_file)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile returns the config file to load, or "" when none exists.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("AGENTROUTE_CONFIG"); envPath != "" {
		return envPath
	}

	if _, err := os.Stat("agentroute.yaml"); err == nil {
		return "agentroute.yaml"
	}

	return ""
}

// loadYAMLFile parses path into cfg. Fields absent from the file keep their
// current values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTROUTE_APP"); v != "" {
		cfg.App = v
	}
	if v := os.Getenv("AGENTROUTE_PROVIDER"); v != "" {
		cfg.Generator.Provider = v
	}
	if v := os.Getenv("AGENTROUTE_MODEL"); v != "" {
		cfg.Generator.Model = v
	}
	if v := os.Getenv("AGENTROUTE_BASE_URL"); v != "" {
		cfg.Generator.BaseURL = v
	}
	if v := os.Getenv("AGENTROUTE_API_KEY"); v != "" {
		cfg.Generator.APIKey = v
	}
	if v := os.Getenv("AGENTROUTE_SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = v
	}
	if v := os.Getenv("AGENTROUTE_SESSION_PATH"); v != "" {
		cfg.Session.Path = v
	}
	if v := os.Getenv("AGENTROUTE_MAX_CONCURRENT_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runner.MaxConcurrentTurns = n
		}
	}
	if v := os.Getenv("AGENTROUTE_TURN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Runner.TurnTimeout = d
		}
	}
	if v := os.Getenv("AGENTROUTE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AGENTROUTE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Provider SDK conventions, used only when no key was configured.
	if cfg.Generator.APIKey == "" {
		switch cfg.Generator.Provider {
		case ProviderOpenAI:
			cfg.Generator.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderAnthropic:
			cfg.Generator.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
}

func resolveFileReferences(cfg *Config) error {
	if cfg.Generator.APIKeyFile != "" && cfg.Generator.APIKey == "" {
		val, err := readSecretFile(cfg.Generator.APIKeyFile)
		if err != nil {
			return fmt.Errorf("generator.api_key_file: %w", err)
		}
		cfg.Generator.APIKey = val
	}

	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
