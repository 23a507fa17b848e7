package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AGENTROUTE_CONFIG", "AGENTROUTE_APP", "AGENTROUTE_PROVIDER", "AGENTROUTE_MODEL",
		"AGENTROUTE_BASE_URL", "AGENTROUTE_API_KEY", "AGENTROUTE_SESSION_BACKEND",
		"AGENTROUTE_SESSION_PATH", "AGENTROUTE_MAX_CONCURRENT_TURNS", "AGENTROUTE_TURN_TIMEOUT",
		"AGENTROUTE_LOG_LEVEL", "AGENTROUTE_LOG_FORMAT", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "routing_app", cfg.App)
	assert.Equal(t, "Coordinator", cfg.Router.Name)
	assert.Equal(t, ProviderMock, cfg.Generator.Provider)
	assert.Equal(t, BackendMemory, cfg.Session.Backend)
	assert.Equal(t, 10, cfg.Runner.MaxConcurrentTurns)
	assert.Equal(t, 60*time.Second, cfg.Runner.TurnTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, t.TempDir(), "routing.yaml", `
app: travel
router:
  name: Dispatcher
  max_generator_calls: 3
generator:
  provider: mock
  fallback: CLARIFY
  responses:
    "Book me a hotel in Paris.": Booker
session:
  backend: sqlite
  path: ":memory:"
runner:
  max_concurrent_turns: 2
  turn_timeout: 5s
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "travel", cfg.App)
	assert.Equal(t, "Dispatcher", cfg.Router.Name)
	assert.Equal(t, 3, cfg.Router.MaxGeneratorCalls)
	assert.Equal(t, 16, cfg.Router.EventBufferSize, "unset fields keep defaults")
	assert.Equal(t, "CLARIFY", cfg.Generator.Fallback)
	assert.Equal(t, "Booker", cfg.Generator.Responses["Book me a hotel in Paris."])
	assert.Equal(t, BackendSQLite, cfg.Session.Backend)
	assert.Equal(t, ":memory:", cfg.Session.Path)
	assert.Equal(t, 2, cfg.Runner.MaxConcurrentTurns)
	assert.Equal(t, 5*time.Second, cfg.Runner.TurnTimeout)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_DiscoversFiles(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	t.Chdir(dir)

	writeFile(t, dir, "agentroute.yaml", "app: from-cwd\n")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-cwd", cfg.App)

	envPath := writeFile(t, t.TempDir(), "other.yaml", "app: from-env\n")
	t.Setenv("AGENTROUTE_CONFIG", envPath)
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.App)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	t.Setenv("AGENTROUTE_APP", "env-app")
	t.Setenv("AGENTROUTE_PROVIDER", "openai")
	t.Setenv("AGENTROUTE_MODEL", "gpt-4o-mini")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AGENTROUTE_MAX_CONCURRENT_TURNS", "3")
	t.Setenv("AGENTROUTE_TURN_TIMEOUT", "90s")
	t.Setenv("AGENTROUTE_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-app", cfg.App)
	assert.Equal(t, ProviderOpenAI, cfg.Generator.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Generator.Model)
	assert.Equal(t, "sk-test", cfg.Generator.APIKey)
	assert.Equal(t, 3, cfg.Runner.MaxConcurrentTurns)
	assert.Equal(t, 90*time.Second, cfg.Runner.TurnTimeout)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_APIKeyFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	keyPath := writeFile(t, dir, "key", "  sk-ant-from-file\n")
	path := writeFile(t, dir, "cfg.yaml", "generator:\n  provider: anthropic\n  api_key_file: "+keyPath+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-from-file", cfg.Generator.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "loading config file")

	bad := writeFile(t, t.TempDir(), "bad.yaml", "app: [unclosed\n")
	_, err = Load(bad)
	assert.ErrorContains(t, err, "loading config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"missing app", func(c *Config) { c.App = "" }, "app is required"},
		{"unknown provider", func(c *Config) { c.Generator.Provider = "bard" }, "generator.provider"},
		{"missing key", func(c *Config) { c.Generator.Provider = ProviderOpenAI }, "generator.api_key is required"},
		{"temperature", func(c *Config) { c.Generator.Temperature = 3 }, "generator.temperature"},
		{"unknown backend", func(c *Config) { c.Session.Backend = "redis" }, "session.backend"},
		{"sqlite path", func(c *Config) { c.Session.Backend = BackendSQLite; c.Session.Path = "" }, "session.path"},
		{"negative turns", func(c *Config) { c.Runner.MaxConcurrentTurns = -1 }, "runner.max_concurrent_turns"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	t.Run("joins errors", func(t *testing.T) {
		cfg := Defaults()
		cfg.App = ""
		cfg.Logging.Format = "xml"
		err := cfg.Validate()
		assert.ErrorContains(t, err, "app is required")
		assert.ErrorContains(t, err, "logging.format")
	})
}
