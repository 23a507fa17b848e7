package agentroute

import (
	"fmt"
	"io"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentroute/config"
	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/logging"
	"github.com/hupe1980/agentroute/model"
	"github.com/hupe1980/agentroute/model/anthropic"
	"github.com/hupe1980/agentroute/model/openai"
	"github.com/hupe1980/agentroute/observability"
	"github.com/hupe1980/agentroute/session"
	"github.com/hupe1980/agentroute/session/sqlite"
)

// NewFromConfig builds a Mesh from cfg and registers handlers. Generator,
// session store and logger are chosen by the configuration. metrics may be
// nil.
func NewFromConfig(cfg *config.Config, metrics *observability.Metrics, handlers ...core.Handler) (*Mesh, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}

	gen, err := NewGenerator(cfg.Generator)
	if err != nil {
		return nil, err
	}

	store, err := NewSessionStore(cfg.Session)
	if err != nil {
		return nil, err
	}

	m, err := New(gen, func(o *Options) {
		o.AppName = cfg.App
		o.RouterName = cfg.Router.Name
		o.Instruction = cfg.Router.Instruction
		o.ClarificationText = cfg.Router.ClarificationText
		o.MaxGeneratorCalls = cfg.Router.MaxGeneratorCalls
		o.EventBufferSize = cfg.Router.EventBufferSize
		o.MaxConcurrentTurns = cfg.Runner.MaxConcurrentTurns
		o.TurnTimeout = cfg.Runner.TurnTimeout
		o.SessionStore = store
		o.Logger = logger
		o.Metrics = metrics
	})
	if err != nil {
		closeStore(store)
		return nil, err
	}

	if err := m.Register(handlers...); err != nil {
		closeStore(store)
		return nil, err
	}

	logger.Info("mesh.configured",
		"app", cfg.App,
		"provider", cfg.Generator.Provider,
		"session_backend", cfg.Session.Backend,
		"handlers", len(handlers),
	)

	return m, nil
}

// NewGenerator creates the generator selected by cfg.Provider.
func NewGenerator(cfg config.GeneratorConfig) (*model.Generator, error) {
	var m model.Model

	switch cfg.Provider {
	case config.ProviderMock, "":
		mock := model.NewMockModel("mock", "mock")
		for input, answer := range cfg.Responses {
			mock.AddResponse(input, answer)
		}
		if cfg.Fallback != "" {
			mock.SetFallback(cfg.Fallback)
		}
		m = mock
	case config.ProviderOpenAI:
		m = openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.MaxTokens
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
	case config.ProviderAnthropic:
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}

	return model.NewGenerator(m, func(o *model.GeneratorOptions) {
		o.Stream = cfg.Stream
	}), nil
}

// NewSessionStore creates the store selected by cfg.Backend.
func NewSessionStore(cfg config.SessionConfig) (core.SessionStore, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return session.NewInMemoryStore(), nil
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite session store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// NewLogger creates a RouteLogger writing to out.
func NewLogger(cfg config.LoggingConfig, out io.Writer) (*logging.RouteLogger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Format,
		Output:    out,
		Component: "agentroute",
	}), nil
}

func closeStore(store core.SessionStore) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}
