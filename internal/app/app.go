// Package app wires configuration into the services shared by the server
// and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-qcm/internal/ai"
	"github.com/p-n-ai/pai-qcm/internal/generative"
	"github.com/p-n-ai/pai-qcm/internal/nlp"
	"github.com/p-n-ai/pai-qcm/internal/picto"
	"github.com/p-n-ai/pai-qcm/internal/pipeline"
	"github.com/p-n-ai/pai-qcm/internal/platform/cache"
	"github.com/p-n-ai/pai-qcm/internal/platform/config"
	"github.com/p-n-ai/pai-qcm/internal/platform/database"
	"github.com/p-n-ai/pai-qcm/internal/pools"
	"github.com/p-n-ai/pai-qcm/internal/qcm"
	"github.com/p-n-ai/pai-qcm/internal/worksheet"
)

// App holds the wired services.
type App struct {
	Config     *config.Config
	Pools      *pools.Loader
	Cache      *picto.Cache
	Resolver   *picto.Resolver
	Choices    *qcm.ChoiceBuilder
	Pipeline   *pipeline.Pipeline
	Producer   *generative.Producer // nil without an AI provider
	Worksheets worksheet.Store
	Events     worksheet.EventLogger

	parser  nlp.Parser
	catalog picto.Catalog
	llm     ai.Completer
	store   picto.Store
	db      *database.DB
	redis   *cache.Cache
}

// Option overrides a dependency, mostly for tests.
type Option func(*App)

// WithParser replaces the UDPipe parser.
func WithParser(p nlp.Parser) Option {
	return func(a *App) { a.parser = p }
}

// WithCatalog replaces the ARASAAC client.
func WithCatalog(c picto.Catalog) Option {
	return func(a *App) { a.catalog = c }
}

// WithLLM replaces the provider router.
func WithLLM(c ai.Completer) Option {
	return func(a *App) { a.llm = c }
}

// WithPictoStore replaces the configured cache backend.
func WithPictoStore(s picto.Store) Option {
	return func(a *App) { a.store = s }
}

// WithWorksheetStore replaces the configured worksheet store.
func WithWorksheetStore(s worksheet.Store) Option {
	return func(a *App) { a.Worksheets = s }
}

// WithEvents replaces the configured event logger.
func WithEvents(l worksheet.EventLogger) Option {
	return func(a *App) { a.Events = l }
}

// New connects the configured backends and builds every service. Close
// releases the connections.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	var err error
	if a.Pools, err = pools.NewLoader(cfg.Generation.PoolsPath); err != nil {
		return nil, err
	}

	if err := a.openBackends(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if a.parser == nil {
		a.parser = nlp.NewUDPipeParser(
			nlp.WithUDPipeURL(cfg.Parser.URL),
			nlp.WithUDPipeModel(cfg.Parser.Model),
			nlp.WithUDPipeHTTPClient(&http.Client{Timeout: cfg.Parser.Timeout()}),
		)
	}
	if a.catalog == nil {
		a.catalog = picto.NewArasaacClient(
			picto.WithArasaacBaseURL(cfg.Catalog.BaseURL),
			picto.WithArasaacStaticURL(cfg.Catalog.StaticURL),
			picto.WithArasaacLanguage(cfg.Language),
			picto.WithArasaacTimeout(cfg.Catalog.Timeout()),
		)
	}

	a.Cache = picto.NewCache(a.store)
	a.Resolver = picto.NewResolver(a.catalog, a.Cache,
		picto.WithLanguage(cfg.Language),
		picto.WithSearchLimit(cfg.Catalog.SearchLimit),
	)
	a.Choices = qcm.NewChoiceBuilder(a.Pools, nil,
		qcm.WithSymbols(a.Resolver),
		qcm.WithSampleTags(cfg.Generation.SampleTags...),
	)
	a.Pipeline = pipeline.New(
		nlp.NewExtractor(a.parser),
		qcm.NewExpander(cfg.Generation.MaxPerFact),
		a.Choices,
		a.Resolver,
		pipeline.WithDistractors(cfg.Generation.Distractors),
		pipeline.WithEvents(a.Events),
	)

	if llm := a.completer(); llm != nil {
		a.Producer = generative.New(llm, a.Pools,
			qcm.NewChoiceBuilder(a.Pools, nil),
			generative.WithBudget(a.budget(), generative.DefaultScope),
			generative.WithModel(cfg.AI.Model),
			generative.WithDistractors(cfg.Generation.Distractors),
		)
	}

	slog.Info("services ready",
		"cache_backend", cfg.Cache.Backend,
		"database", a.db != nil,
		"llm", a.Producer != nil,
	)
	return a, nil
}

func (a *App) openBackends(ctx context.Context) error {
	cfg := a.Config

	if a.store == nil {
		switch cfg.Cache.Backend {
		case "redis":
			c, err := cache.New(ctx, cfg.Cache.URL)
			if err != nil {
				return fmt.Errorf("connecting cache: %w", err)
			}
			a.redis = c
			a.store = picto.NewRedisStore(c.Client)
		default:
			a.store = picto.NewFileStore(cfg.Cache.Dir)
		}
	}

	if a.Worksheets != nil || cfg.Database.URL == "" {
		if a.Worksheets == nil {
			a.Worksheets = worksheet.NewMemoryStore()
		}
		if a.Events == nil {
			a.Events = worksheet.NopEventLogger{}
		}
		return nil
	}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	a.db = db
	if err := db.EnsureSchema(ctx, worksheet.Schema...); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	store, err := worksheet.NewPostgresStore(db.Pool)
	if err != nil {
		return err
	}
	a.Worksheets = store
	if a.Events == nil {
		a.Events = worksheet.NewPostgresEventLogger(db.Pool)
	}
	return nil
}

// completer returns the injected LLM, or a router over the configured
// providers, or nil when none is configured.
func (a *App) completer() ai.Completer {
	if a.llm != nil {
		return a.llm
	}
	cfg := a.Config.AI
	router := ai.NewRouter()

	if cfg.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey))
	}
	if cfg.Anthropic.APIKey != "" {
		p, err := ai.NewAnthropicProvider(cfg.Anthropic.APIKey)
		if err != nil {
			slog.Warn("skipping anthropic provider", "error", err)
		} else {
			router.Register("anthropic", p)
		}
	}
	if cfg.DeepSeek.APIKey != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey))
	}
	if cfg.Google.APIKey != "" {
		router.Register("google", ai.NewGoogleProvider(cfg.Google.APIKey))
	}
	if cfg.OpenRouter.APIKey != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey))
	}
	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL))
	}

	if !router.HasProvider() {
		slog.Info("no AI provider configured, llm mode disabled")
		return nil
	}
	slog.Info("AI providers registered", "providers", router.Names())
	return router
}

// budget shares usage through Redis when the cache runs there.
func (a *App) budget() ai.BudgetChecker {
	limit := int64(a.Config.AI.TokenBudget)
	if a.redis != nil {
		return ai.NewRedisBudget(a.redis.Client, limit)
	}
	b := ai.NewInMemoryBudget()
	b.SetBudget(generative.DefaultScope, limit)
	return b
}

// HealthCheck pings the database and the cache when they are configured.
func (a *App) HealthCheck(ctx context.Context) error {
	var errs []error
	if a.db != nil {
		if err := a.db.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close releases the backend connections.
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Warn("closing cache", "error", err)
		}
	}
}
