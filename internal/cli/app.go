package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"marketminds/internal/agent"
	"marketminds/internal/config"
	"marketminds/internal/llm"
	"marketminds/internal/logging"
	"marketminds/internal/market"
	"marketminds/internal/news"
	"marketminds/internal/resilience"
	"marketminds/internal/stages"
	"marketminds/internal/store"
	"marketminds/internal/tools"
)

// App holds the application dependencies. Collaborators left nil are built
// from Config on first use and released by Close.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Provider    market.Provider
	Searcher    news.Searcher
	Embedder    news.Embedder
	AgentModel  llm.Model
	TextModel   llm.Model
	Checkpoints agent.CheckpointStore

	db        *store.SQLiteStore
	newsStore *news.BadgerStore
	service   *agent.Service
}

// loadConfig reads the configuration and builds the logger unless a caller
// injected a configuration already.
func (a *App) loadConfig(configDir string, debug bool) error {
	if a.Config == nil {
		cfg, err := config.Load(configDir)
		if err != nil {
			return err
		}
		a.Config = cfg

		logCfg := logging.DefaultLogConfig()
		logCfg.Level = cfg.Logging.Level
		logCfg.File = cfg.Logging.File
		logCfg.FilePath = cfg.Logging.Path
		logCfg.Secrets = cfg.Credentials.Secrets()
		a.Logger = logging.NewLoggerWithConfig(logCfg)
	}
	if debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}
	return nil
}

// Close releases the stores opened by the app.
func (a *App) Close() error {
	var errs []error
	if a.newsStore != nil {
		errs = append(errs, a.newsStore.Close())
		a.newsStore = nil
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
		a.db = nil
	}
	return errors.Join(errs...)
}

func (a *App) database() (*store.SQLiteStore, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := store.NewSQLiteStore(a.Config.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.Logger.Debug().Str("path", a.Config.Storage.DBPath).Msg("SQLite store initialized")
	return db, nil
}

func (a *App) marketProvider() (market.Provider, error) {
	if a.Provider != nil {
		return a.Provider, nil
	}
	creds := a.Config.Credentials.Alpaca
	var provider market.Provider = market.NewAlpacaProvider(market.AlpacaConfig{
		KeyID:     creds.KeyID,
		SecretKey: creds.SecretKey,
		Feed:      a.Config.Market.Feed,
		RateLimit: a.Config.Market.RateLimit,
	}, a.Logger)
	provider = market.NewGuardedProvider(provider, resilience.NewCircuitBreaker("alpaca", resilience.CircuitBreakerConfig{
		FailureThreshold: a.Config.Market.BreakerFailures,
		Timeout:          a.Config.Market.BreakerCooldown,
		IsFailure:        market.IsUpstreamFailure,
	}), a.Logger)

	if a.Config.Market.Cache {
		db, err := a.database()
		if err != nil {
			return nil, err
		}
		provider = market.NewCachedProvider(provider, db, a.Config.Market.CacheTTL, a.Logger)
	}
	a.Provider = provider
	return provider, nil
}

func (a *App) documentStore(ctx context.Context) (*news.BadgerStore, error) {
	if a.newsStore != nil {
		return a.newsStore, nil
	}
	embedder := a.Embedder
	if embedder == nil {
		cfg := a.Config.Models.Embedding
		key, err := a.Config.APIKey(cfg.Provider)
		if err != nil {
			return nil, err
		}
		e, err := llm.NewEmbedder(ctx, cfg, key)
		if err != nil {
			return nil, err
		}
		embedder = e
	}
	s, err := news.OpenBadgerStore(a.Config.News.StoreDir, embedder, a.Config.News.Lambda, a.Logger)
	if err != nil {
		return nil, err
	}
	a.newsStore = s
	return s, nil
}

// newsSearcher returns nil when the news store cannot be opened; news
// retrieval then yields no documents.
func (a *App) newsSearcher(ctx context.Context) news.Searcher {
	if a.Searcher != nil {
		return a.Searcher
	}
	s, err := a.documentStore(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("News store unavailable, news retrieval disabled")
		return nil
	}
	a.Searcher = s
	return s
}

func (a *App) model(ctx context.Context, role config.ModelRole) (llm.Model, error) {
	key, err := a.Config.APIKey(role.Provider)
	if err != nil {
		return nil, err
	}
	return llm.New(ctx, role, key, a.Logger)
}

func (a *App) agentModel(ctx context.Context) (llm.Model, error) {
	if a.AgentModel == nil {
		m, err := a.model(ctx, a.Config.Models.Agent)
		if err != nil {
			return nil, fmt.Errorf("agent model: %w", err)
		}
		a.AgentModel = m
	}
	return a.AgentModel, nil
}

func (a *App) textModel(ctx context.Context) (llm.Model, error) {
	if a.TextModel == nil {
		m, err := a.model(ctx, a.Config.Models.Text)
		if err != nil {
			return nil, fmt.Errorf("text model: %w", err)
		}
		a.TextModel = m
	}
	return a.TextModel, nil
}

func (a *App) executor(ctx context.Context) (*tools.Executor, error) {
	provider, err := a.marketProvider()
	if err != nil {
		return nil, err
	}
	return tools.NewExecutor(provider, a.newsSearcher(ctx), tools.NewsOptions{
		K:      a.Config.News.K,
		FetchK: a.Config.News.FetchK,
	}, a.Logger), nil
}

func (a *App) checkpoints() (agent.CheckpointStore, error) {
	if a.Checkpoints != nil {
		return a.Checkpoints, nil
	}
	if a.Config.Storage.Checkpoints == "memory" {
		a.Checkpoints = agent.NewMemoryCheckpoints()
		return a.Checkpoints, nil
	}
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	a.Checkpoints = agent.NewSQLiteCheckpoints(db)
	return a.Checkpoints, nil
}

// agentService wires the conversation graph.
func (a *App) agentService(ctx context.Context) (*agent.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	agentModel, err := a.agentModel(ctx)
	if err != nil {
		return nil, err
	}
	textModel, err := a.textModel(ctx)
	if err != nil {
		return nil, err
	}
	exec, err := a.executor(ctx)
	if err != nil {
		return nil, err
	}
	checkpoints, err := a.checkpoints()
	if err != nil {
		return nil, err
	}

	graph := agent.NewGraph(agent.GraphDeps{
		Agent:         agentModel,
		Text:          textModel,
		Tools:         exec,
		ToolSpecs:     tools.Definitions(),
		Formulator:    stages.NewFormulator(textModel, a.Logger),
		Extractor:     stages.NewExtractor(textModel, a.Logger),
		IsRecoverable: tools.IsRecoverable,
	}, agent.OptionsFromConfig(a.Config.Workflow), a.Logger)

	a.service = agent.NewService(graph, checkpoints, a.Logger)
	return a.service, nil
}

// turnContext bounds one turn by workflow.turn_timeout.
func (a *App) turnContext(parent context.Context) (context.Context, context.CancelFunc) {
	if d := a.Config.Workflow.TurnTimeout; d > 0 {
		return context.WithTimeout(parent, d)
	}
	return context.WithCancel(parent)
}

// requestContext bounds a single data command.
func requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 60*time.Second)
}
