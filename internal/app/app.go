// Package app wires configuration, stores, the agent runner and the
// transport into a runnable server.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"canvasmith/internal/agent"
	"canvasmith/internal/artifact"
	"canvasmith/internal/config"
	"canvasmith/internal/design"
	"canvasmith/internal/llm"
	"canvasmith/internal/plan"
	"canvasmith/internal/server"
	"canvasmith/internal/session"
	"canvasmith/internal/storage"
	"canvasmith/internal/tools"
)

type App struct {
	server   *server.Server
	log      zerolog.Logger
	versions *storage.PostgresVersionStore
	llm      llm.Client
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("service", "canvasmith").Logger()

	// Stores
	designs := design.NewStore()
	plans := plan.NewRegistry()

	var (
		versions design.VersionStore = design.NewMemoryVersionStore()
		pgStore  *storage.PostgresVersionStore
	)
	if cfg.DB.URL != "" {
		pgStore, err = storage.NewPostgresVersionStore(ctx, cfg.DB.URL)
		if err != nil {
			return nil, fmt.Errorf("init version store: %w", err)
		}
		versions = pgStore
		log.Info().Msg("using postgres version store")
	}

	var snapshots server.SnapshotArchiver
	if cfg.S3.Enabled {
		store, err := artifact.NewS3Store(artifact.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			log.Warn().Err(err).Msg("snapshot archiving disabled")
		} else {
			snapshots = store
			log.Info().Str("bucket", cfg.S3.Bucket).Msg("snapshot archiving enabled")
		}
	}

	// Model client
	var client llm.Client
	if cfg.LLM.Fake {
		client = llm.NewFakeClientFromStrings(`{"action":"final","final":{"message":"Fake model is active; set GEMINI_API_KEY to talk to Gemini."}}`)
		log.Warn().Msg("using fake model client")
	} else {
		client, err = llm.NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return nil, fmt.Errorf("init model client: %w", err)
		}
		log.Info().Str("model", cfg.LLM.Model).Msg("using gemini client")
	}

	// Agent & sessions
	runner := &agent.Runner{
		LLM:   client,
		Tools: tools.NewCatalog(designs, plans).Registry(),
		Log:   log,
	}
	coord := session.NewCoordinator(runner, designs, log)

	// Transport
	handler := server.NewHandler(coord, designs, versions, plans, snapshots, log)
	srv := server.New(cfg.Port, server.Routes(handler), log)

	return &App{
		server:   srv,
		log:      log,
		versions: pgStore,
		llm:      client,
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if a.versions != nil {
		a.versions.Close()
	}
	if a.llm != nil {
		_ = a.llm.Close()
	}
	return err
}
