package cmd

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nikogura/resume-forge/pkg/config"
	"github.com/nikogura/resume-forge/pkg/critic"
	"github.com/nikogura/resume-forge/pkg/document"
	"github.com/nikogura/resume-forge/pkg/generator"
	"github.com/nikogura/resume-forge/pkg/jobs"
	"github.com/nikogura/resume-forge/pkg/judge"
	"github.com/nikogura/resume-forge/pkg/pipeline"
	"github.com/nikogura/resume-forge/pkg/provider"
	"github.com/nikogura/resume-forge/pkg/renderer"
	"github.com/nikogura/resume-forge/pkg/store"
)

// app holds the components built from config for one command invocation.
type app struct {
	cfg          config.Config
	orchestrator *pipeline.Orchestrator
	critic       *critic.Critic
	closeStore   func() error
}

func loadApp(ctx context.Context) (a *app, err error) {
	var cfg config.Config
	cfg, err = config.Load(getConfigFile())
	if err != nil {
		err = errors.Wrap(err, "failed to load config")
		return a, err
	}

	a, err = newApp(ctx, cfg)
	return a, err
}

func newApp(ctx context.Context, cfg config.Config) (a *app, err error) {
	var genProvider, evalProvider provider.Provider
	genProvider, err = provider.New(ctx, provider.Options{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey(),
		Model:    cfg.GetGenerationModel(),
		Logger:   logger,
	})
	if err != nil {
		err = errors.Wrap(err, "failed to create generation provider")
		return a, err
	}

	evalProvider, err = provider.New(ctx, provider.Options{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey(),
		Model:    cfg.GetEvaluationModel(),
		Logger:   logger,
	})
	if err != nil {
		err = errors.Wrap(err, "failed to create evaluation provider")
		return a, err
	}

	a = &app{cfg: cfg, closeStore: func() error { return nil }}

	var contentStore store.Store
	if cfg.DatabaseURL != "" {
		var pg *store.PostgresStore
		pg, err = store.OpenPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return a, err
		}
		contentStore = pg
		a.closeStore = pg.Close
		logger.Debug("using postgres content store")
	} else {
		contentStore = store.NewFileStore(cfg.DataDir, logger)
		logger.Debug("using file content store", zap.String("data_dir", cfg.DataDir))
	}

	repo := jobs.NewFileRepository(cfg.DataDir)
	status := store.NewStatusStore(cfg.DataDir, logger)
	critiques := store.NewCritiqueLog(cfg.DataDir, logger)
	inspector := document.PDF{}

	a.critic = &critic.Critic{
		Provider:  evalProvider,
		Inspector: inspector,
		Jobs:      repo,
		Status:    status,
		Log:       critiques,
		DataDir:   cfg.DataDir,
		Logger:    logger,
	}

	a.orchestrator = &pipeline.Orchestrator{
		Jobs:      repo,
		Store:     contentStore,
		Status:    status,
		Critiques: critiques,
		Generator: &generator.Generator{
			Provider: genProvider,
			Store:    contentStore,
			Status:   status,
			Rules:    cfg.RulesFor,
			DataDir:  cfg.DataDir,
			Logger:   logger,
		},
		Critic: a.critic,
		Judge: &judge.Judge{
			Provider:  evalProvider,
			Inspector: inspector,
			DataDir:   cfg.DataDir,
			Logger:    logger,
		},
		Renderer:          renderer.NewPandoc(cfg.Pandoc.TemplatePath, cfg.Pandoc.ClassFile, logger),
		Rules:             cfg.RulesFor,
		GenerationPricing: provider.PricingFor(genProvider.Model()),
		EvaluationPricing: provider.PricingFor(evalProvider.Model()),
		OutputDir:         cfg.Defaults.OutputDir,
		CompaniesDir:      cfg.CompaniesDir,
		MaxRoles:          cfg.Defaults.MaxRoles,
		MaxAttempts:       cfg.Defaults.MaxAttempts,
		Logger:            logger,
	}

	return a, err
}

func (a *app) close() {
	err := a.closeStore()
	if err != nil {
		logger.Warn("failed to close content store", zap.Error(err))
	}
}
