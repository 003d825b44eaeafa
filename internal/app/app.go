package app

import (
	"context"
	"log/slog"

	"immosync/internal/config"
	"immosync/internal/enrich"
	"immosync/internal/infrastructure/airtable"
	"immosync/internal/infrastructure/export"
	"immosync/internal/infrastructure/fetch"
	"immosync/internal/infrastructure/llm"
	"immosync/internal/infrastructure/storage"
	"immosync/internal/logging"
	"immosync/internal/ports"
	"immosync/internal/usecase"
)

// Application wires configuration to adapters and the pipeline.
type Application struct {
	pipeline *usecase.Pipeline
	archive  *storage.PostgresArchive
	logger   *slog.Logger
}

// New builds a runnable application instance. Missing store or model
// credentials leave the corresponding capability nil; the pipeline degrades
// gracefully (export-only sync, heuristic enrichment).
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	fetcher := fetch.NewClient(nil, cfg.Site.UserAgents, cfg.Site.RequestDelay(),
		cfg.Site.MaxRetries, logging.Component(baseLogger, "fetch"))

	var store ports.RecordStore
	if cfg.Airtable.Configured() {
		store = airtable.NewClient(cfg.Airtable)
	} else {
		baseLogger.Info("airtable credentials absent, running export-only")
	}

	var model ports.Completer
	if cfg.OpenAI.APIKey != "" {
		model = llm.NewOpenAIClient(cfg.OpenAI)
	} else {
		baseLogger.Info("openai key absent, enrichment uses heuristics only")
	}

	var archive *storage.PostgresArchive
	if cfg.Archive.DSN != "" {
		var err error
		archive, err = storage.NewPostgresArchive(cfg.Archive.DSN)
		if err != nil {
			return nil, err
		}
	}

	cache := enrich.NewCache()
	classifier := enrich.NewClassifier(cache, model, logging.Component(baseLogger, "classifier"))
	summarizer := enrich.NewSummarizer(cache, model, logging.Component(baseLogger, "summarizer"))

	deps := usecase.PipelineDeps{
		Fetcher:     fetcher,
		Store:       store,
		Exporter:    export.NewCSVWriter(cfg.Export.CSVPath),
		Cache:       cache,
		Classifier:  classifier,
		Summarizer:  summarizer,
		Logger:      logging.Component(baseLogger, "pipeline"),
		BaseURL:     cfg.Site.BaseURL,
		ListURL:     cfg.Site.ListURL(),
		ViewerHost:  cfg.Site.ViewerHost,
		FullReplace: cfg.Sync.FullReplace,
	}
	if archive != nil {
		deps.Archive = archive
	}

	return &Application{
		pipeline: usecase.NewPipeline(deps),
		archive:  archive,
		logger:   baseLogger,
	}, nil
}

// Run performs a single scrape-and-sync pass.
func (a *Application) Run(ctx context.Context) error {
	return a.pipeline.Run(ctx)
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.archive != nil {
		return a.archive.Close()
	}
	return nil
}
