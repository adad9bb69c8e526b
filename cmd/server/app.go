package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yonatanl/tamlil/internal/api"
	"github.com/yonatanl/tamlil/internal/config"
	"github.com/yonatanl/tamlil/internal/diarize"
	"github.com/yonatanl/tamlil/internal/download"
	"github.com/yonatanl/tamlil/internal/media"
	"github.com/yonatanl/tamlil/internal/summarize"
	"github.com/yonatanl/tamlil/internal/task"
	"github.com/yonatanl/tamlil/internal/transcribe"
	"github.com/yonatanl/tamlil/internal/watch"
	"github.com/yonatanl/tamlil/pkg/execx"
)

// application holds the wired components for a running server instance.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	manager *task.Manager
	janitor *task.Janitor
	watcher *watch.Watcher // nil unless a watch dir is configured
	handler *api.Handler
}

// newApplication builds every component from configuration: store (with
// snapshot load and crash recovery), collaborators, task manager, janitor
// and HTTP handlers. shutdown is the injected process-termination side
// effect handed to the janitor's idle-shutdown check.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, shutdown func()) (*application, error) {
	store, err := task.NewStore(cfg.Storage.SnapshotPath, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize task store: %w", err)
	}

	runner := execx.New()

	var diarizer task.Diarizer = diarize.Noop{}
	if cfg.Diarize.ServiceURL != "" {
		diarizer = diarize.NewService(cfg.Diarize.ServiceURL, logger)
		logger.Info("speaker diarization enabled", "service_url", cfg.Diarize.ServiceURL)
	} else {
		logger.Info("speaker diarization disabled (no service URL)")
	}

	var gemini *summarize.Gemini
	var summarizer task.Summarizer = summarize.Noop{}
	if cfg.LLM.GeminiAPIKey != "" {
		gemini, err = summarize.NewGemini(ctx, cfg.LLM.GeminiAPIKey, cfg.LLM.Model, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize gemini: %w", err)
		}
		summarizer = gemini
		logger.Info("AI summaries enabled", "model", cfg.LLM.Model)
	} else {
		logger.Info("AI summaries disabled (no API key)")
	}

	mgrCfg := task.DefaultManagerConfig()
	mgrCfg.OutputDir = cfg.Storage.OutputDir
	mgrCfg.DownloadDir = cfg.Storage.DownloadDir
	mgrCfg.SummaryCharBudget = cfg.LLM.SummaryCharBudget

	manager, err := task.NewManager(mgrCfg, task.Collaborators{
		Downloader: download.NewResolver("", runner, logger),
		Converter:  media.NewExtractor("", runner, logger),
		Transcriber: transcribe.NewWhisper(transcribe.Config{
			BinaryPath: cfg.Whisper.BinaryPath,
			ModelPath:  cfg.Whisper.ModelPath,
			Language:   cfg.Whisper.Language,
			Threads:    cfg.Whisper.Threads,
		}, runner, logger),
		Diarizer:   diarizer,
		Summarizer: summarizer,
	}, store, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize task manager: %w", err)
	}

	janCfg := task.DefaultJanitorConfig()
	janCfg.SweepInterval = time.Duration(cfg.Janitor.SweepIntervalMin) * time.Minute
	janCfg.Retention = time.Duration(cfg.Janitor.RetentionHours) * time.Hour
	janCfg.IdleTimeout = time.Duration(cfg.Janitor.IdleTimeoutMin) * time.Minute
	janCfg.IdleShutdown = cfg.Janitor.IdleShutdown
	janCfg.IdleShutdownDryRun = cfg.Janitor.IdleShutdownDryRun
	janCfg.Dirs = []string{cfg.Storage.OutputDir, cfg.Storage.DownloadDir, cfg.Storage.UploadDir}

	app := &application{
		config:  cfg,
		logger:  logger,
		manager: manager,
		janitor: task.NewJanitor(janCfg, manager, shutdown, logger),
		handler: api.New(
			manager,
			gemini,
			cfg.Storage.UploadDir,
			cfg.Storage.OutputDir,
			cfg.Server.MaxUploadBytes,
			cfg.Diarize.ServiceURL != "",
			logger,
		),
	}

	if cfg.Watch.Dir != "" {
		watcher, err := watch.New(cfg.Watch.Dir, manager, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize inbox watcher: %w", err)
		}
		app.watcher = watcher
	}

	return app, nil
}

// start launches the background components.
func (app *application) start(ctx context.Context) {
	app.manager.Start()
	app.janitor.Start()
	if app.watcher != nil {
		go app.watcher.Run(ctx)
	}
}

// cleanup stops background components in reverse dependency order.
func (app *application) cleanup() {
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			app.logger.Error("failed to close watcher", "error", err)
		}
	}
	app.janitor.Stop()
	app.manager.Close()
}
