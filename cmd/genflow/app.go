package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/alexisbeaulieu97/genflow/internal/config"
	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/genflow/internal/orchestrator"
	"github.com/alexisbeaulieu97/genflow/internal/ports"
	"github.com/alexisbeaulieu97/genflow/internal/provider"
	"github.com/alexisbeaulieu97/genflow/internal/retry"
	"github.com/alexisbeaulieu97/genflow/internal/store"
	"github.com/alexisbeaulieu97/genflow/internal/storyboard"
)

// appContext bundles the long-lived services a command needs.
type appContext struct {
	settings     *config.Settings
	logger       ports.Logger
	kv           ports.KVStore
	tasks        *store.TaskStore
	provider     *provider.Client
	orchestrator *orchestrator.Orchestrator
	storyboards  *storyboard.Generator
}

// newApp loads settings and wires the services. Log entries produced before
// the configured logger exists are buffered and replayed into it.
func newApp(ctx context.Context, cmd *cobra.Command, flags *rootFlags) (*appContext, error) {
	buffer := logging.NewEventBuffer(0)
	early := logging.NewBufferedLogger(buffer)

	settings, err := loadSettings(cmd, flags, early)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(settings.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	buffer.Flush(logger)

	kv, err := store.Open(ctx, settings.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	tasks := store.NewTaskStore(kv)
	logger.Debug(ctx, "store opened", "driver", settings.Store.Driver)

	clientOpts := []provider.Option{provider.WithLogger(logger.With("component", "provider"))}
	if model, err := newTextModel(settings.LLM); err != nil {
		logger.Warn(ctx, "text steps unavailable", "error", err)
	} else if model != nil {
		clientOpts = append(clientOpts, provider.WithTextModel(model))
	}
	client := provider.NewClient(settings.ProviderConfig(), clientOpts...)

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger.With("component", "orchestrator")),
		orchestrator.WithTaskStore(tasks),
		orchestrator.WithPollPolicies(settings.PollPolicies()),
	}
	retryOpts := []retry.Option{
		retry.WithMaxAttempts(settings.Retry.MaxAttempts),
		retry.WithBackoff(settings.Retry.BaseDelay, settings.Retry.Jitter),
	}
	if settings.Retry.Enabled {
		orchOpts = append(orchOpts, orchestrator.WithStepRetry(retryOpts...))
	}
	orch := orchestrator.New(client, orchOpts...)

	gen := storyboard.New(orch,
		storyboard.WithLogger(logger.With("component", "storyboard")),
		storyboard.WithConcurrency(settings.Storyboard.Concurrency),
		storyboard.WithDefaults(workflow.ToolKind(settings.Storyboard.Tool), settings.Storyboard.Model),
		storyboard.WithRetry(retryOpts...),
	)

	return &appContext{
		settings:     settings,
		logger:       logger,
		kv:           kv,
		tasks:        tasks,
		provider:     client,
		orchestrator: orch,
		storyboards:  gen,
	}, nil
}

func (a *appContext) Close() error {
	if a == nil || a.kv == nil {
		return nil
	}
	return a.kv.Close()
}

func loadSettings(cmd *cobra.Command, flags *rootFlags, logger ports.Logger) (*config.Settings, error) {
	v := config.NewViper(flags.configFile)
	if f := cmd.Flag("log-level"); f != nil {
		_ = v.BindPFlag("log.level", f)
	}
	if f := cmd.Flag("log-format"); f != nil {
		_ = v.BindPFlag("log.format", f)
	}
	if flags.verbose {
		v.Set("log.level", "debug")
	}

	settings, err := config.LoadSettings(v)
	if err != nil {
		return nil, err
	}
	source := v.ConfigFileUsed()
	if source == "" {
		source = "defaults"
	}
	logger.Debug(cmd.Context(), "settings loaded", "source", source, "store", settings.Store.Driver, "provider", settings.Provider.BaseURL)
	return settings, nil
}

func newLogger(s config.LogSettings, w io.Writer) (ports.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	if s.UseZerolog() {
		logger, err := logging.NewZerolog(logging.ZerologOptions{
			Writer:        w,
			Level:         s.Level,
			HumanReadable: s.Format != "json",
			Layer:         "application",
		})
		if err != nil {
			return nil, err
		}
		return logger, nil
	}
	logger, err := logging.New(logging.Options{Writer: w, Level: s.Level, Format: s.Format, Layer: "application"})
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// newTextModel returns nil without error when no token is configured.
func newTextModel(s config.LLMSettings) (llms.Model, error) {
	if s.Token == "" {
		return nil, nil
	}
	opts := []openai.Option{
		openai.WithToken(s.Token),
		openai.WithModel(s.Model),
	}
	if s.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(s.BaseURL))
	}
	return openai.New(opts...)
}
