package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"amzaki/internal/config"
	"amzaki/internal/llm"
	"amzaki/internal/retry"
	"amzaki/internal/session"
	"amzaki/internal/transport"
)

// errReported marks failures already shown to the user.
var errReported = errors.New("reported")

type rootFlags struct {
	envFile   string
	model     string
	logLevel  string
	debugAddr string
}

// loadConfig reads the env file, then the environment, then applies flags.
func loadConfig(flags rootFlags) (config.Config, error) {
	if err := config.LoadEnvFile(flags.envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if flags.model != "" {
		cfg.Gemini.Model = flags.model
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.debugAddr != "" {
		cfg.DebugAddr = flags.debugAddr
	}
	return cfg, nil
}

// newLogger writes JSON records to path. The terminal belongs to the UI, so
// an empty path discards logs instead of falling back to stdout.
func newLogger(level, path string) (*slog.Logger, func() error, error) {
	slogLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}

	var w io.Writer = io.Discard
	closeFn := func() error { return nil }
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closeFn = f, f.Close
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel})), closeFn, nil
}

func retryPolicy(cfg config.RetryConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	policy.BaseDelay = cfg.BaseDelay
	return policy
}

func newManager(ctx context.Context, cfg config.Config, logger *slog.Logger, notifier session.Notifier) (*session.Manager, error) {
	httpClient := transport.NewHTTPClient(cfg.HTTPTimeout, logger)
	client, err := llm.NewGeminiClient(ctx, cfg.Gemini, httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}

	logger.Info("session starting",
		slog.String("model", client.Model()),
		slog.String("model_name", llm.GetModelName(client.Model())),
		slog.Bool("credential", client.HasCredential()),
		slog.Int("retry_attempts", cfg.Retry.MaxAttempts))

	return session.NewManager(session.Options{
		Client:                  client,
		Notifier:                notifier,
		Logger:                  logger,
		RequestTimeout:          cfg.RequestTimeout,
		ClearResetsInstructions: cfg.Session.ClearResetsInstructions,
		Retry:                   retryPolicy(cfg.Retry),
	}), nil
}
