package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"amzaki/internal/httpserver"
	"amzaki/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:           "amzaki",
		Short:         "Am Zaki is a terminal chat assistant backed by Gemini",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file to preload, ignored when missing")
	cmd.PersistentFlags().StringVar(&flags.model, "model", "", "Gemini model id (overrides GEMINI_MODEL)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	cmd.Flags().StringVar(&flags.debugAddr, "debug-addr", "", "serve the read-only session inspector on this address (overrides DEBUG_ADDR)")

	cmd.AddCommand(newAskCmd(&flags), newModelsCmd())
	return cmd
}

func runChat(parent context.Context, flags rootFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bridge := ui.NewBridge()
	manager, err := newManager(ctx, cfg, logger, bridge)
	if err != nil {
		return err
	}

	if cfg.DebugAddr != "" {
		server := httpserver.NewServer(cfg.DebugAddr, httpserver.NewRouter(httpserver.RouterDeps{
			Logger:  logger,
			Session: manager,
		}), logger)
		addr, err := server.Start(ctx)
		if err != nil {
			return fmt.Errorf("start inspector: %w", err)
		}
		logger.Info("inspector listening", slog.String("addr", addr.String()))
	}

	p := tea.NewProgram(ui.NewModel(ctx, manager), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p)

	_, runErr := p.Run()

	// Abandon a pending reply; the worker still settles the session.
	stop()
	manager.Wait()
	logger.Info("session ended", slog.Int("turns", len(manager.History())))

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) && !errors.Is(runErr, tea.ErrInterrupted) {
		fmt.Fprintln(os.Stderr, runErr)
		return errReported
	}
	return nil
}
