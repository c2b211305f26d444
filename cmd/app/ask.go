package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"amzaki/internal/session"

	"github.com/spf13/cobra"
)

func newAskCmd(flags *rootFlags) *cobra.Command {
	var system string

	cmd := &cobra.Command{
		Use:   "ask [--system text] <message>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}
			logger, closeLog, err := newLogger(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			manager, err := newManager(ctx, cfg, logger, session.NopNotifier{})
			if err != nil {
				return err
			}
			manager.SetSystemInstructions(system)

			done, err := manager.Submit(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			res := <-done

			out := cmd.OutOrStdout()
			if res.Err != nil {
				fmt.Fprintln(out, session.UserMessage(res.Err))
				return errReported
			}
			fmt.Fprintln(out, res.Text)
			return nil
		},
	}

	cmd.Flags().StringVar(&system, "system", "", "system instructions for this message")
	return cmd
}
