package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/code-100-precent/LingLine/internal/app"
	"github.com/code-100-precent/LingLine/pkg/config"
	"github.com/code-100-precent/LingLine/pkg/notification"
	"github.com/code-100-precent/LingLine/pkg/useragent"
	"github.com/code-100-precent/LingLine/pkg/utils"
	"github.com/spf13/cobra"
)

// Version information (set at build time)
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "lingline",
		Short:        "Inbound call answering, recording and transcription service",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newConfigureCmd(), newNotifyTestCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var banner string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the SIP client supervisor and the webhook server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if banner != "" {
				// missing banner is fine
				_ = app.PrintBannerFromFile(cmd.OutOrStdout(), banner)
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			app.LogConfigInfo(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&banner, "banner", "banner.txt", "banner file printed at startup")
	return cmd
}

func newConfigureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Write the SIP client config directives and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sup := useragent.NewSupervisor(cfg.SIP.Agent, useragent.Hooks{})
			if err := sup.EnsureConfigured(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "SIP client config is up to date: %s\n",
				filepath.Join(sup.Config().WorkDir, "config"))
			return nil
		},
	}
}

func newNotifyTestCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test message through every configured notifier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			n, err := notification.New(cfg.Notification)
			if err != nil {
				return err
			}
			if message == "" {
				message = "LingLine test notification " + utils.RandText(6)
			}

			ctx := cmd.Context()
			if cfg.Notification.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Notification.Timeout)
				defer cancel()
			}
			if err := n.SendText(ctx, message, notification.FormatPlain); err != nil {
				return fmt.Errorf("notify %s: %w", n.Name(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent via %s: %s\n", n.Name(), message)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "message text")
	return cmd
}
