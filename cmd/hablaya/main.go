// Package main is the entry point for the hablaya CLI.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/iamvkosarev/hablaya/config"
	"github.com/iamvkosarev/hablaya/internal/app"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Set by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hablaya",
		Short:         "Conversational English practice with an AI tutor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.PersistentFlags().String("env-file", ".env", "Environment file loaded before the configuration")
	root.AddCommand(versionCmd(), serveCmd(), telegramCmd(), chatCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hablaya %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat, speech and transcription relays over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.RunServer(ctx, cfg, app.NewLogger(cfg.Log, os.Stderr))
		},
	}
}

func telegramCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "telegram",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Telegram.TelegramAPIToken == "" {
				return errors.New("TELEGRAM_APITOKEN is not set")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.RunTelegram(ctx, cfg, app.NewLogger(cfg.Log, os.Stderr))
		},
	}
}

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Practice in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			remote, _ := cmd.Flags().GetBool("remote")
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.RunChat(
				ctx, cfg, app.NewLogger(cfg.Log, os.Stderr), app.ChatOptions{
					Remote: remote,
					In:     cmd.InOrStdin(),
					Out:    cmd.OutOrStdout(),
				},
			)
		},
	}
	cmd.Flags().Bool("remote", false, "Use the server at client.server_url instead of calling OpenAI directly")
	return cmd
}

// loadConfig reads the env file when present, then the configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
