package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-qcm/internal/app"
	"github.com/p-n-ai/pai-qcm/internal/platform/config"
	"github.com/p-n-ai/pai-qcm/internal/platform/logging"
)

var rootCmd = &cobra.Command{
	Use:           "qcmgen",
	Short:         "Generate pictogram-illustrated QCMs from French text",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		slog.SetDefault(logging.New(cmd.ErrOrStderr(), level, "text"))
	},
}

// openApp builds the services from the environment. Tests replace it.
var openApp = func(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(warmCacheCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(sentencesCmd)
	rootCmd.AddCommand(versionCmd)
}

// readInput returns args joined, or the content of path ("-" is stdin).
func readInput(cmd *cobra.Command, args []string, path string) (string, error) {
	if path == "" {
		return strings.Join(args, " "), nil
	}
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
