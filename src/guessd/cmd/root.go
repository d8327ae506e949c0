package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/q-controller/guessit/src/pkg/logging"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "guessd",
	Short: "Serves a game of guessing the secret word behind an image",
}

func Execute() {
	slog.SetDefault(logging.CreateLogger(logging.LevelFromEnv(slog.LevelInfo)))
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		slog.Error("failed to execute command", "error", err)
		os.Exit(1)
	}
}
