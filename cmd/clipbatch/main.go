// Package main provides the clipbatch command-line tool for probing and
// trimming videos without the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maauso/clipbatch/internal/bootstrap"
	"github.com/maauso/clipbatch/internal/config"
	"github.com/maauso/clipbatch/internal/media"
)

var (
	ffmpegPath string
	tempDir    string
	verbose    bool
)

type contextKey struct{}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "clipbatch",
	Short:        "clipbatch - trim video segments into clips",
	Long:         "Probe MP4 and MOV sources and cut stream-copied clips with ffmpeg.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("ffmpeg") {
			cfg.FFmpegPath = ffmpegPath
		}
		if cmd.Flags().Changed("temp-dir") {
			cfg.TempDir = tempDir
		}
		if verbose {
			cfg.LogLevel = "debug"
		}

		logger := cfg.NewLogger()
		slog.SetDefault(logger)

		proc := bootstrap.NewProcessor(cfg, logger)
		cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, proc))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ffmpegPath, "ffmpeg", "ffmpeg", "path to the ffmpeg binary (overrides FFMPEG_PATH)")
	rootCmd.PersistentFlags().StringVar(&tempDir, "temp-dir", "", "directory for engine working files (overrides TEMP_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(trimCmd)
}

// processorFrom returns the processor stored by the root command.
func processorFrom(ctx context.Context) (media.Processor, error) {
	proc, ok := ctx.Value(contextKey{}).(media.Processor)
	if !ok {
		return nil, fmt.Errorf("media processor not initialized")
	}
	return proc, nil
}
