package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	// logBuffer keeps recent log lines for the /logs endpoint.
	logBuffer = NewLogBuffer(1000)
)

var rootCmd = &cobra.Command{
	Use:   "meetstt",
	Short: "Chunked meeting transcription and subtitle service",
	Long: `meetstt accepts recorded meeting audio in chunks, runs batch speech
recognition with speaker diarization on each chunk and stitches the results
into one meeting transcript and one time-aligned subtitle track.`,
	SilenceUsage: true,
}

// setupLogging installs a text slog handler writing to stderr and the
// in-memory log buffer.
func setupLogging(level slog.Level) {
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, logBuffer), &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.AddCommand(serveCmd, snapshotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
