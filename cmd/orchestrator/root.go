package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fancai/orchestrator/internal/apperr"
	"github.com/fancai/orchestrator/internal/version"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string
)

// startupError carries an explicit process exit code for the three
// startup failure modes spec.md §6 numbers literally (config, Postgres,
// coordination store). It takes priority over apperr.ExitCode's
// taxonomy-based mapping, which governs steady-state command errors
// instead (see DESIGN.md "Exit codes").
type startupError struct {
	code int
	err  error
}

func (e *startupError) Error() string { return e.err.Error() }
func (e *startupError) Unwrap() error { return e.err }

func failStartup(code int, err error) error { return &startupError{code: code, err: err} }

// exitCodeFor resolves the process exit code for an error returned by a
// command's RunE.
func exitCodeFor(err error) int {
	var se *startupError
	if errors.As(err, &se) {
		return se.code
	}
	return apperr.ExitCode(err)
}

// ParseLogLevel converts a string log level to slog.Level.
// Supports: debug, info, warn, error (case-insensitive).
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: must be debug, info, warn, or error", level)
	}
}

// GetLogLevel returns the configured log level, checking:
// 1. CLI flag (--log-level)
// 2. Environment variable (ORCH_LOG_LEVEL)
// 3. Default (info)
func GetLogLevel() slog.Level {
	level := logLevel
	if level == "" {
		level = os.Getenv("ORCH_LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}

	parsed, err := ParseLogLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using info\n", err)
		return slog.LevelInfo
	}
	return parsed
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: GetLogLevel()}))
}

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Resource-aware scheduler for book description-extraction jobs",
	Long: `orchestrator admits, queues, and executes description-extraction jobs
against uploaded EPUB/FB2 books, feeding results to a downstream
image-generation subsystem.

The pipeline includes:
  - Admission and rate control across global/per-user/per-book limits
  - A priority queue with age-based promotion and crash-recoverable position
  - An ensemble of pluggable NLP processors (keyword, LLM) behind a
    single/parallel/sequential/ensemble/adaptive strategy
  - Heavy/normal/light executor pools sized by book length`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.orchestrator/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (default: info, env: ORCH_LOG_LEVEL)",
	)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(statsCmd)
}
