package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/femtrack/api/internal/config"
	"github.com/femtrack/api/internal/ingest/normalize"
	"github.com/femtrack/api/internal/ingest/seed"
)

// Exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
	exitUsage      = 3
	exitNotFound   = 4
	exitDatabase   = 5
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(stderr, "Error:", err)
	return exitCode(err)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "femtrack",
		Short:         "FemTrack screening data pipeline and API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withCode(exitUsage, err)
	})

	root.AddCommand(serveCmd())
	root.AddCommand(cleanCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(migrateCmd())
	return root
}

// codedError carries a process exit code.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

func usageErrorf(format string, args ...any) error {
	return withCode(exitUsage, fmt.Errorf(format, args...))
}

// exitCode maps an error to its exit code. An explicit code wins over the
// error's kind.
func exitCode(err error) int {
	var (
		coded  *codedError
		schema *normalize.SchemaError
		impute *normalize.ImputationError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &coded):
		return coded.code
	case errors.Is(err, normalize.ErrSourceNotFound):
		return exitNotFound
	case errors.As(err, &schema), errors.As(err, &impute):
		return exitValidation
	case errors.Is(err, seed.ErrDefaultDoctorRole):
		return exitValidation
	case errors.Is(err, seed.ErrBatchAborted):
		return exitDatabase
	default:
		return exitFailure
	}
}

// exactArgs is cobra.ExactArgs with a usage exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return withCode(exitUsage, err)
		}
		return nil
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	return exactArgs(0)(cmd, args)
}

// loadConfig reads configuration and builds the command logger.
func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), withCode(exitValidation, err)
	}
	return cfg, newLogger(cmd.OutOrStdout(), cfg), nil
}

func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
