package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/femtrack/api/internal/ingest/normalize"
	"github.com/femtrack/api/internal/ingest/seed"
	"github.com/femtrack/api/internal/platform/auth"
	"github.com/femtrack/api/internal/platform/db"
)

func seedCmd() *cobra.Command {
	var (
		mode   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "seed <normalized.csv>",
		Short: "Load a normalized CSV into the database",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			sc := cfg.SeedConfig()
			if cmd.Flags().Changed("mode") {
				m, err := seed.ParseMode(mode)
				if err != nil {
					return withCode(exitUsage, err)
				}
				sc.Mode = m
			}
			if _, err := os.Stat(path); err != nil {
				logger.Error().Str("file", path).Msg("CSV file not found")
				return withCode(exitNotFound, err)
			}
			if err := cfg.RequireDatabase(); err != nil {
				return withCode(exitValidation, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool, err := db.NewPool(ctx, db.PoolConfig{
				URL:      cfg.DatabaseURL,
				MaxConns: cfg.DBMaxConns,
				MinConns: cfg.DBMinConns,
				Schema:   cfg.DBSchema,
			})
			if err != nil {
				return withCode(exitDatabase, err)
			}
			defer pool.Close()

			seeder, err := seed.New(seed.NewPGStore(pool), sc, auth.NewBcryptHasher(cfg.BcryptCost), logger)
			if err != nil {
				return withCode(exitValidation, err)
			}

			logger.Info().Str("file", path).Str("mode", string(sc.Mode)).Bool("dry_run", dryRun).Msg("attempting to seed data")
			rep, err := seeder.SeedFile(ctx, path, seed.RunOptions{DryRun: dryRun})
			if rep != nil {
				logger.Info().EmbedObject(rep).Msg("seed report")
			}
			if err != nil {
				return seedError(err)
			}
			if dryRun {
				logger.Info().Msg("dry run complete; all changes rolled back")
			} else {
				logger.Info().Msg("successfully seeded database")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "Failure discipline: atomic or best-effort (default from SEED_MODE)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run the whole batch, report, and roll back")
	return cmd
}

// seedError keeps the codes of known failures and treats the rest as
// database errors.
func seedError(err error) error {
	var schema *normalize.SchemaError
	switch {
	case errors.Is(err, normalize.ErrSourceNotFound), errors.As(err, &schema),
		errors.Is(err, seed.ErrDefaultDoctorRole), errors.Is(err, seed.ErrBatchAborted):
		return err
	case errors.Is(err, context.Canceled):
		return withCode(exitFailure, err)
	default:
		return withCode(exitDatabase, err)
	}
}
