package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/femtrack/api/internal/platform/db"
	"github.com/femtrack/api/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	var dir, schema string
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.PersistentFlags().StringVar(&schema, "schema", "", "Target schema (default DB_SCHEMA or public)")

	open := func(cmd *cobra.Command) (*db.Migrator, func(), error) {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return nil, nil, err
		}
		if err := cfg.RequireDatabase(); err != nil {
			return nil, nil, withCode(exitValidation, err)
		}
		if schema == "" {
			schema = cfg.DBSchema
		}
		if schema != "" && !db.ValidSchemaName(schema) {
			return nil, nil, usageErrorf("invalid schema name %q", schema)
		}

		var source fs.FS = migrations.FS
		if dir != "" {
			if _, err := os.Stat(dir); err != nil {
				return nil, nil, withCode(exitNotFound, err)
			}
			source = os.DirFS(dir)
		}

		pool, err := db.NewPool(context.Background(), db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: 1,
		})
		if err != nil {
			return nil, nil, withCode(exitDatabase, err)
		}
		return db.NewMigrator(pool, source, schema), pool.Close, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			migrator, closePool, err := open(cmd)
			if err != nil {
				return err
			}
			defer closePool()

			out := cmd.OutOrStdout()
			count, err := migrator.Up(cmd.Context())
			if err != nil {
				return withCode(exitDatabase, fmt.Errorf("migration failed: %w", err))
			}
			fmt.Fprintf(out, "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			migrator, closePool, err := open(cmd)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return withCode(exitDatabase, fmt.Errorf("failed to get migration status: %w", err))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}
