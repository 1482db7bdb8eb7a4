package main

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/femtrack/api/internal/domain/screening"
	"github.com/femtrack/api/internal/ingest/normalize"
)

func cleanCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Normalize a raw screening table into a seedable CSV",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input == "" {
				return usageErrorf("--input is required")
			}
			_, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger.Info().Str("input", input).Msg("cleaning source table")
			sum, err := normalize.CleanFile(input, output)
			if err != nil {
				logger.Error().Err(err).Str("input", input).Msg("cleaning failed; no output written")
				return err
			}
			logSummary(logger, sum)
			logger.Info().Str("output", output).Int("rows", sum.RowsOut).Msg("cleaned data saved")
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Raw .csv or .xlsx source table")
	cmd.Flags().StringVar(&output, "output", "cervical_cancer_processed_data.csv", "Normalized CSV to write")
	return cmd
}

func logSummary(logger zerolog.Logger, sum *normalize.Summary) {
	logger.Info().Int("rows_in", sum.RowsIn).Strs("dropped_columns", sum.DroppedColumns).Msg("source loaded")

	cols := make([]string, 0, len(sum.Columns))
	for col := range sum.Columns {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		st := sum.Columns[col]
		if st.Imputed == 0 {
			continue
		}
		logger.Info().Str("column", col).Int("imputed", st.Imputed).Float64("median", st.Median).Msg("imputed missing values")
	}

	ev := logger.Info()
	for _, tier := range screening.Tiers {
		ev = ev.Int(string(tier), sum.Tiers[tier])
	}
	ev.Msg("risk levels assigned")
}
