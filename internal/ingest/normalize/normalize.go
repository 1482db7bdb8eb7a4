// Package normalize cleans a raw screening table into typed records: it drops
// export artifacts, imputes missing numerics with the column median,
// canonicalizes binary fields and assigns each row a risk tier.
package normalize

import (
	"fmt"
	"strings"

	"github.com/femtrack/api/internal/domain/screening"
)

// Record is one cleaned row. Every field is populated.
type Record struct {
	PatientID              string
	Age                    int
	SexualPartners         int
	FirstSexualActivityAge int
	RiskLevel              screening.RiskTier
	HPVTestResult          string
	PapSmearResult         string
	SmokingStatus          screening.Flag
	STDsHistory            screening.Flag
	Region                 string
	InsuranceCovered       screening.Flag
	RecommendedAction      string
	ScreeningTypeLast      string
}

// Attributes returns the classification inputs of r.
func (r Record) Attributes() screening.Attributes {
	return screening.Attributes{
		Age:            r.Age,
		SmokingStatus:  r.SmokingStatus,
		STDsHistory:    r.STDsHistory,
		HPVTestResult:  r.HPVTestResult,
		PapSmearResult: r.PapSmearResult,
	}
}

// ColumnStats describes the imputation applied to one numeric column.
type ColumnStats struct {
	Imputed int
	// Median is only meaningful when Imputed > 0 or the column had values.
	Median float64
}

// Summary describes one Normalize run.
type Summary struct {
	RowsIn         int
	RowsOut        int
	DroppedColumns []string
	Columns        map[string]ColumnStats
	Tiers          map[screening.RiskTier]int
}

// Normalize cleans every row of t. It fails before producing any record if a
// required column is missing or a numeric column cannot be imputed.
func Normalize(t *Table) ([]Record, *Summary, error) {
	sum := &Summary{
		RowsIn:  len(t.Rows),
		Columns: make(map[string]ColumnStats, len(numericColumns)),
		Tiers:   make(map[screening.RiskTier]int, len(screening.Tiers)),
	}

	for _, h := range t.Header {
		if isArtifact(h) {
			sum.DroppedColumns = append(sum.DroppedColumns, h)
		}
	}

	var missing []string
	for _, col := range sourceColumns {
		if !t.Has(col) {
			missing = append(missing, col)
		}
	}
	insurance, ok := insuranceColumn(t.Has)
	if !ok {
		missing = append(missing, ColInsuranceCovered)
	}
	if len(missing) > 0 {
		return nil, nil, &SchemaError{Missing: missing}
	}

	numbers, err := imputeAll(t.Rows, sum)
	if err != nil {
		return nil, nil, err
	}

	records := make([]Record, len(t.Rows))
	for i, row := range t.Rows {
		rec := Record{
			PatientID:              fmt.Sprintf("P%04d", i+1),
			Age:                    numbers[ColAge][i],
			SexualPartners:         numbers[ColSexualPartners][i],
			FirstSexualActivityAge: numbers[ColFirstActivityAge][i],
			HPVTestResult:          strings.TrimSpace(row[ColHPVTestResult]),
			PapSmearResult:         strings.TrimSpace(row[ColPapSmearResult]),
			SmokingStatus:          ParseFlag(row[ColSmokingStatus]),
			STDsHistory:            ParseFlag(row[ColSTDsHistory]),
			Region:                 row[ColRegion],
			InsuranceCovered:       ParseInsurance(row[insurance]),
			RecommendedAction:      row[ColRecommended],
			ScreeningTypeLast:      row[ColScreeningType],
		}
		// The tier sees the rounded age, the same value written to the output.
		rec.RiskLevel = screening.Classify(rec.Attributes())
		sum.Tiers[rec.RiskLevel]++
		records[i] = rec
	}
	sum.RowsOut = len(records)
	return records, sum, nil
}

// imputeAll parses every numeric column and fills the gaps with that column's
// median over the whole table.
func imputeAll(rows []RawRecord, sum *Summary) (map[string][]int, error) {
	out := make(map[string][]int, len(numericColumns))
	for _, col := range numericColumns {
		parsed := make([]float64, len(rows))
		valid := make([]bool, len(rows))
		var values []float64
		for i, row := range rows {
			if f, ok := parseNumber(row[col]); ok {
				parsed[i], valid[i] = f, true
				values = append(values, f)
			}
		}

		stats := ColumnStats{Imputed: len(rows) - len(values)}
		if len(values) > 0 {
			stats.Median = median(values)
		} else if stats.Imputed > 0 {
			return nil, &ImputationError{Column: col}
		}

		ints := make([]int, len(rows))
		for i := range rows {
			if valid[i] {
				ints[i] = toInt(parsed[i])
			} else {
				ints[i] = toInt(stats.Median)
			}
		}
		out[col] = ints
		sum.Columns[col] = stats
	}
	return out, nil
}

// CleanFile reads input, normalizes it, and writes the result to output.
// Nothing is written when cleaning fails.
func CleanFile(input, output string) (*Summary, error) {
	t, err := ReadFile(input)
	if err != nil {
		return nil, err
	}
	records, sum, err := Normalize(t)
	if err != nil {
		return nil, err
	}
	if err := WriteFile(output, records); err != nil {
		return nil, err
	}
	return sum, nil
}
