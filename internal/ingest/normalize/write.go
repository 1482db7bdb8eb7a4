package normalize

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/femtrack/api/internal/domain/screening"
)

func (r Record) row() []string {
	return []string{
		r.PatientID,
		strconv.Itoa(r.Age),
		strconv.Itoa(r.SexualPartners),
		strconv.Itoa(r.FirstSexualActivityAge),
		string(r.RiskLevel),
		r.HPVTestResult,
		r.PapSmearResult,
		string(r.SmokingStatus),
		string(r.STDsHistory),
		r.Region,
		string(r.InsuranceCovered),
		r.RecommendedAction,
		r.ScreeningTypeLast,
	}
}

// WriteCSV writes records under the OutputColumns header.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(OutputColumns); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes records to path through a temporary file in the same
// directory, so path is either the complete output or untouched.
func WriteFile(path string, records []Record) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = WriteCSV(tmp, records); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

// ParseRecord reads one row of a normalized file. The insurance column may
// use either accepted spelling.
func ParseRecord(row RawRecord) (Record, error) {
	var errs []error
	intField := func(col string) int {
		n, err := parseInt(row[col])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", col, err))
		}
		return n
	}

	r := Record{
		PatientID:              strings.TrimSpace(row[ColPatientID]),
		Age:                    intField(ColAge),
		SexualPartners:         intField(ColSexualPartners),
		FirstSexualActivityAge: intField(ColFirstActivityAge),
		HPVTestResult:          strings.TrimSpace(row[ColHPVTestResult]),
		PapSmearResult:         strings.TrimSpace(row[ColPapSmearResult]),
		SmokingStatus:          ParseFlag(row[ColSmokingStatus]),
		STDsHistory:            ParseFlag(row[ColSTDsHistory]),
		Region:                 row[ColRegion],
		RecommendedAction:      row[ColRecommended],
		ScreeningTypeLast:      row[ColScreeningType],
	}
	if r.PatientID == "" {
		errs = append(errs, errors.New("empty patient id"))
	}

	insurance, ok := row[ColInsuranceCovered]
	if !ok {
		insurance = row[colInsuranceLegacy]
	}
	r.InsuranceCovered = ParseInsurance(insurance)

	tier, err := screening.ParseRiskTier(row[ColRiskLevel])
	if err != nil {
		errs = append(errs, err)
	}
	r.RiskLevel = tier

	if len(errs) > 0 {
		return Record{}, errors.Join(errs...)
	}
	return r, nil
}

// parseInt accepts integers and integral decimals such as "34.0".
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative value %d", n)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return 0, fmt.Errorf("malformed integer %q", s)
	}
	return int(f), nil
}
