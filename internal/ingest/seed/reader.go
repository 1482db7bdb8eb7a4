package seed

import (
	"fmt"
	"os"

	"github.com/femtrack/api/internal/ingest/normalize"
)

// Entry is a parsed record with its source line.
type Entry struct {
	Line   int
	Record normalize.Record
}

// ReadFile parses a normalized CSV. Rows that fail to parse are returned as
// load errors next to the good entries; only an unreadable file is an error.
func ReadFile(path string) ([]Entry, []*RecordLoadError, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return nil, nil, fmt.Errorf("%w: %s", normalize.ErrSourceNotFound, path)
		}
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := normalize.ReadCSV(f)
	if err != nil {
		return nil, nil, err
	}
	if len(t.Rows) > 0 && !t.Has(normalize.ColPatientID) {
		return nil, nil, &normalize.SchemaError{Missing: []string{normalize.ColPatientID}}
	}

	var (
		entries []Entry
		failed  []*RecordLoadError
	)
	for i, row := range t.Rows {
		line := t.Line(i)
		rec, err := normalize.ParseRecord(row)
		if err != nil {
			failed = append(failed, &RecordLoadError{PatientID: row[normalize.ColPatientID], Line: line, Err: err})
			continue
		}
		entries = append(entries, Entry{Line: line, Record: rec})
	}
	return entries, failed, nil
}
