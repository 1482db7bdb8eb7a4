package normalize

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RawRecord is one source row keyed by header. A column the row has no cell
// for is absent from the map.
type RawRecord map[string]string

// Table is a source sheet held fully in memory. Lines holds the 1-based
// source line of each row in Rows.
type Table struct {
	Header []string
	Rows   []RawRecord
	Lines  []int
}

// Line returns the source line of Rows[i]. Tables built without line
// information assume a header on line 1 and no skipped rows.
func (t *Table) Line(i int) int {
	if i < len(t.Lines) {
		return t.Lines[i]
	}
	return i + 2
}

// Has reports whether the header contains name.
func (t *Table) Has(name string) bool {
	for _, h := range t.Header {
		if h == name {
			return true
		}
	}
	return false
}

// newTable builds a table from data rows; lines[i] is the source line of
// rows[i].
func newTable(header []string, rows [][]string, lines []int) *Table {
	t := &Table{Header: make([]string, len(header))}
	for i, h := range header {
		t.Header[i] = strings.TrimSpace(h)
	}
	for n, row := range rows {
		if blank(row) {
			continue
		}
		rec := make(RawRecord, len(row))
		for i, cell := range row {
			if i < len(t.Header) {
				rec[t.Header[i]] = cell
			}
		}
		t.Rows = append(t.Rows, rec)
		t.Lines = append(t.Lines, lines[n])
	}
	return t
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ReadFile loads a .csv or .xlsx table.
func ReadFile(path string) (*Table, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, openError(path, err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported source format %q", ext)
	}
}

func openError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}
	return fmt.Errorf("open %s: %w", path, err)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV parses delimited text with a header row. A leading UTF-8 BOM is
// ignored.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	cr.FieldsPerRecord = -1

	var (
		rows  [][]string
		lines []int
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, row)
		lines = append(lines, line)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}
	return newTable(rows[0], rows[1:], lines[1:]), nil
}

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, openError(path, err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}
	lines := make([]int, len(rows)-1)
	for i := range lines {
		lines[i] = i + 2
	}
	return newTable(rows[0], rows[1:], lines), nil
}
