package normalize

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSourceNotFound is returned when an input file does not exist or cannot
// be opened.
var ErrSourceNotFound = errors.New("source not found")

// SchemaError lists every required column absent from the source.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ImputationError is returned when a numeric column has missing values but
// no valid value to take a median from.
type ImputationError struct {
	Column string
}

func (e *ImputationError) Error() string {
	return fmt.Sprintf("column %q has no valid numeric values to impute from", e.Column)
}
