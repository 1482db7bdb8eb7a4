package normalize

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/femtrack/api/internal/domain/screening"
)

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// ParseFlag maps smoking and STD history cells. Y and N in any case, or a
// numeric 1 or 0, map directly; everything else is N.
func ParseFlag(s string) screening.Flag {
	switch v := fold(s); v {
	case "y":
		return screening.Yes
	case "n":
		return screening.No
	default:
		if f, err := strconv.ParseFloat(v, 64); err == nil && f == 1 {
			return screening.Yes
		}
		return screening.No
	}
}

// ParseInsurance maps insurance cells. Only the literals Y, N, 1 and 0 are
// recognized; everything else is N.
func ParseInsurance(s string) screening.Flag {
	switch fold(s) {
	case "y", "1":
		return screening.Yes
	default:
		return screening.No
	}
}

// maxNumber bounds numeric cells so rounded values fit the integer fields
// the loader accepts.
const maxNumber = math.MaxInt32

// parseNumber reports false for anything that is not a finite number in
// [0, maxNumber].
func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > maxNumber {
		return 0, false
	}
	return f, true
}

// median of a non-empty slice. values is not modified.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// toInt rounds half away from zero.
func toInt(f float64) int {
	return int(math.Round(f))
}
