/*
Package normalize converts loosely typed raw values into canonical values.

PURPOSE:
  IT/PEI history reaches this service from several places: the current
  it_pei_historial table, legacy spreadsheet exports, and form submissions.
  The same logical value shows up as 23, 23.0, "23" or " 23 ", and the same
  choice as "Sí", "SI" or "si". These helpers fold all of them into one
  canonical form.

CONTRACT:
  Nothing in this package returns an error or panics. Malformed input
  degrades to the zero value (or to a caller-supplied default), so one bad
  legacy cell can never break record loading.

NUMBERS:
  Numeric strings are parsed with shopspring/decimal rather than float64 so
  that codes like "150101.0" truncate exactly.

SEE ALSO:
  - choice.go: Tolerant enum matching
  - mapper/mapper.go: Applies these helpers field by field
*/
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// STRINGS AND CODES
// =============================================================================

// String trims whitespace from the string form of v. Missing values
// (nil or nil pointers, NaN, zero time) yield "".
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case *string:
		if x == nil {
			return ""
		}
		return strings.TrimSpace(*x)
	case []byte:
		return strings.TrimSpace(string(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return String(float64(x))
	case time.Time:
		if x.IsZero() {
			return ""
		}
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case *time.Time:
		if x == nil {
			return ""
		}
		return String(*x)
	case fmt.Stringer:
		if isNilPointer(x) {
			return ""
		}
		return strings.TrimSpace(x.String())
	default:
		if isNilPointer(x) {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// Code canonicalizes an executing-unit code. Numeric input is truncated to
// its integer decimal form (23.0 -> "23"); anything else is trimmed.
// Code is idempotent.
func Code(v any) string {
	s := String(v)
	if s == "" {
		return ""
	}
	d, ok := number(v, s)
	if !ok {
		return s
	}
	return d.Truncate(0).String()
}

// =============================================================================
// INTEGERS
// =============================================================================

// Int coerces v to an integer, truncating any fractional part.
// Non-numeric, missing or out-of-range input reports false.
func Int(v any) (int, bool) {
	s := String(v)
	if s == "" {
		return 0, false
	}
	d, ok := number(v, s)
	if !ok {
		return 0, false
	}
	d = d.Truncate(0)
	if d.GreaterThan(maxInt) || d.LessThan(minInt) {
		return 0, false
	}
	return int(d.IntPart()), true
}

var (
	maxInt = decimal.NewFromInt(int64(math.MaxInt))
	minInt = decimal.NewFromInt(int64(math.MinInt))
)

// IntOr is Int with a fallback for absent values.
func IntOr(v any, def int) int {
	if n, ok := Int(v); ok {
		return n
	}
	return def
}

func number(v any, s string) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case uint32:
		return decimal.NewFromInt(int64(x)), true
	case float32:
		return number(float64(x), s)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(x), true
	case json.Number:
		s = x.String()
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// =============================================================================
// DATES
// =============================================================================

// dateLayouts are tried in order; the first successful parse wins.
// Slash and dash forms without a leading year are read day-first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2/1/2006",
	"2-1-2006",
	"2-1-06",
}

// Excel serial day numbers accepted for native numeric input (1900-01-01 .. 9999-12-31).
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// Date parses any date-like value into a UTC calendar date.
// Blank or unparseable input reports false.
func Date(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return civil(x), true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return Date(*x)
	case float64:
		return serial(x)
	case float32:
		return serial(float64(x))
	case int:
		return serial(float64(x))
	case int64:
		return serial(float64(x))
	}

	s := String(v)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil(t), true
		}
	}
	return time.Time{}, false
}

func serial(n float64) (time.Time, bool) {
	if math.IsNaN(n) || n < minExcelSerial || n > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(n, false)
	if err != nil {
		return time.Time{}, false
	}
	return civil(t), true
}

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
