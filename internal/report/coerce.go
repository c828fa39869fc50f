package report

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Excel serial day numbers accepted as dates, 1900 date system
// (1900-01-01 .. 2200-01-01).
const (
	minExcelSerial = 1
	maxExcelSerial = 109575
)

var (
	minTimestamp = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	maxTimestamp = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Day-first layouts are tried before the lenient parser, which reads
// ambiguous slashed dates month-first.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04",
	"02/01/2006 3:04 PM",
	"2/1/2006 3:04 PM",
	"02/01/2006 03:04PM",
	"2/1/2006 3:04PM",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02/01/06",
	"2 Jan 2006 3:04 PM",
	"2 Jan 2006 15:04",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"Mon, 2 Jan 2006",
	"Mon 2 Jan 2006 3:04 PM",
	"Monday, 2 January 2006",
	"Monday, 2 January 2006 3:04 PM",
}

// coerce converts a raw cell to the column's semantic type. The second
// return is true when a non-empty cell could not be converted and was
// replaced by null.
func coerce(t SemanticType, raw any) (any, bool) {
	if isEmpty(raw) {
		return nil, false
	}
	var v any
	switch t {
	case TypeTimestamp:
		v = coerceTimestamp(raw)
	case TypeInteger:
		v = coerceInteger(raw)
	case TypeDecimal:
		v = coerceDecimal(raw)
	case TypeIdentifier:
		v = coerceIdentifier(raw)
	default:
		v = coerceText(raw)
	}
	if v == nil {
		return nil, true
	}
	return v, false
}

func isEmpty(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case float64:
		return math.IsNaN(v)
	}
	return false
}

func coerceText(raw any) any {
	var s string
	switch v := raw.(type) {
	case string:
		s = strings.TrimSpace(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case bool:
		s = strconv.FormatBool(v)
	case time.Time:
		s = v.Format("2006-01-02 15:04:05")
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return s
}

// coerceIdentifier is text with the float artifact of numeric ids removed,
// so 123456 and "123456.0" compare equal as keys.
func coerceIdentifier(raw any) any {
	v := coerceText(raw)
	s, ok := v.(string)
	if !ok {
		return nil
	}
	if i := strings.IndexByte(s, '.'); i > 0 && strings.Trim(s[i+1:], "0") == "" && isDigits(s[:i]) {
		s = s[:i]
	}
	return s
}

func coerceInteger(raw any) any {
	switch v := raw.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return integral(v)
	case string:
		s := cleanNumber(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return integral(f)
		}
	}
	return nil
}

func integral(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	return int64(f)
}

func coerceDecimal(raw any) any {
	switch v := raw.(type) {
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return decimal.NewFromFloat(v)
	case string:
		s := cleanNumber(v)
		negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
		if negative {
			s = s[1 : len(s)-1]
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil
		}
		if negative {
			d = d.Neg()
		}
		return d
	}
	return nil
}

// cleanNumber strips currency symbols, thousands separators and trailing
// unit words ("30 mins").
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	})
	return s
}

func coerceTimestamp(raw any) any {
	var t time.Time
	switch v := raw.(type) {
	case time.Time:
		t = v
	case float64:
		return excelSerial(v)
	case int:
		return excelSerial(float64(v))
	case int64:
		return excelSerial(float64(v))
	case string:
		s := strings.TrimSpace(v)
		if isNumeric(s) {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil
			}
			return excelSerial(f)
		}
		parsed, ok := parseTimestamp(s)
		if !ok {
			return nil
		}
		t = parsed
	default:
		return nil
	}
	if t.Before(minTimestamp) || !t.Before(maxTimestamp) {
		return nil
	}
	return t
}

// excelSerial converts a bare serial number. Date-formatted workbook cells
// are converted by the decoder with the workbook's own date system; this
// handles serials that reach a timestamp column without a date format.
func excelSerial(f float64) any {
	if math.IsNaN(f) || f < minExcelSerial || f >= maxExcelSerial {
		return nil
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil || t.Before(minTimestamp) || !t.Before(maxTimestamp) {
		return nil
	}
	return t
}

func parseTimestamp(s string) (time.Time, bool) {
	upper := strings.ToUpper(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, upper, time.UTC); err == nil {
			return t, true
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isNumeric(s string) bool {
	whole, frac, found := strings.Cut(s, ".")
	if !isDigits(whole) {
		return false
	}
	return !found || frac == "" || isDigits(frac)
}
