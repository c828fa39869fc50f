// Package spreadsheet decodes base64 report attachments into header-keyed
// rows.
package spreadsheet

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/mxdgroup/pracsuit-script/internal/report"
)

// ErrUnsupportedExtension is returned for attachments that are not a
// spreadsheet format this package reads.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// DecodeError reports a payload that could not be decoded or parsed.
type DecodeError struct {
	Filename string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Filename, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type format int

const (
	formatExcel format = iota + 1
	formatCSV
)

var extensions = map[string]format{
	".xlsx": formatExcel,
	".xlsm": formatExcel,
	".xltx": formatExcel,
	".xltm": formatExcel,
	".csv":  formatCSV,
}

// Supported reports whether filename has a recognised spreadsheet extension.
func Supported(filename string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))]
	return ok
}

// Table is a decoded sheet: header labels in sheet order and one RawRow per
// non-blank data row.
type Table struct {
	Sheet   string
	Columns []string
	Rows    []report.RawRow
}

// Decoder parses spreadsheet attachments.
type Decoder struct {
	logger *zap.Logger
}

// NewDecoder creates a Decoder.
func NewDecoder(logger *zap.Logger) *Decoder {
	return &Decoder{logger: logger}
}

// Decode base64-decodes payload and parses it according to the extension of
// filename.
func (d *Decoder) Decode(filename, payload string) (*Table, error) {
	if !Supported(filename) {
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedExtension)
	}
	data, err := DecodeBase64(payload)
	if err != nil {
		return nil, &DecodeError{Filename: filename, Err: err}
	}
	return d.DecodeBytes(filename, data)
}

// DecodeBytes parses raw file bytes according to the extension of filename.
func (d *Decoder) DecodeBytes(filename string, data []byte) (*Table, error) {
	f, ok := extensions[strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))]
	if !ok {
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedExtension)
	}

	var (
		sheet   string
		records [][]string
		err     error
	)
	switch f {
	case formatExcel:
		sheet, records, err = readExcel(data)
	case formatCSV:
		records, err = readCSV(data)
	}
	if err != nil {
		return nil, &DecodeError{Filename: filename, Err: err}
	}

	table := buildTable(records)
	table.Sheet = sheet
	d.logger.Debug("Decoded spreadsheet",
		zap.String("filename", filename),
		zap.String("sheet", sheet),
		zap.Int("columns", len(table.Columns)),
		zap.Int("rows", len(table.Rows)))
	return table, nil
}

// DecodeBase64 accepts standard and URL-safe alphabets, padded or not, with
// embedded line breaks and an optional data URL prefix.
func DecodeBase64(payload string) ([]byte, error) {
	if i := strings.Index(payload, ";base64,"); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+len(";base64,"):]
	}
	payload = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, payload)

	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		data, err := enc.DecodeString(payload)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("invalid base64 payload: %w", firstErr)
}

// readExcel returns the first sheet that has any rows. Cells are read as
// raw values; numeric cells carrying a date number format are rewritten as
// "2006-01-02 15:04:05" using the workbook's date system, so dates do not
// depend on display formats and 1904-based workbooks are not shifted.
func readExcel(data []byte) (string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return "", nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		dates := &dateCells{file: f, sheet: sheet, date1904: date1904, styles: map[int]bool{}}
		for r, row := range rows {
			for c, cell := range row {
				if v, ok := dates.convert(r, c, cell); ok {
					row[c] = v
				}
			}
		}
		return sheet, rows, nil
	}
	return "", nil, nil
}

// Built-in number formats that display a calendar date.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 36: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 57: true, 58: true,
}

// dateCells recognises date-formatted cells of one sheet. Style lookups are
// cached per style ID.
type dateCells struct {
	file     *excelize.File
	sheet    string
	date1904 bool
	styles   map[int]bool
}

// convert reports the timestamp text for the cell at zero-based row r and
// column c when it holds a number under a date format.
func (d *dateCells) convert(r, c int, value string) (string, bool) {
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil || serial < 0 {
		return "", false
	}
	name, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return "", false
	}
	styleID, err := d.file.GetCellStyle(d.sheet, name)
	if err != nil {
		return "", false
	}
	isDate, ok := d.styles[styleID]
	if !ok {
		isDate = d.isDateStyle(styleID)
		d.styles[styleID] = isDate
	}
	if !isDate {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, d.date1904)
	if err != nil {
		return "", false
	}
	return t.Round(time.Second).Format("2006-01-02 15:04:05"), true
}

func (d *dateCells) isDateStyle(styleID int) bool {
	style, err := d.file.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	return builtinDateFormats[style.NumFmt]
}

// isDateFormatCode reports whether a custom number format shows a day or a
// year. Quoted literals, escapes and bracketed sections such as colours or
// elapsed-time markers are ignored. Time-only formats are not dates.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket, escaped := false, false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case escaped:
			escaped = false
		case inQuote:
			inQuote = r != '"'
		case inBracket:
			inBracket = r != ']'
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = true
		case r == '[':
			inBracket = true
		default:
			b.WriteRune(r)
		}
	}
	plain := b.String()
	if strings.Contains(plain, "general") {
		return false
	}
	return strings.ContainsAny(plain, "dy")
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// buildTable treats the first record as the header. Blank header cells are
// skipped and repeated labels get a numeric suffix. Missing trailing cells
// are nil and fully blank rows are dropped.
func buildTable(records [][]string) *Table {
	table := &Table{Rows: []report.RawRow{}}
	if len(records) == 0 {
		return table
	}

	type headerCell struct {
		index int
		label string
	}
	var header []headerCell
	seen := make(map[string]int)
	for i, cell := range records[0] {
		label := strings.TrimSpace(cell)
		if label == "" {
			continue
		}
		seen[label]++
		if n := seen[label]; n > 1 {
			label = fmt.Sprintf("%s_%d", label, n)
		}
		header = append(header, headerCell{index: i, label: label})
		table.Columns = append(table.Columns, label)
	}

	for _, record := range records[1:] {
		row := make(report.RawRow, len(header))
		blank := true
		for _, h := range header {
			var value any
			if h.index < len(record) {
				if cell := strings.TrimSpace(record[h.index]); cell != "" {
					value = cell
					blank = false
				}
			}
			row[h.label] = value
		}
		if !blank {
			table.Rows = append(table.Rows, row)
		}
	}
	return table
}
