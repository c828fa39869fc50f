package spreadsheet

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/mxdgroup/pracsuit-script/internal/report"
)

func buildWorkbook(t *testing.T, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range rows {
			for c, value := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(name, cell, value))
			}
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func TestDecodeExcel(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Report": {
			{"Appointment ID", " Client ", "", "Appointment Date", "Client Duration"},
			{123456, "Jane Citizen", "x", time.Date(2025, 10, 28, 9, 0, 0, 0, time.UTC), 45},
			{nil, nil, nil, nil, nil},
			{"123457", "John Public"},
		},
	})

	decoder := NewDecoder(zap.NewNop())
	table, err := decoder.Decode("Appointment Report 281025.xlsx", encode(data))
	require.NoError(t, err)

	assert.Equal(t, "Report", table.Sheet)
	assert.Equal(t, []string{"Appointment ID", "Client", "Appointment Date", "Client Duration"}, table.Columns)
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	assert.Equal(t, "123456", first["Appointment ID"])
	assert.Equal(t, "Jane Citizen", first["Client"])
	assert.Equal(t, "2025-10-28 09:00:00", first["Appointment Date"])
	assert.Equal(t, "45", first["Client Duration"])
	assert.NotContains(t, first, "")

	second := table.Rows[1]
	assert.Equal(t, "123457", second["Appointment ID"])
	assert.Nil(t, second["Appointment Date"])
	assert.Contains(t, second, "Client Duration")
}

func TestDecodeExcelDates(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Clients": {
			{"Client ID", "First Name", "Date of Birth"},
			{"C-1", "Edna", time.Date(1950, 6, 15, 0, 0, 0, 0, time.UTC)},
			{"C-2", "Jane", time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC)},
			{"C-3", "Ivy", time.Date(1921, 3, 2, 0, 0, 0, 0, time.UTC)},
		},
	})

	table, err := NewDecoder(zap.NewNop()).DecodeBytes("Client List Report.xlsx", data)
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "1950-06-15 00:00:00", table.Rows[0]["Date of Birth"])

	entry, ok := report.Lookup(report.KindClients)
	require.True(t, ok)
	result := entry.Mapper.Map(entry.Schema, table.Columns, table.Rows)
	require.Len(t, result.Rows, 3)
	assert.Equal(t, time.Date(1950, 6, 15, 0, 0, 0, 0, time.UTC), result.Rows[0]["date_of_birth"])
	assert.Equal(t, time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC), result.Rows[1]["date_of_birth"])
	assert.Equal(t, time.Date(1921, 3, 2, 0, 0, 0, 0, time.UTC), result.Rows[2]["date_of_birth"])
	assert.Zero(t, result.NullCells)
}

func TestDecodeExcelDateSystems(t *testing.T) {
	build := func(t *testing.T, date1904 bool) []byte {
		t.Helper()
		f := excelize.NewFile()
		defer f.Close()
		require.NoError(t, f.SetWorkbookProps(&excelize.WorkbookPropsOptions{Date1904: &date1904}))

		dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
		require.NoError(t, err)
		timeStyle, err := f.NewStyle(&excelize.Style{NumFmt: 20})
		require.NoError(t, err)
		customStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr("dd/mm/yyyy hh:mm")})
		require.NoError(t, err)

		for cell, value := range map[string]any{
			"A1": "Client ID", "B1": "Date of Birth", "C1": "Start", "D1": "Created",
			"A2": 4521, "B2": 18429.0, "C2": 0.375, "D2": 45958.5,
		} {
			require.NoError(t, f.SetCellValue("Sheet1", cell, value))
		}
		require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B2", dateStyle))
		require.NoError(t, f.SetCellStyle("Sheet1", "C2", "C2", timeStyle))
		require.NoError(t, f.SetCellStyle("Sheet1", "D2", "D2", customStyle))

		buf, err := f.WriteToBuffer()
		require.NoError(t, err)
		return buf.Bytes()
	}

	decoder := NewDecoder(zap.NewNop())

	t.Run("1900", func(t *testing.T) {
		table, err := decoder.DecodeBytes("Client List.xlsx", build(t, false))
		require.NoError(t, err)
		require.Len(t, table.Rows, 1)
		row := table.Rows[0]
		assert.Equal(t, "4521", row["Client ID"])
		assert.Equal(t, "1950-06-15 00:00:00", row["Date of Birth"])
		assert.Equal(t, "0.375", row["Start"])
		assert.Equal(t, "2025-10-28 12:00:00", row["Created"])
	})

	t.Run("1904", func(t *testing.T) {
		table, err := decoder.DecodeBytes("Client List.xlsx", build(t, true))
		require.NoError(t, err)
		require.Len(t, table.Rows, 1)
		row := table.Rows[0]
		want := time.Date(1950, 6, 15, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1462)
		assert.Equal(t, want.Format("2006-01-02 15:04:05"), row["Date of Birth"])
		assert.Equal(t, "0.375", row["Start"])
		assert.Equal(t, "4521", row["Client ID"])
	})
}

func TestIsDateFormatCode(t *testing.T) {
	tests := map[string]bool{
		"dd/mm/yyyy":       true,
		"mmm-yy":           true,
		"d mmmm yyyy h:mm": true,
		"[$-409]d-mmm-yy":  true,
		"[h]:mm":           false,
		"hh:mm:ss":         false,
		`0.00 "days"`:      false,
		"General":          false,
		"#,##0.00":         false,
	}
	for code, want := range tests {
		assert.Equal(t, want, isDateFormatCode(code), code)
	}
}

func strPtr(s string) *string { return &s }

func TestDecodeExcelSkipsEmptySheets(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_, err := f.NewSheet("Data")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Data", "A1", "Client ID"))
	require.NoError(t, f.SetCellValue("Data", "A2", "C-1"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := NewDecoder(zap.NewNop()).DecodeBytes("Client List.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Data", table.Sheet)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "C-1", table.Rows[0]["Client ID"])
}

func TestDecodeEmptyWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := NewDecoder(zap.NewNop()).Decode("Appointment Report.xlsx", encode(buf.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	assert.Empty(t, table.Columns)
}

func TestDecodeCSV(t *testing.T) {
	content := "\xef\xbb\xbfClient ID,First Name,Email,Email\n" +
		"C-1,Jane,jane@example.com,alt@example.com\n" +
		",,,\n" +
		"C-2,\"Smith, John\"\n"

	table, err := NewDecoder(zap.NewNop()).Decode("Client List Report.csv", encode([]byte(content)))
	require.NoError(t, err)

	assert.Equal(t, []string{"Client ID", "First Name", "Email", "Email_2"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "alt@example.com", table.Rows[0]["Email_2"])
	assert.Equal(t, "Smith, John", table.Rows[1]["First Name"])
	assert.Nil(t, table.Rows[1]["Email"])
}

func TestDecodeErrors(t *testing.T) {
	decoder := NewDecoder(zap.NewNop())

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := decoder.Decode("Appointment Report.pdf", encode([]byte("%PDF")))
		assert.ErrorIs(t, err, ErrUnsupportedExtension)

		var decErr *DecodeError
		assert.False(t, errors.As(err, &decErr))
	})

	t.Run("bad base64", func(t *testing.T) {
		_, err := decoder.Decode("Appointment Report.xlsx", "!!not base64!!")
		var decErr *DecodeError
		require.True(t, errors.As(err, &decErr))
		assert.Equal(t, "Appointment Report.xlsx", decErr.Filename)
	})

	t.Run("corrupt workbook", func(t *testing.T) {
		_, err := decoder.Decode("Appointment Report.xlsx", encode([]byte("definitely not a zip")))
		var decErr *DecodeError
		require.True(t, errors.As(err, &decErr))
		assert.Contains(t, decErr.Error(), "Appointment Report.xlsx")
	})
}

func TestDecodeBase64Variants(t *testing.T) {
	payload := []byte{0xfb, 0xff, 0xfe, 'r', 'o', 'w'}

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		got, err := DecodeBase64(enc.EncodeToString(payload))
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}

	wrapped := fmt.Sprintf("data:text/csv;base64,%s\r\n", base64.StdEncoding.EncodeToString(payload))
	got, err := DecodeBase64(wrapped)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.XLSX"))
	assert.True(t, Supported("a.csv "))
	assert.False(t, Supported("a.pdf"))
	assert.False(t, Supported("xlsx"))
}
