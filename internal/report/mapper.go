package report

import (
	"sort"
	"strings"
	"unicode"
)

// Mapper turns decoded spreadsheet rows into rows keyed by the schema's
// column names. header lists the source labels in sheet order; when two
// labels normalize alike the earlier one is used. A nil header falls back
// to the labels found in rows, sorted. The output has the same length as
// the input and per-cell problems never fail the call.
type Mapper interface {
	Map(schema TableSchema, header []string, rows []RawRow) MapResult
}

// MapResult is the output of a Mapper.
type MapResult struct {
	Rows []MappedRow
	// NullCells counts non-empty cells that could not be coerced.
	NullCells int
	// MissingColumns lists schema columns with no matching source label.
	MissingColumns []string
}

// labelMapper resolves each target column to the first candidate source
// label present in the header. Labels are compared after normalization,
// so "Client ID", "client_id" and "ClientID" all match.
type labelMapper struct {
	sources map[string][]string
}

func normalizeLabel(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// headerIndex maps normalized labels to the label as it appears in rows.
// The first label wins on a normalization clash.
func headerIndex(header []string, rows []RawRow) map[string]string {
	if len(header) == 0 {
		seen := make(map[string]struct{})
		for _, row := range rows {
			for label := range row {
				if _, ok := seen[label]; !ok {
					seen[label] = struct{}{}
					header = append(header, label)
				}
			}
		}
		sort.Strings(header)
	}

	index := make(map[string]string, len(header))
	for _, label := range header {
		key := normalizeLabel(label)
		if _, ok := index[key]; !ok {
			index[key] = label
		}
	}
	return index
}

// resolve returns target column -> source label for every column found.
func (m labelMapper) resolve(schema TableSchema, index map[string]string) (map[string]string, []string) {
	resolved := make(map[string]string, len(schema.Columns))
	var missing []string
	for _, col := range schema.Columns {
		candidates := m.sources[col.Name]
		if len(candidates) == 0 {
			candidates = []string{col.Name}
		}
		found := false
		for _, candidate := range candidates {
			if label, ok := index[normalizeLabel(candidate)]; ok {
				resolved[col.Name] = label
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, col.Name)
		}
	}
	return resolved, missing
}

func (m labelMapper) mapRow(schema TableSchema, resolved map[string]string, raw RawRow, result *MapResult) MappedRow {
	out := make(MappedRow, len(schema.Columns))
	for _, col := range schema.Columns {
		label, ok := resolved[col.Name]
		if !ok {
			out[col.Name] = nil
			continue
		}
		v, degraded := coerce(col.Type, raw[label])
		if degraded {
			result.NullCells++
		}
		out[col.Name] = v
	}
	return out
}

func (m labelMapper) Map(schema TableSchema, header []string, rows []RawRow) MapResult {
	return m.mapWith(schema, header, rows, nil)
}

// mapWith maps rows and lets fill supply values for columns the header did
// not provide.
func (m labelMapper) mapWith(schema TableSchema, header []string, rows []RawRow, fill func(raw RawRow, index map[string]string, out MappedRow, result *MapResult)) MapResult {
	index := headerIndex(header, rows)
	resolved, missing := m.resolve(schema, index)
	result := MapResult{Rows: make([]MappedRow, 0, len(rows)), MissingColumns: missing}
	for _, raw := range rows {
		out := m.mapRow(schema, resolved, raw, &result)
		if fill != nil {
			fill(raw, index, out, &result)
		}
		result.Rows = append(result.Rows, out)
	}
	return result
}

// lookup returns the raw cell under the first candidate label present.
func lookup(raw RawRow, index map[string]string, candidates ...string) (any, bool) {
	for _, candidate := range candidates {
		if label, ok := index[normalizeLabel(candidate)]; ok {
			return raw[label], true
		}
	}
	return nil, false
}
