package report

import "slices"

// SemanticType is the value type a column is coerced to before it is written.
type SemanticType string

const (
	TypeText       SemanticType = "text"
	TypeIdentifier SemanticType = "identifier"
	TypeInteger    SemanticType = "integer"
	TypeDecimal    SemanticType = "decimal"
	TypeTimestamp  SemanticType = "timestamp"
)

// SQLType returns the PostgreSQL column type used for t.
func (t SemanticType) SQLType() string {
	switch t {
	case TypeInteger:
		return "BIGINT"
	case TypeDecimal:
		return "NUMERIC"
	case TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// Column is one business column of a report table.
type Column struct {
	Name     string
	Type     SemanticType
	Nullable bool
}

// Index is a secondary index declared by a schema.
type Index struct {
	Name    string
	Columns []string
}

// Bookkeeping columns present on every report table.
const (
	SurrogateKeyColumn = "id"
	CreatedAtColumn    = "created_at"
	UpdatedAtColumn    = "updated_at"
)

// TableSchema describes the target table for one report kind. Schemas are
// fixed at compile time and never derived from input data.
type TableSchema struct {
	Kind      Kind
	Table     string
	Columns   []Column
	UniqueKey string
	Indexes   []Index
}

// Column returns the column named name.
func (s TableSchema) Column(name string) (Column, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the business column names in declaration order.
func (s TableSchema) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, col := range s.Columns {
		names = append(names, col.Name)
	}
	return names
}

func (s TableSchema) clone() TableSchema {
	out := s
	out.Columns = slices.Clone(s.Columns)
	out.Indexes = make([]Index, len(s.Indexes))
	for i, idx := range s.Indexes {
		out.Indexes[i] = Index{Name: idx.Name, Columns: slices.Clone(idx.Columns)}
	}
	return out
}

// RawRow maps a source header label to the cell found under it. Cells are
// strings, numbers, times or nil.
type RawRow map[string]any

// MappedRow maps a target column name to a coerced value. A nil value is
// the null marker.
type MappedRow map[string]any
