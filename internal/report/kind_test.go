package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		filename string
		want     Kind
	}{
		{"Appointment Report 281025.xlsx", KindAppointments},
		{"Client List Report 291025_0710PM.xlsx", KindClients},
		{"Invoice Summary.xlsx", KindUnsupported},
		{"  appointment report.csv ", KindAppointments},
		{"CLIENT LIST.xlsx", KindClients},
		{"Appointments.pdf", KindAppointments},
		{"Client Summary.xlsx", KindUnsupported},
		{"", KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.filename))
		})
	}
}

func TestSupportedKindsAreRegistered(t *testing.T) {
	for _, kind := range SupportedKinds {
		assert.True(t, kind.Supported(), kind.String())
	}
	assert.False(t, KindUnsupported.Supported())
}

func TestRegistrySchemas(t *testing.T) {
	t.Run("appointments", func(t *testing.T) {
		schema, ok := SchemaFor(KindAppointments)
		require.True(t, ok)
		assert.Equal(t, "appointments", schema.Table)
		assert.Equal(t, "appointment_id", schema.UniqueKey)
		assert.Len(t, schema.Columns, 21)
		assertIndexed(t, schema, "appointment_id", "appointment_date", "client_id")
	})

	t.Run("clients", func(t *testing.T) {
		schema, ok := SchemaFor(KindClients)
		require.True(t, ok)
		assert.Equal(t, "clients", schema.Table)
		assert.Equal(t, "client_id", schema.UniqueKey)
		assert.Len(t, schema.Columns, 44)
		assertIndexed(t, schema, "client_id", "email", "last_name")
	})

	t.Run("unsupported", func(t *testing.T) {
		_, ok := Lookup(KindUnsupported)
		assert.False(t, ok)
	})

	t.Run("lookup returns a copy", func(t *testing.T) {
		first, _ := SchemaFor(KindAppointments)
		first.Columns[0].Name = "mutated"
		first.Indexes[0].Columns[0] = "mutated"

		second, _ := SchemaFor(KindAppointments)
		assert.Equal(t, "appointment_id", second.Columns[0].Name)
		assert.Equal(t, "appointment_id", second.Indexes[0].Columns[0])
	})
}

func TestSchemaColumnsAreUnique(t *testing.T) {
	for _, kind := range SupportedKinds {
		schema, _ := SchemaFor(kind)
		seen := map[string]bool{}
		for _, col := range schema.Columns {
			assert.False(t, seen[col.Name], "%s: duplicate column %s", kind, col.Name)
			seen[col.Name] = true
			assert.NotContains(t, []string{SurrogateKeyColumn, CreatedAtColumn, UpdatedAtColumn}, col.Name)
		}
		key, ok := schema.Column(schema.UniqueKey)
		require.True(t, ok)
		assert.False(t, key.Nullable)
	}
}

func assertIndexed(t *testing.T, schema TableSchema, columns ...string) {
	t.Helper()
	indexed := map[string]bool{}
	for _, idx := range schema.Indexes {
		for _, col := range idx.Columns {
			indexed[col] = true
		}
	}
	for _, col := range columns {
		assert.True(t, indexed[col], "column %s is not indexed", col)
	}
}
