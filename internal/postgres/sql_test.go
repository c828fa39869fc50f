package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxdgroup/pracsuit-script/internal/report"
)

func TestBuildConnectionString(t *testing.T) {
	dsn := buildConnectionString(map[string]string{
		"host":              "db.internal",
		"port":              "5433",
		"database":          "demo_clinic",
		"username":          "ingest",
		"password":          "p@ss:w/rd",
		"sslmode":           "require",
		"connect_timeout":   "10s",
		"statement_timeout": "1m",
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db.internal:5433", u.Host)
	assert.Equal(t, "/demo_clinic", u.Path)
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss:w/rd", password)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	assert.Equal(t, "10", u.Query().Get("connect_timeout"))
	assert.Equal(t, "60000", u.Query().Get("statement_timeout"))
}

func TestWithDatabaseCopies(t *testing.T) {
	base := map[string]string{"database": "postgres", "host": "localhost"}
	tenant := withDatabase(base, "demo_clinic")
	assert.Equal(t, "demo_clinic", tenant["database"])
	assert.Equal(t, "postgres", base["database"])
	assert.Equal(t, "localhost", tenant["host"])
}

func TestPlanBatches(t *testing.T) {
	t.Run("remainder in last batch", func(t *testing.T) {
		batches := planBatches(68, 21, 30)
		require.Len(t, batches, 3)
		assert.Equal(t, batch{Index: 0, Offset: 0, Limit: 30}, batches[0])
		assert.Equal(t, batch{Index: 2, Offset: 60, Limit: 8}, batches[2])
	})

	t.Run("clamped to parameter limit", func(t *testing.T) {
		size := effectiveBatchSize(100000, 44)
		assert.LessOrEqual(t, size*44, maxBindParameters)

		batches := planBatches(5000, 44, 100000)
		total := 0
		for _, b := range batches {
			assert.LessOrEqual(t, b.Limit*44, maxBindParameters)
			total += b.Limit
		}
		assert.Equal(t, 5000, total)
	})

	t.Run("default size", func(t *testing.T) {
		assert.Equal(t, DefaultBatchSize, effectiveBatchSize(0, 21))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, planBatches(0, 21, 500))
	})
}

func TestCreateTableSQL(t *testing.T) {
	schema, ok := report.SchemaFor(report.KindAppointments)
	require.True(t, ok)

	sql := createTableSQL(schema)
	assert.True(t, strings.HasPrefix(sql, `CREATE TABLE IF NOT EXISTS "public"."appointments"`))
	assert.Contains(t, sql, `"id" BIGSERIAL PRIMARY KEY`)
	assert.Contains(t, sql, `"appointment_id" TEXT NOT NULL`)
	assert.Contains(t, sql, `"appointment_date" TIMESTAMP,`)
	assert.Contains(t, sql, `"client_duration" BIGINT,`)
	assert.Contains(t, sql, `"invoice_total" NUMERIC,`)
	assert.Contains(t, sql, `"created_at" TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP`)
	assert.Contains(t, sql, `CONSTRAINT "appointments_appointment_id_key" UNIQUE ("appointment_id")`)

	stmts := ddlStatements(schema)
	require.Len(t, stmts, 1+len(schema.Indexes))
	assert.Equal(t,
		`CREATE INDEX IF NOT EXISTS "idx_appointments_appointment_date" ON "public"."appointments" ("appointment_date")`,
		stmts[2])
}

func TestBuildUpsertSQL(t *testing.T) {
	schema := report.TableSchema{
		Table: "clients",
		Columns: []report.Column{
			{Name: "client_id", Type: report.TypeIdentifier},
			{Name: "email", Type: report.TypeText, Nullable: true},
		},
		UniqueKey: "client_id",
	}

	sql := buildUpsertSQL(schema, 2)
	assert.Equal(t,
		`INSERT INTO "public"."clients" ("client_id", "email") VALUES ($1, $2), ($3, $4) `+
			`ON CONFLICT ("client_id") DO UPDATE SET "email" = EXCLUDED."email", "updated_at" = NOW()`,
		sql)

	args := upsertArgs(schema, []report.MappedRow{
		{"client_id": "C-1", "email": nil},
		{"client_id": "C-2", "email": "b@example.com", "ignored": "x"},
	})
	assert.Equal(t, []interface{}{"C-1", nil, "C-2", "b@example.com"}, args)
}

func TestEncodeValue(t *testing.T) {
	d := decimal.RequireFromString("-120.50")
	got, ok := encodeValue(d).(pgtype.Numeric)
	require.True(t, ok)
	assert.True(t, got.Valid)
	assert.Equal(t, d.Coefficient(), got.Int)
	assert.Equal(t, d.Exponent(), got.Exp)

	assert.Equal(t, "text", encodeValue("text"))
	assert.Nil(t, encodeValue(nil))
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: codeDuplicateDatabase})
	assert.True(t, hasCode(err, codeDuplicateDatabase, codeUniqueViolation))
	assert.False(t, hasCode(err, codeDuplicateTable))
	assert.False(t, hasCode(errors.New("plain"), codeDuplicateTable))
	assert.Equal(t, "", pgErrorCode(nil))
}
