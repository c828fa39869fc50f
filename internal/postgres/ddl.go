package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/mxdgroup/pracsuit-script/internal/report"
	"github.com/mxdgroup/pracsuit-script/internal/storage"
)

// SQLSTATE codes that mean a concurrent request created the object first.
const (
	codeDuplicateDatabase = "42P04"
	codeDuplicateTable    = "42P07"
	codeDuplicateObject   = "42710"
	codeUniqueViolation   = "23505"
)

const defaultSchema = "public"

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func qualifiedTable(schema report.TableSchema) string {
	return pgx.Identifier{defaultSchema, schema.Table}.Sanitize()
}

func uniqueConstraintName(schema report.TableSchema) string {
	return fmt.Sprintf("%s_%s_key", schema.Table, schema.UniqueKey)
}

// createTableSQL renders CREATE TABLE IF NOT EXISTS with a surrogate key,
// the schema's business columns, a named unique constraint on the unique
// key and the bookkeeping timestamps.
func createTableSQL(schema report.TableSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", qualifiedTable(schema))
	fmt.Fprintf(&b, "\t%s BIGSERIAL PRIMARY KEY,\n", quoteIdent(report.SurrogateKeyColumn))
	for _, col := range schema.Columns {
		fmt.Fprintf(&b, "\t%s %s", quoteIdent(col.Name), col.Type.SQLType())
		if col.Name == schema.UniqueKey || !col.Nullable {
			b.WriteString(" NOT NULL")
		}
		b.WriteString(",\n")
	}
	fmt.Fprintf(&b, "\t%s TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,\n", quoteIdent(report.CreatedAtColumn))
	fmt.Fprintf(&b, "\t%s TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,\n", quoteIdent(report.UpdatedAtColumn))
	fmt.Fprintf(&b, "\tCONSTRAINT %s UNIQUE (%s)\n)", quoteIdent(uniqueConstraintName(schema)), quoteIdent(schema.UniqueKey))
	return b.String()
}

func createIndexSQL(schema report.TableSchema, idx report.Index) string {
	cols := make([]string, len(idx.Columns))
	for i, col := range idx.Columns {
		cols[i] = quoteIdent(col)
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		quoteIdent(idx.Name), qualifiedTable(schema), strings.Join(cols, ", "))
}

func ddlStatements(schema report.TableSchema) []string {
	stmts := make([]string, 0, 1+len(schema.Indexes))
	stmts = append(stmts, createTableSQL(schema))
	for _, idx := range schema.Indexes {
		stmts = append(stmts, createIndexSQL(schema, idx))
	}
	return stmts
}

// EnsureTable issues the schema's DDL. Every statement is a no-op when the
// object exists, and losing a creation race to another request counts as
// success.
func (t *TenantDB) EnsureTable(ctx context.Context, schema report.TableSchema) error {
	for _, stmt := range ddlStatements(schema) {
		if _, err := t.client.Exec(ctx, stmt); err != nil {
			if hasCode(err, codeDuplicateTable, codeDuplicateObject, codeUniqueViolation) {
				t.logger.Debug("Object created concurrently",
					zap.String("table", schema.Table),
					zap.String("code", pgErrorCode(err)))
				continue
			}
			return &storage.UnavailableError{
				Tenant: t.tenant,
				Op:     storage.OpDDL,
				Err:    fmt.Errorf("ensure table %s: %w", schema.Table, err),
			}
		}
	}
	return nil
}
