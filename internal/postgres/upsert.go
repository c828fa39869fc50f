package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mxdgroup/pracsuit-script/internal/report"
	"github.com/mxdgroup/pracsuit-script/internal/storage"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// buildUpsertSQL renders a multi-row INSERT for rowCount rows. On a unique
// key conflict every other business column takes the incoming value and
// updated_at is reset; created_at and updated_at of new rows come from the
// column defaults.
func buildUpsertSQL(schema report.TableSchema, rowCount int) string {
	cols := schema.ColumnNames()
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdent(col)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", qualifiedTable(schema), strings.Join(quoted, ", "))

	param := 1
	for r := 0; r < rowCount; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", param)
			param++
		}
		b.WriteByte(')')
	}

	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET ", quoteIdent(schema.UniqueKey))
	for _, col := range cols {
		if col == schema.UniqueKey {
			continue
		}
		fmt.Fprintf(&b, "%s = EXCLUDED.%s, ", quoteIdent(col), quoteIdent(col))
	}
	fmt.Fprintf(&b, "%s = NOW()", quoteIdent(report.UpdatedAtColumn))
	return b.String()
}

func upsertArgs(schema report.TableSchema, rows []report.MappedRow) []interface{} {
	args := make([]interface{}, 0, len(rows)*len(schema.Columns))
	for _, row := range rows {
		for _, col := range schema.Columns {
			args = append(args, encodeValue(row[col.Name]))
		}
	}
	return args
}

// encodeValue converts mapped values to types pgx encodes natively.
func encodeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case decimal.Decimal:
		return pgtype.Numeric{Int: val.Coefficient(), Exp: val.Exponent(), Valid: true}
	default:
		return val
	}
}

// Upsert writes rows in batches keyed on schema.UniqueKey. Unless the
// tenant was opened with Atomic set, batches commit independently and a
// failure leaves earlier batches in place.
func (t *TenantDB) Upsert(ctx context.Context, schema report.TableSchema, rows []report.MappedRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batches := planBatches(len(rows), len(schema.Columns), t.opts.BatchSize)
	t.logger.Debug("Upserting rows",
		zap.String("table", schema.Table),
		zap.Int("rows", len(rows)),
		zap.Int("batches", len(batches)),
		zap.Bool("atomic", t.opts.Atomic))

	if !t.opts.Atomic {
		return t.writeBatches(ctx, t.client, schema, rows, batches)
	}

	var affected int64
	err := pgx.BeginFunc(ctx, t.client, func(tx pgx.Tx) error {
		n, err := t.writeBatches(ctx, tx, schema, rows, batches)
		affected = n
		return err
	})
	if err != nil {
		var upsertErr *storage.UpsertError
		if errors.As(err, &upsertErr) {
			upsertErr.Affected = 0
			return 0, upsertErr
		}
		return 0, &storage.UpsertError{Tenant: t.tenant, Table: schema.Table, Err: err}
	}
	return affected, nil
}

func (t *TenantDB) writeBatches(ctx context.Context, db execer, schema report.TableSchema, rows []report.MappedRow, batches []batch) (int64, error) {
	var affected int64
	for _, b := range batches {
		chunk := rows[b.Offset : b.Offset+b.Limit]
		tag, err := db.Exec(ctx, buildUpsertSQL(schema, len(chunk)), upsertArgs(schema, chunk)...)
		if err != nil {
			return affected, &storage.UpsertError{
				Tenant:   t.tenant,
				Table:    schema.Table,
				Batch:    b.Index,
				Affected: affected,
				Err:      err,
			}
		}
		affected += tag.RowsAffected()
	}
	return affected, nil
}
