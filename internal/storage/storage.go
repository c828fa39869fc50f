// Package storage defines the boundary between the ingestion pipeline and
// tenant-scoped relational storage.
package storage

import (
	"context"
	"fmt"

	"github.com/mxdgroup/pracsuit-script/internal/report"
)

// Provisioner creates tenant databases on demand.
type Provisioner interface {
	// EnsureTenantStorage returns a handle on the database named tenantID,
	// creating it if needed. Concurrent calls for the same tenant succeed.
	EnsureTenantStorage(ctx context.Context, tenantID string) (Tenant, error)
}

// Tenant is a handle scoped to one tenant database. Close releases its
// connections and must be called on every path.
type Tenant interface {
	Database() string
	// EnsureTable creates the schema's table and indexes if absent.
	EnsureTable(ctx context.Context, schema report.TableSchema) error
	// Upsert writes rows keyed on schema.UniqueKey and returns the number of
	// rows inserted or updated. Rows must not repeat a key.
	Upsert(ctx context.Context, schema report.TableSchema, rows []report.MappedRow) (int64, error)
	Close()
}

// UnavailableError reports that tenant storage could not be reached or
// created.
type UnavailableError struct {
	Tenant string
	Op     string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable for tenant %q (%s): %v", e.Tenant, e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// UpsertError reports a failed write. Affected counts rows committed by
// earlier batches of the same call, which are not rolled back unless the
// write ran in a single transaction.
type UpsertError struct {
	Tenant   string
	Table    string
	Batch    int
	Affected int64
	Err      error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert into %s.%s failed at batch %d: %v", e.Tenant, e.Table, e.Batch, e.Err)
}

func (e *UpsertError) Unwrap() error {
	return e.Err
}

// Operations named in UnavailableError.Op.
const (
	OpConnect = "connect"
	OpLookup  = "lookup"
	OpCreate  = "create"
	OpDDL     = "ddl"
)
