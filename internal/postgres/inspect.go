package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Databases that are never tenant databases.
var systemDatabases = []string{"postgres", "template0", "template1", "railway"}

// TableSummary is a table and its row count.
type TableSummary struct {
	Name     string `json:"table_name"`
	RowCount int64  `json:"row_count"`
}

// DatabaseSummary describes one tenant database.
type DatabaseSummary struct {
	Database    string         `json:"database"`
	Tables      []TableSummary `json:"tables"`
	TotalTables int            `json:"total_tables"`
	TotalRows   int64          `json:"total_rows"`
	Error       string         `json:"error,omitempty"`
}

// Inspector answers read-only questions about tenant databases.
type Inspector struct {
	admin  *Client
	config map[string]string
	logger *zap.Logger
}

// NewInspector uses admin for catalog queries and config to reach tenant
// databases.
func NewInspector(admin *Client, config map[string]string, logger *zap.Logger) *Inspector {
	return &Inspector{admin: admin, config: config, logger: logger}
}

// ListTenantDatabases returns every non-template database except the system
// and administrative ones.
func (i *Inspector) ListTenantDatabases(ctx context.Context) ([]string, error) {
	excluded := append([]string{i.admin.Database()}, systemDatabases...)
	rows, err := i.admin.Query(ctx, `
		SELECT datname
		FROM pg_database
		WHERE datistemplate = false
		AND datname <> ALL($1)
		ORDER BY datname
	`, excluded)
	if err != nil {
		return nil, fmt.Errorf("failed to query databases: %w", err)
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan database: %w", err)
		}
		databases = append(databases, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating databases: %w", err)
	}

	return databases, nil
}

func (i *Inspector) withTenant(ctx context.Context, tenant string, fn func(*Client) error) error {
	client, err := NewClient(ctx, withDatabase(i.config, tenant), i.logger)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

// ListTables returns the base tables of a tenant database with row counts.
func (i *Inspector) ListTables(ctx context.Context, tenant string) ([]TableSummary, error) {
	var out []TableSummary
	err := i.withTenant(ctx, tenant, func(client *Client) error {
		tables, err := client.GetTables(ctx, defaultSchema)
		if err != nil {
			return err
		}
		out = make([]TableSummary, 0, len(tables))
		for _, table := range tables {
			n, err := countRows(ctx, client, table.Name)
			if err != nil {
				return err
			}
			out = append(out, TableSummary{Name: table.Name, RowCount: n})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tables in %s: %w", tenant, err)
	}
	return out, nil
}

// CountRows returns the number of rows in one tenant table.
func (i *Inspector) CountRows(ctx context.Context, tenant, table string) (int64, error) {
	var n int64
	err := i.withTenant(ctx, tenant, func(client *Client) error {
		var err error
		n, err = countRows(ctx, client, table)
		return err
	})
	return n, err
}

func countRows(ctx context.Context, client *Client, table string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", quoteIdent(defaultSchema), quoteIdent(table))
	if err := client.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}

// Summary describes every tenant database. A database that cannot be read
// is reported with its error instead of failing the whole summary.
func (i *Inspector) Summary(ctx context.Context) ([]DatabaseSummary, error) {
	databases, err := i.ListTenantDatabases(ctx)
	if err != nil {
		return nil, err
	}

	summary := make([]DatabaseSummary, 0, len(databases))
	for _, db := range databases {
		entry := DatabaseSummary{Database: db, Tables: []TableSummary{}}
		tables, err := i.ListTables(ctx, db)
		if err != nil {
			i.logger.Warn("Failed to summarize database", zap.String("database", db), zap.Error(err))
			entry.Error = err.Error()
		} else {
			entry.Tables = tables
		}
		entry.TotalTables = len(entry.Tables)
		for _, table := range entry.Tables {
			entry.TotalRows += table.RowCount
		}
		summary = append(summary, entry)
	}
	return summary, nil
}
