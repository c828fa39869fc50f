package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const defaultMaxConns = 4

type Client struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	config map[string]string
}

// NewClient opens a pool on config["database"]. The pool connects lazily;
// call Ping to verify the server is reachable.
func NewClient(ctx context.Context, config map[string]string, logger *zap.Logger) (*Client, error) {
	dsn := buildConnectionString(config)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	poolConfig.MaxConns = defaultMaxConns
	if n, err := strconv.Atoi(config["max_conns"]); err == nil && n > 0 {
		poolConfig.MaxConns = int32(n)
	}
	poolConfig.MinConns = 0
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 5

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	client := &Client{
		pool:   pool,
		logger: logger,
		config: config,
	}

	return client, nil
}

func (c *Client) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// Database returns the database the pool is connected to.
func (c *Client) Database() string {
	return c.config["database"]
}

func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *Client) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return c.pool.QueryRow(ctx, sql, args...)
}

func (c *Client) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return c.pool.Query(ctx, sql, args...)
}

func (c *Client) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return c.pool.Exec(ctx, sql, args...)
}

// Begin starts a pool transaction; atomic upserts run through it.
func (c *Client) Begin(ctx context.Context) (pgx.Tx, error) {
	return c.pool.Begin(ctx)
}

// GetTables lists base tables of a schema.
func (c *Client) GetTables(ctx context.Context, schema string) ([]TableInfo, error) {
	query := `
		SELECT t.table_name
		FROM information_schema.tables t
		WHERE t.table_schema = $1
		AND t.table_type = 'BASE TABLE'
		ORDER BY t.table_name
	`

	rows, err := c.Query(ctx, query, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var table TableInfo
		if err := rows.Scan(&table.Name); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		table.Schema = schema
		tables = append(tables, table)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	return tables, nil
}

func (c *Client) GetColumns(ctx context.Context, schema, table string) ([]ColumnInfo, error) {
	query := `
		SELECT
			column_name,
			data_type,
			is_nullable,
			column_default,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := c.Query(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(
			&col.Name,
			&col.DataType,
			&col.IsNullable,
			&col.DefaultValue,
			&col.Position,
		); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	return columns, nil
}

// GetIndexes returns the index names defined on a table.
func (c *Client) GetIndexes(ctx context.Context, schema, table string) ([]string, error) {
	rows, err := c.Query(ctx,
		`SELECT indexname FROM pg_indexes WHERE schemaname = $1 AND tablename = $2 ORDER BY indexname`,
		schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func buildConnectionString(config map[string]string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(config["username"], config["password"]),
		Host:   config["host"] + ":" + config["port"],
		Path:   "/" + config["database"],
	}

	q := url.Values{}
	if sslmode := config["sslmode"]; sslmode != "" {
		q.Set("sslmode", sslmode)
	}

	if connectTimeout := config["connect_timeout"]; connectTimeout != "" {
		// libpq takes whole seconds
		if duration, err := time.ParseDuration(connectTimeout); err == nil {
			seconds := int(duration.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			q.Set("connect_timeout", strconv.Itoa(seconds))
		}
	}

	if statementTimeout := config["statement_timeout"]; statementTimeout != "" {
		// runtime parameter in milliseconds
		if duration, err := time.ParseDuration(statementTimeout); err == nil {
			q.Set("statement_timeout", strconv.FormatInt(duration.Milliseconds(), 10))
		}
	}

	u.RawQuery = q.Encode()
	return u.String()
}

// withDatabase returns a copy of config pointing at database.
func withDatabase(config map[string]string, database string) map[string]string {
	out := make(map[string]string, len(config))
	for k, v := range config {
		out[k] = v
	}
	out["database"] = database
	return out
}

// pgErrorCode returns the SQLSTATE of err, or "".
func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// hasCode reports whether err carries one of the given SQLSTATEs.
func hasCode(err error, codes ...string) bool {
	code := pgErrorCode(err)
	if code == "" {
		return false
	}
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}

type TableInfo struct {
	Schema string
	Name   string
}

type ColumnInfo struct {
	Name         string
	DataType     string
	IsNullable   string
	DefaultValue *string
	Position     int
}
