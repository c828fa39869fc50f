package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mxdgroup/pracsuit-script/internal/metrics"
	"github.com/mxdgroup/pracsuit-script/internal/storage"
)

// Options tune how tenant handles write.
type Options struct {
	// BatchSize is the number of rows per INSERT statement.
	BatchSize int
	// Atomic wraps all batches of one Upsert call in a transaction.
	Atomic bool
}

// Provisioner creates one database per tenant through an administrative
// connection and hands out handles scoped to those databases.
type Provisioner struct {
	admin  *Client
	config map[string]string
	opts   Options
	logger *zap.Logger
}

// NewProvisioner builds a provisioner from the admin connection parameters
// returned by config.GetConnectionConfig.
func NewProvisioner(ctx context.Context, config map[string]string, opts Options, logger *zap.Logger) (*Provisioner, error) {
	admin, err := NewClient(ctx, config, logger)
	if err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Provisioner{
		admin:  admin,
		config: config,
		opts:   opts,
		logger: logger,
	}, nil
}

func (p *Provisioner) Close() {
	p.admin.Close()
}

// Ping checks the administrative connection.
func (p *Provisioner) Ping(ctx context.Context) error {
	return p.admin.Ping(ctx)
}

// Admin exposes the administrative client for read-only inspection.
func (p *Provisioner) Admin() *Client {
	return p.admin
}

// EnsureTenantStorage creates the tenant database when it does not exist
// and returns a handle on it. The caller must Close the handle.
func (p *Provisioner) EnsureTenantStorage(ctx context.Context, tenantID string) (storage.Tenant, error) {
	timer := metrics.NewTimer()
	outcome := "existing"

	var exists bool
	err := p.admin.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, tenantID).Scan(&exists)
	if err != nil {
		metrics.RecordProvision("error", timer.Duration())
		return nil, &storage.UnavailableError{Tenant: tenantID, Op: storage.OpLookup, Err: err}
	}

	if !exists {
		outcome = "created"
		if _, err := p.admin.Exec(ctx, "CREATE DATABASE "+quoteIdent(tenantID)); err != nil {
			if !hasCode(err, codeDuplicateDatabase, codeUniqueViolation) {
				metrics.RecordProvision("error", timer.Duration())
				return nil, &storage.UnavailableError{Tenant: tenantID, Op: storage.OpCreate, Err: err}
			}
			outcome = "raced"
			p.logger.Debug("Tenant database created concurrently", zap.String("tenant", tenantID))
		} else {
			p.logger.Info("Created tenant database", zap.String("tenant", tenantID))
		}
	}

	tenant, err := p.openTenant(ctx, tenantID)
	if err != nil {
		metrics.RecordProvision("error", timer.Duration())
		return nil, err
	}

	metrics.RecordProvision(outcome, timer.Duration())
	return tenant, nil
}

func (p *Provisioner) openTenant(ctx context.Context, tenantID string) (*TenantDB, error) {
	client, err := NewClient(ctx, withDatabase(p.config, tenantID), p.logger)
	if err != nil {
		return nil, &storage.UnavailableError{Tenant: tenantID, Op: storage.OpConnect, Err: err}
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, &storage.UnavailableError{
			Tenant: tenantID,
			Op:     storage.OpConnect,
			Err:    fmt.Errorf("ping %s: %w", tenantID, err),
		}
	}
	return &TenantDB{
		client: client,
		tenant: tenantID,
		opts:   p.opts,
		logger: p.logger.With(zap.String("tenant", tenantID)),
	}, nil
}

// TenantDB is a handle on one tenant database.
type TenantDB struct {
	client *Client
	tenant string
	opts   Options
	logger *zap.Logger
}

func (t *TenantDB) Database() string {
	return t.tenant
}

// Client returns the underlying client.
func (t *TenantDB) Client() *Client {
	return t.client
}

func (t *TenantDB) Close() {
	t.client.Close()
}
