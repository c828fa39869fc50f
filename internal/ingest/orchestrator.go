// Package ingest sequences tenant resolution, provisioning, decoding,
// mapping, deduplication and upsert for one inbound notification.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mxdgroup/pracsuit-script/internal/logging"
	"github.com/mxdgroup/pracsuit-script/internal/metrics"
	"github.com/mxdgroup/pracsuit-script/internal/report"
	"github.com/mxdgroup/pracsuit-script/internal/spreadsheet"
	"github.com/mxdgroup/pracsuit-script/internal/storage"
	"github.com/mxdgroup/pracsuit-script/internal/tenant"
)

// Result and per-file statuses.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Attachment is one file of a notification.
type Attachment struct {
	Filename string
	// Data is the base64-encoded file content.
	Data string
}

// Notification is an inbound delivery addressed to a tenant.
type Notification struct {
	ID          string
	Recipient   string
	Attachments []Attachment
}

// FileResult is the outcome of one attachment.
type FileResult struct {
	Filename         string `json:"filename"`
	Table            string `json:"table,omitempty"`
	Database         string `json:"database,omitempty"`
	Status           string `json:"status"`
	ReportKind       string `json:"report_kind"`
	Message          string `json:"message,omitempty"`
	RowsProcessed    int    `json:"rows_processed"`
	RowsAffected     int64  `json:"rows_affected"`
	RowsDropped      int    `json:"rows_dropped"`
	RowsDeduplicated int    `json:"rows_deduplicated"`
}

// Result summarizes a notification.
type Result struct {
	Status         string       `json:"status"`
	Clinic         string       `json:"clinic"`
	NotificationID string       `json:"notification_id"`
	Results        []FileResult `json:"results"`
}

// Orchestrator runs the ingestion pipeline. It keeps no per-request state
// and is safe for concurrent use.
type Orchestrator struct {
	provisioner storage.Provisioner
	decoder     *spreadsheet.Decoder
	logger      *logging.IngestLogger
}

// NewOrchestrator creates an Orchestrator writing through provisioner.
func NewOrchestrator(provisioner storage.Provisioner, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		provisioner: provisioner,
		decoder:     spreadsheet.NewDecoder(logger),
		logger:      logging.Wrap(logger),
	}
}

// Ingest processes every attachment of n in order. It fails only when no
// tenant can be resolved from the recipient, in which case nothing is
// processed; attachment failures are reported per file.
func (o *Orchestrator) Ingest(ctx context.Context, n Notification) (*Result, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	log := o.logger.WithFields(map[string]interface{}{
		"notification_id": n.ID,
		"recipient":       n.Recipient,
	})

	tenantID, err := tenant.Resolve(n.Recipient)
	if err != nil {
		metrics.RecordNotification("rejected")
		log.Warn("Rejected notification", zap.Error(err))
		return nil, err
	}
	log = log.WithField("tenant", tenantID)
	log.Info("Processing notification", zap.Int("attachments", len(n.Attachments)))

	result := &Result{
		Status:         StatusSuccess,
		Clinic:         tenantID,
		NotificationID: n.ID,
		Results:        make([]FileResult, 0, len(n.Attachments)),
	}
	for _, att := range n.Attachments {
		result.Results = append(result.Results, o.ingestAttachment(ctx, log, tenantID, att))
	}

	metrics.RecordNotification("accepted")
	return result, nil
}

func (o *Orchestrator) ingestAttachment(ctx context.Context, log *logging.IngestLogger, tenantID string, att Attachment) FileResult {
	timer := metrics.NewTimer()
	m := metrics.NewIngestMetrics(tenantID)
	kind := report.Classify(att.Filename)
	log = log.WithFields(map[string]interface{}{
		"filename":    att.Filename,
		"report_kind": kind.String(),
	})

	res, nullCells := o.process(ctx, log, tenantID, kind, att)

	m.RecordAttachment(res.ReportKind, res.Status, timer.Duration())
	if res.Status != StatusSkipped {
		m.RecordRows(res.ReportKind, int64(res.RowsProcessed), res.RowsAffected, res.RowsDropped, res.RowsDeduplicated, nullCells)
	}
	log.LogIngestEvent("attachment_processed", map[string]interface{}{
		"status":            res.Status,
		"table":             res.Table,
		"rows_processed":    res.RowsProcessed,
		"rows_affected":     res.RowsAffected,
		"rows_dropped":      res.RowsDropped,
		"rows_deduplicated": res.RowsDeduplicated,
		"duration_ms":       timer.Duration().Milliseconds(),
	})
	return res
}

// process returns the attachment outcome and the number of cells that were
// present but could not be coerced.
func (o *Orchestrator) process(ctx context.Context, log *logging.IngestLogger, tenantID string, kind report.Kind, att Attachment) (FileResult, int) {
	res := FileResult{
		Filename:   att.Filename,
		ReportKind: kind.String(),
		Status:     StatusSkipped,
	}

	entry, ok := report.Lookup(kind)
	if !ok {
		res.Message = "unsupported report type: filename matches no known report"
		return res, 0
	}
	if !spreadsheet.Supported(att.Filename) {
		res.Message = "unsupported file type: not a spreadsheet"
		return res, 0
	}
	schema := entry.Schema
	res.Table = schema.Table
	res.Database = tenantID

	// Storage work runs to completion once started; a cancelled request
	// must not abandon a batch half way.
	ctx = context.WithoutCancel(ctx)

	handle, err := o.provisioner.EnsureTenantStorage(ctx, tenantID)
	if err != nil {
		return fail(log, res, err), 0
	}
	defer handle.Close()
	res.Database = handle.Database()

	if err := handle.EnsureTable(ctx, schema); err != nil {
		return fail(log, res, err), 0
	}

	table, err := o.decoder.Decode(att.Filename, att.Data)
	if err != nil {
		if errors.Is(err, spreadsheet.ErrUnsupportedExtension) {
			res.Message = err.Error()
			return res, 0
		}
		return fail(log, res, err), 0
	}
	res.RowsProcessed = len(table.Rows)

	mapped := entry.Mapper.Map(schema, table.Columns, table.Rows)
	if len(table.Rows) > 0 && len(mapped.MissingColumns) > 0 {
		log.Debug("Source columns not found", zap.Strings("columns", mapped.MissingColumns))
	}
	if mapped.NullCells > 0 {
		log.LogDataQualityEvent(schema.Table, fmt.Sprintf("%d cells could not be coerced and were stored as null", mapped.NullCells), "warning")
	}

	deduped := report.Deduplicate(mapped.Rows, schema.UniqueKey)
	res.RowsDropped = deduped.NullKeys
	res.RowsDeduplicated = deduped.Duplicates
	if deduped.NullKeys > 0 {
		log.LogDataQualityEvent(schema.Table, fmt.Sprintf("%d rows dropped without %s", deduped.NullKeys, schema.UniqueKey), "warning")
	}
	if deduped.Duplicates > 0 {
		log.LogDataQualityEvent(schema.Table, fmt.Sprintf("%d rows collapsed on repeated %s", deduped.Duplicates, schema.UniqueKey), "info")
	}

	affected, err := handle.Upsert(ctx, schema, deduped.Rows)
	res.RowsAffected = affected
	if err != nil {
		return fail(log, res, err), mapped.NullCells
	}

	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("upserted %d rows into %s", affected, schema.Table)
	return res, mapped.NullCells
}

func fail(log *logging.IngestLogger, res FileResult, err error) FileResult {
	res.Status = StatusError
	res.Message = err.Error()

	var unavailable *storage.UnavailableError
	var upsertErr *storage.UpsertError
	var decodeErr *spreadsheet.DecodeError
	switch {
	case errors.As(err, &unavailable):
		metrics.NewIngestMetrics(unavailable.Tenant).RecordStorageError(unavailable.Op)
		log.Error("Tenant storage unavailable", zap.String("op", unavailable.Op), zap.Error(err))
	case errors.As(err, &upsertErr):
		metrics.NewIngestMetrics(upsertErr.Tenant).RecordStorageError("upsert")
		log.Error("Upsert failed", zap.Int("batch", upsertErr.Batch), zap.Int64("rows_committed", upsertErr.Affected), zap.Error(err))
	case errors.As(err, &decodeErr):
		log.Warn("Attachment could not be decoded", zap.Error(err))
	default:
		log.Error("Attachment failed", zap.Error(err))
	}
	return res
}
