// Package metrics provides Prometheus metrics for the ingestion service
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_notifications_total",
			Help: "Total number of inbound notifications by outcome",
		},
		[]string{"status"},
	)

	// Attachment metrics
	AttachmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_attachments_total",
			Help: "Total number of attachments by report kind and outcome",
		},
		[]string{"tenant", "report_kind", "status"},
	)

	AttachmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_attachment_duration_seconds",
			Help:    "Time taken to ingest one attachment",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"tenant", "report_kind"},
	)

	// Row metrics
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_rows_processed_total",
			Help: "Total number of decoded spreadsheet rows",
		},
		[]string{"tenant", "report_kind"},
	)

	RowsAffected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_rows_affected_total",
			Help: "Total number of rows inserted or updated",
		},
		[]string{"tenant", "report_kind"},
	)

	RowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_rows_dropped_total",
			Help: "Total number of rows discarded before the write",
		},
		[]string{"tenant", "report_kind", "reason"},
	)

	NullCells = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_null_cells_total",
			Help: "Total number of non-empty cells that could not be coerced",
		},
		[]string{"tenant", "report_kind"},
	)

	// Storage metrics
	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_storage_errors_total",
			Help: "Total number of storage failures by operation",
		},
		[]string{"tenant", "op"},
	)

	ProvisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_provision_duration_seconds",
			Help:    "Time taken to ensure tenant storage exists",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// Archive metrics
	ArchiveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_archive_writes_total",
			Help: "Total number of raw notification archive writes",
		},
		[]string{"status"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// Reasons used with RowsDropped.
const (
	ReasonNullKey   = "null_key"
	ReasonDuplicate = "duplicate"
)

// IngestMetrics records metrics for one tenant.
type IngestMetrics struct {
	tenantID string
}

// NewIngestMetrics creates a new metrics recorder for a tenant
func NewIngestMetrics(tenantID string) *IngestMetrics {
	return &IngestMetrics{tenantID: tenantID}
}

// RecordAttachment records the outcome and duration of one attachment
func (m *IngestMetrics) RecordAttachment(reportKind, status string, duration time.Duration) {
	AttachmentsTotal.WithLabelValues(m.tenantID, reportKind, status).Inc()
	AttachmentDuration.WithLabelValues(m.tenantID, reportKind).Observe(duration.Seconds())
}

// RecordRows records row counts for one attachment
func (m *IngestMetrics) RecordRows(reportKind string, processed, affected int64, nullKeys, duplicates, nullCells int) {
	RowsProcessed.WithLabelValues(m.tenantID, reportKind).Add(float64(processed))
	RowsAffected.WithLabelValues(m.tenantID, reportKind).Add(float64(affected))
	RowsDropped.WithLabelValues(m.tenantID, reportKind, ReasonNullKey).Add(float64(nullKeys))
	RowsDropped.WithLabelValues(m.tenantID, reportKind, ReasonDuplicate).Add(float64(duplicates))
	NullCells.WithLabelValues(m.tenantID, reportKind).Add(float64(nullCells))
}

// RecordStorageError records a storage failure
func (m *IngestMetrics) RecordStorageError(op string) {
	StorageErrors.WithLabelValues(m.tenantID, op).Inc()
}

// RecordNotification records the outcome of a whole notification
func RecordNotification(status string) {
	NotificationsTotal.WithLabelValues(status).Inc()
}

// RecordProvision records how long ensuring tenant storage took
func RecordProvision(outcome string, duration time.Duration) {
	ProvisionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordArchive records a raw notification archive write
func RecordArchive(status string) {
	ArchiveTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(route, method, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// Timer is a helper for measuring duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
