// Package logging builds the service's zap loggers
package logging

import (
	"go.uber.org/zap"
)

// IngestLogger wraps zap.Logger with ingestion-specific helpers
type IngestLogger struct {
	*zap.Logger
	fields map[string]interface{}
}

// Config holds logging configuration
type Config struct {
	Level       string            `json:"level"`
	Format      string            `json:"format"` // "json" or "console"
	OutputPath  string            `json:"output_path"`
	Fields      map[string]string `json:"fields"`
	Development bool              `json:"development"`
}

// NewLogger creates a new structured logger
func NewLogger(config Config) (*IngestLogger, error) {
	var zapConfig zap.Config

	if config.Development {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(config.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	if config.Format == "console" {
		zapConfig.Encoding = "console"
	} else {
		zapConfig.Encoding = "json"
	}

	if config.OutputPath != "" {
		zapConfig.OutputPaths = []string{config.OutputPath}
	}

	fields := make(map[string]interface{}, len(config.Fields))
	initial := make(map[string]interface{}, len(config.Fields))
	for k, v := range config.Fields {
		fields[k] = v
		initial[k] = v
	}
	zapConfig.InitialFields = initial

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return &IngestLogger{
		Logger: logger,
		fields: fields,
	}, nil
}

// NewDefaultLogger creates a logger with sensible defaults
func NewDefaultLogger() *IngestLogger {
	config := Config{
		Level:  "info",
		Format: "json",
		Fields: map[string]string{
			"service": "ingestd",
		},
	}

	logger, err := NewLogger(config)
	if err != nil {
		zapLogger, _ := zap.NewProduction()
		return &IngestLogger{
			Logger: zapLogger,
			fields: map[string]interface{}{"service": "ingestd"},
		}
	}

	return logger
}

// Wrap adapts an existing zap logger.
func Wrap(logger *zap.Logger) *IngestLogger {
	return &IngestLogger{Logger: logger, fields: map[string]interface{}{}}
}

// Fields returns a copy of the fields attached to l.
func (l *IngestLogger) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		out[k] = v
	}
	return out
}

// WithField adds a field to the logger context
func (l *IngestLogger) WithField(key string, value interface{}) *IngestLogger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields adds multiple fields to the logger context
func (l *IngestLogger) WithFields(fields map[string]interface{}) *IngestLogger {
	newFields := l.Fields()
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		newFields[k] = v
		zapFields = append(zapFields, zap.Any(k, v))
	}

	return &IngestLogger{
		Logger: l.Logger.With(zapFields...),
		fields: newFields,
	}
}

// LogIngestEvent logs a pipeline event such as an attachment result
func (l *IngestLogger) LogIngestEvent(event string, fields map[string]interface{}) {
	allFields := map[string]interface{}{
		"event": event,
	}
	for k, v := range fields {
		allFields[k] = v
	}

	l.WithFields(allFields).Info("Ingest event")
}

// LogDataQualityEvent logs data quality issues. Only counts and labels are
// logged, never cell contents.
func (l *IngestLogger) LogDataQualityEvent(entity string, issue string, severity string) {
	l.WithFields(map[string]interface{}{
		"entity":   entity,
		"issue":    issue,
		"severity": severity,
		"type":     "data_quality",
	}).Warn("Data quality issue")
}
