// Package webhook exposes the HTTP surface that receives forwarded report
// e-mails and hands them to the ingestion pipeline.
package webhook

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mxdgroup/pracsuit-script/internal/ingest"
	"github.com/mxdgroup/pracsuit-script/internal/postgres"
)

// DefaultMaxBodyBytes caps request bodies when Options leaves it unset.
const DefaultMaxBodyBytes int64 = 50 << 20

// Ingester runs a notification through the pipeline.
type Ingester interface {
	Ingest(ctx context.Context, n ingest.Notification) (*ingest.Result, error)
}

// Archiver stores the raw request body of a notification.
type Archiver interface {
	Archive(ctx context.Context, tenantID, notificationID string, body []byte) error
}

// Pinger reports whether the storage server is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Summarizer describes the tenant databases.
type Summarizer interface {
	Summary(ctx context.Context) ([]postgres.DatabaseSummary, error)
}

// Options wires the server's collaborators. Archiver and Summarizer may be
// nil.
type Options struct {
	Ingester     Ingester
	Archiver     Archiver
	Database     Pinger
	Summarizer   Summarizer
	MaxBodyBytes int64
}

// Server routes webhook and operational requests.
type Server struct {
	engine  *gin.Engine
	opts    Options
	logger  *zap.Logger
	maxBody int64
}

// NewServer builds the gin engine and registers every route.
func NewServer(opts Options, logger *zap.Logger) *Server {
	s := &Server{
		engine:  gin.New(),
		opts:    opts,
		logger:  logger,
		maxBody: opts.MaxBodyBytes,
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}

	s.engine.Use(gin.Recovery(), requestLogger(logger))

	s.engine.GET("/", s.root)
	s.engine.GET("/health", s.health)
	s.engine.POST("/webhook/email", s.receiveEmail)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/clinics", s.listClinics)
	}

	return s
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}
