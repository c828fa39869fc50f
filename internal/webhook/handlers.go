package webhook

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mxdgroup/pracsuit-script/internal/ingest"
	"github.com/mxdgroup/pracsuit-script/internal/tenant"
)

const (
	healthTimeout  = 3 * time.Second
	archiveTimeout = 30 * time.Second
)

// emailPayload is the JSON posted by the mailbox forwarding script.
type emailPayload struct {
	From        string              `json:"from"`
	To          string              `json:"to"`
	Subject     string              `json:"subject"`
	Date        string              `json:"date"`
	Body        string              `json:"body"`
	Attachments []attachmentPayload `json:"attachments"`
}

// attachmentPayload accepts both naming styles the script has used.
type attachmentPayload struct {
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	Data        string `json:"data"`
	Base64Data  string `json:"base64Data"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

func (a attachmentPayload) toAttachment() ingest.Attachment {
	att := ingest.Attachment{Filename: a.Name, Data: a.Data}
	if att.Filename == "" {
		att.Filename = a.Filename
	}
	if att.Data == "" {
		att.Data = a.Base64Data
	}
	return att
}

func respondError(c *gin.Context, status int, message string, details gin.H) {
	body := gin.H{"status": "error", "message": message}
	for k, v := range details {
		body[k] = v
	}
	c.JSON(status, body)
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Report ingestion API is running", "status": "active"})
}

func (s *Server) health(c *gin.Context) {
	now := time.Now().UTC().Format(time.RFC3339)
	if s.opts.Database != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := s.opts.Database.Ping(ctx); err != nil {
			s.logger.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "timestamp": now, "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": now})
}

func (s *Server) receiveEmail(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)

	var payload emailPayload
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "request body too large", gin.H{"limit_bytes": tooLarge.Limit})
			return
		}
		s.logger.Warn("Received non-JSON notification", zap.Error(err))
		respondError(c, http.StatusBadRequest, "request body is not a JSON notification", gin.H{"reason": err.Error()})
		return
	}

	n := ingest.Notification{
		ID:          uuid.NewString(),
		Recipient:   payload.To,
		Attachments: make([]ingest.Attachment, 0, len(payload.Attachments)),
	}
	for _, a := range payload.Attachments {
		n.Attachments = append(n.Attachments, a.toAttachment())
	}

	s.logger.Info("Received notification",
		zap.String("notification_id", n.ID),
		zap.String("from", payload.From),
		zap.String("to", payload.To),
		zap.String("subject", payload.Subject),
		zap.Int("attachments", len(n.Attachments)))

	result, err := s.opts.Ingester.Ingest(c.Request.Context(), n)

	archiveTenant := ""
	if result != nil {
		archiveTenant = result.Clinic
	}
	s.archive(c, archiveTenant, n.ID)

	if err != nil {
		var resErr *tenant.ResolutionError
		if errors.As(err, &resErr) {
			respondError(c, http.StatusUnprocessableEntity, err.Error(), gin.H{"notification_id": n.ID})
			return
		}
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "notification could not be processed", gin.H{"notification_id": n.ID})
		return
	}

	c.JSON(http.StatusOK, result)
}

// archive stores the raw body. Failures are logged and never change the
// response.
func (s *Server) archive(c *gin.Context, tenantID, notificationID string) {
	if s.opts.Archiver == nil {
		return
	}
	raw, ok := c.Get(gin.BodyBytesKey)
	if !ok {
		return
	}
	body, _ := raw.([]byte)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), archiveTimeout)
	defer cancel()
	if err := s.opts.Archiver.Archive(ctx, tenantID, notificationID, body); err != nil {
		s.logger.Warn("Failed to archive notification",
			zap.String("notification_id", notificationID),
			zap.Error(err))
	}
}

func (s *Server) listClinics(c *gin.Context) {
	if s.opts.Summarizer == nil {
		respondError(c, http.StatusNotImplemented, "database inspection is not configured", nil)
		return
	}
	summary, err := s.opts.Summarizer.Summary(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "failed to list clinic databases", gin.H{"reason": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_databases": len(summary),
		"databases":       summary,
	})
}
