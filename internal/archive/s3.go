// Package archive keeps the raw JSON body of every inbound notification in
// S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/mxdgroup/pracsuit-script/internal/metrics"
)

const (
	defaultPrefix = "notifications"
	defaultRegion = "us-east-1"
	unresolved    = "unresolved"
)

// Archiver stores raw notification bodies.
type Archiver interface {
	Archive(ctx context.Context, tenantID, notificationID string, body []byte) error
	Ping(ctx context.Context) error
}

// objectAPI is the subset of *s3.Client the archiver calls.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Archiver writes one JSON object per notification.
type S3Archiver struct {
	client objectAPI
	bucket string
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// New returns an S3Archiver for cfg, or a NopArchiver when no bucket is
// configured. cfg keys: endpoint, access_key_id, secret_access_key, bucket,
// prefix, region, use_ssl.
func New(ctx context.Context, cfg map[string]string, logger *zap.Logger) (Archiver, error) {
	if cfg["bucket"] == "" {
		logger.Info("Notification archive disabled: no bucket configured")
		return NopArchiver{}, nil
	}
	return NewS3Archiver(ctx, cfg, logger)
}

// NewS3Archiver builds an S3 client with static credentials. A custom
// endpoint switches to path-style addressing for MinIO compatibility.
func NewS3Archiver(ctx context.Context, cfg map[string]string, logger *zap.Logger) (*S3Archiver, error) {
	region := cfg["region"]
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg["access_key_id"] != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg["access_key_id"],
			cfg["secret_access_key"],
			"",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := endpointURL(cfg["endpoint"], cfg["use_ssl"])
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Archiver(client, cfg["bucket"], cfg["prefix"], logger), nil
}

func newS3Archiver(client objectAPI, bucket, prefix string, logger *zap.Logger) *S3Archiver {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
		logger: logger,
	}
}

// endpointURL adds a scheme to a bare host. An empty endpoint means the
// default AWS endpoint for the region.
func endpointURL(endpoint, useSSL string) string {
	if endpoint == "" {
		return ""
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	secure := true
	if parsed, err := strconv.ParseBool(useSSL); err == nil {
		secure = parsed
	}
	if secure {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// Key returns the object key for a notification received at t. An empty
// tenant is filed under "unresolved".
func Key(prefix string, t time.Time, tenantID, notificationID string) string {
	if tenantID == "" {
		tenantID = unresolved
	}
	return path.Join(prefix, t.UTC().Format("20060102"), tenantID, notificationID+".json")
}

func (a *S3Archiver) Archive(ctx context.Context, tenantID, notificationID string, body []byte) error {
	key := Key(a.prefix, a.now(), tenantID, notificationID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		metrics.RecordArchive("error")
		return fmt.Errorf("failed to archive notification %s: %w", notificationID, err)
	}

	metrics.RecordArchive("success")
	a.logger.Debug("Archived notification",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(body)))
	return nil
}

// Ping lists at most one key under the prefix to verify the bucket is
// reachable.
func (a *S3Archiver) Ping(ctx context.Context) error {
	_, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(a.bucket),
		Prefix:  aws.String(a.prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to S3: %w", err)
	}
	return nil
}

// NopArchiver discards everything.
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, string, string, []byte) error { return nil }

func (NopArchiver) Ping(context.Context) error { return nil }
