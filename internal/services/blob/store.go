package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/common"
	"github.com/ternarybob/skillmatch/internal/interfaces"
)

// Store persists raw document bytes in an R2 bucket through the
// S3-compatible API
type Store struct {
	client *s3.Client
	bucket string
	logger arbor.ILogger
}

// NewStore creates an R2-backed object store. The endpoint defaults to the
// account's R2 endpoint when not set explicitly.
func NewStore(ctx context.Context, cfg common.StorageConfig, logger arbor.ILogger) (interfaces.ObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.AccountID == "" {
			return nil, fmt.Errorf("storage endpoint or account id is required")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	logger.Info().
		Str("bucket", cfg.Bucket).
		Msg("Object store initialized")

	return &Store{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Put uploads the bytes under the given key
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}

	s.logger.Debug().
		Str("key", key).
		Int("size", len(data)).
		Msg("Object stored")

	return nil
}

// GetBytes downloads the object under the given key
func (s *Store) GetBytes(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// extByMime maps the accepted document types to a storage extension, used
// when the uploaded filename has none
var extByMime = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"text/plain": ".txt",
}

// NewResumeKey derives an opaque storage key for an uploaded resume
func NewResumeKey(filename, mimeType string) string {
	return newKey("resumes", filename, mimeType)
}

// NewJobKey derives an opaque storage key for an uploaded job description
func NewJobKey(filename, mimeType string) string {
	return newKey("jobs", filename, mimeType)
}

func newKey(prefix, filename, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = extByMime[mimeType]
	}
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/%s%s", prefix, uuid.New().String(), ext)
}
