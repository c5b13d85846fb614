package s3store

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yungbote/graphrag-backend/internal/platform/logger"
)

// BucketService is the object-storage surface used by ingestion and reset.
// Keys are full object keys; the bucket is fixed at construction.
type BucketService interface {
	Upload(ctx context.Context, key string, content []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

type bucketService struct {
	log    *logger.Logger
	client *s3.Client
	bucket string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	bucket := strings.TrimSpace(os.Getenv("S3_BUCKET"))
	if bucket == "" {
		return nil, fmt.Errorf("missing S3_BUCKET")
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	serviceLog := log.With("service", "BucketService")
	serviceLog.Info("Object storage initialized", "bucket", bucket, "endpoint", endpoint)

	return &bucketService{
		log:    serviceLog,
		client: client,
		bucket: bucket,
	}, nil
}

// NewBucketServiceWithClient is the test seam; it skips env resolution.
func NewBucketServiceWithClient(log *logger.Logger, client *s3.Client, bucket string) BucketService {
	return &bucketService{
		log:    log.With("service", "BucketService"),
		client: client,
		bucket: bucket,
	}
}

func (s *bucketService) Upload(ctx context.Context, key string, content []byte, contentType string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("s3store: object key required")
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(content),
	}
	if strings.TrimSpace(contentType) != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3store: put object %q: %w", key, err)
	}
	return nil
}

func (s *bucketService) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("s3store: object key required")
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3store: delete object %q: %w", key, err)
	}
	return nil
}
