// Package service contains the business logic layer.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/easelhq/easel-api/internal/config"
)

// ObjectStore is the storage surface the generation pipeline needs.
// Implemented by StorageService; tests substitute an in-memory fake.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	IsEnabled() bool
}

// StorageService handles object storage operations (Tigris/S3-compatible).
type StorageService struct {
	client  *s3.Client
	bucket  string
	enabled bool
	logger  *slog.Logger
}

// NewStorageService creates a new storage service.
func NewStorageService(cfg *appconfig.Config, logger *slog.Logger) (*StorageService, error) {
	if !cfg.StorageEnabled {
		logger.Info("storage service disabled - no bucket configured")
		return &StorageService{
			enabled: false,
			logger:  logger,
		}, nil
	}

	// Load AWS config with static credentials
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.StorageRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoint for S3-compatible storage (Tigris, MinIO, etc.)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true // Required for some S3-compatible services
	})

	logger.Info("storage service initialized",
		"bucket", cfg.StorageBucket,
		"endpoint", cfg.StorageEndpoint,
	)

	return &StorageService{
		client:  client,
		bucket:  cfg.StorageBucket,
		enabled: true,
		logger:  logger,
	}, nil
}

// IsEnabled returns whether storage is configured and available.
func (s *StorageService) IsEnabled() bool {
	return s.enabled
}

// Put uploads an object.
func (s *StorageService) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if !s.enabled {
		return fmt.Errorf("storage is not enabled")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to store object: %w", err)
	}

	s.logger.Debug("stored object", "key", key, "size_bytes", len(data))
	return nil
}

// Get downloads an object.
func (s *StorageService) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.enabled {
		return nil, fmt.Errorf("storage is not enabled")
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer func() { _ = output.Body.Close() }()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// PresignGet returns a presigned download URL valid for the given duration
// (default 1 hour).
func (s *StorageService) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if !s.enabled {
		return "", fmt.Errorf("storage is not enabled")
	}

	if expiry == 0 {
		expiry = 1 * time.Hour
	}

	presignClient := s3.NewPresignClient(s.client)
	presignedReq, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignedReq.URL, nil
}

// Exists checks whether an object is present.
func (s *StorageService) Exists(ctx context.Context, key string) (bool, error) {
	if !s.enabled {
		return false, nil
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}

// Delete removes an object.
func (s *StorageService) Delete(ctx context.Context, key string) error {
	if !s.enabled {
		return nil // Silently skip if storage is disabled
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	s.logger.Info("deleted object", "key", key)
	return nil
}

// DeleteOldObjects deletes objects under a prefix older than the specified
// age. Returns the number of deleted objects.
func (s *StorageService) DeleteOldObjects(ctx context.Context, prefix string, maxAge time.Duration) (int, error) {
	if !s.enabled {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.LastModified != nil && obj.LastModified.Before(cutoff) {
				_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(s.bucket),
					Key:    obj.Key,
				})
				if err != nil {
					s.logger.Warn("failed to delete old object",
						"key", *obj.Key,
						"error", err,
					)
					continue
				}
				deleted++
			}
		}
	}

	s.logger.Info("storage cleanup completed",
		"prefix", prefix,
		"deleted_count", deleted,
		"max_age", maxAge.String(),
	)

	return deleted, nil
}

// ArtifactKey builds the canonical storage key for an artifact:
// users/{userID}/artifacts/{slug}-v{version}-{jobID prefix}.png
func ArtifactKey(userID, title string, version int, jobID string) string {
	short := jobID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("users/%s/artifacts/%s-v%d-%s.png", userID, slugify(title), version, short)
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases the title and collapses anything non-alphanumeric
// into single hyphens, capped at 48 chars.
func slugify(s string) string {
	slug := slugUnsafe.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 48 {
		slug = strings.Trim(slug[:48], "-")
	}
	if slug == "" {
		return "artifact"
	}
	return slug
}
