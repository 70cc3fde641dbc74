// Package storage keeps project attachments and avatars in S3-compatible
// object storage (MinIO or AWS S3).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrNotConfigured = errors.New("object storage not configured")

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type S3Store struct {
	client *minio.Client
	bucket string
	region string
}

// New returns nil, nil when no endpoint is configured so callers can treat a
// nil store as "storage disabled".
func New(cfg Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, nil
	}
	// minio wants host[:port]; accept URLs too.
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		endpoint = parsed.Host
		if parsed.Scheme == "https" {
			cfg.UseSSL = true
		}
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Store{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

func (s *S3Store) Configured() bool {
	return s != nil && s.client != nil
}

// EnsureBucket creates the bucket on first start.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// PresignGet returns a time-limited download URL. A non-empty filename is
// sent back as the attachment name.
func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration, filename string) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}
	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return signed.String(), nil
}

func (s *S3Store) Remove(ctx context.Context, key string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func ProjectFileKey(projectID, fileID, name string) string {
	return path.Join("projects", projectID, fileID, SafeName(name))
}

func AvatarKey(userID, objectID string) string {
	return path.Join("avatars", userID, objectID)
}

// SafeName strips directories and characters that do not belong in an
// object key segment.
func SafeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	if len(out) > 200 {
		out = out[len(out)-200:]
	}
	return out
}
