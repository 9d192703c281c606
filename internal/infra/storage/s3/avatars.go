package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// AvatarResolver presigns GET URLs for avatar objects stored in an
// S3-compatible bucket.
type AvatarResolver struct {
	bucket string
	ttl    time.Duration
	client *minio.Client
	logger *slog.Logger
}

// NewAvatarResolver configures a resolver using the provided endpoint and credentials.
func NewAvatarResolver(endpoint string, useSSL bool, accessKey, secretKey, bucket string, ttl time.Duration, logger *slog.Logger) (*AvatarResolver, error) {
	cleanEndpoint := strings.TrimSpace(endpoint)
	if cleanEndpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey), ""),
		Secure: useSSL,
	}
	minioClient, err := minio.New(parseEndpoint(cleanEndpoint), opts)
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}

	return &AvatarResolver{
		bucket: bucket,
		ttl:    ttl,
		client: minioClient,
		logger: logger,
	}, nil
}

// ResolveAvatars returns a presigned URL per object key. Keys that fail to
// presign are skipped; callers fall back to initials for those.
func (r *AvatarResolver) ResolveAvatars(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		key = strings.Trim(strings.TrimSpace(key), "/")
		if key == "" {
			continue
		}
		u, err := r.client.PresignedGetObject(ctx, r.bucket, key, r.ttl, url.Values{})
		if err != nil {
			r.logger.Warn("avatar presign failed", "key", key, "error", err)
			continue
		}
		out[key] = u.String()
	}
	return out, nil
}

func parseEndpoint(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return endpoint
}
