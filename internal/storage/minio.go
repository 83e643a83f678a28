// Package storage keeps product photos in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Photos uploads objects to one bucket and hands back their public URL.
type Photos struct {
	client   *minio.Client
	bucket   string
	endpoint string
	secure   bool
}

func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Photos, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Photos{client: client, bucket: bucket, endpoint: endpoint, secure: useSSL}, nil
}

// EnsureBucket creates the bucket on first start.
func (p *Photos) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", p.bucket, err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", p.bucket, err)
	}
	return nil
}

func (p *Photos) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := p.client.PutObject(ctx, p.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return p.URL(key), nil
}

// URL is the path-style public address of key.
func (p *Photos) URL(key string) string {
	return publicURL(p.secure, p.endpoint, p.bucket, key)
}

func publicURL(secure bool, endpoint, bucket, key string) string {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   strings.TrimRight(endpoint, "/"),
		Path:   "/" + bucket + "/" + strings.TrimLeft(key, "/"),
	}
	return u.String()
}
