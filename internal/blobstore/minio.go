package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"arbor/internal/domain/models/wiki"
)

// MinioClient stores blobs in an S3-compatible bucket.
type MinioClient struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// MinioConfig configures the S3-compatible store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the externally reachable base for stored objects; the
	// endpoint is used when empty.
	PublicURL string
}

// NewMinioClient connects to the store and ensures the bucket exists.
func NewMinioClient(ctx context.Context, cfg MinioConfig) (*MinioClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &MinioClient{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Upload stores each file under pathHint with a random object name prefix
// to avoid collisions.
func (m *MinioClient) Upload(ctx context.Context, files []Upload, pathHint string) ([]wiki.BlobRef, error) {
	refs := make([]wiki.BlobRef, 0, len(files))
	for _, f := range files {
		objectName := path.Join(pathHint, fmt.Sprintf("%s-%s", uuid.NewString(), f.FileName))

		info, err := m.client.PutObject(ctx, m.bucket, objectName, f.Body, f.Size, minio.PutObjectOptions{
			ContentType: f.MimeType,
		})
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", f.FileName, err)
		}

		refs = append(refs, wiki.BlobRef{
			FileName: f.FileName,
			URL:      m.publicURL + "/" + objectName,
			Size:     info.Size,
			MimeType: f.MimeType,
		})
	}
	return refs, nil
}

// Delete removes the objects behind the given URLs. URLs outside this
// bucket's public base are skipped.
func (m *MinioClient) Delete(ctx context.Context, urls []string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, raw := range urls {
		objectName, ok := m.objectNameFromURL(raw)
		if !ok {
			continue
		}
		if err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("delete %s: %w", objectName, err)
		}
	}
	return nil
}

func (m *MinioClient) objectNameFromURL(raw string) (string, bool) {
	if !strings.HasPrefix(raw, m.publicURL+"/") {
		return "", false
	}
	name := strings.TrimPrefix(raw, m.publicURL+"/")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name, name != ""
}
