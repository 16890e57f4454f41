package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore keeps upload payloads that are too large to inline in the
// portal store. ArchiveUpload returns the storage key recorded on the
// upload; DownloadURL serves the payload back through a short-lived link.
type ObjectStore interface {
	ArchiveUpload(ctx context.Context, uploadID string, data []byte, contentType string) (string, error)
	DownloadURL(ctx context.Context, storageKey string, expiry time.Duration) (string, error)
	Discard(ctx context.Context, storageKey string) error
}

// MinioConfig holds connection settings for the archive bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// uploadKeyPrefix namespaces archived payloads inside the bucket so the
// same bucket can hold other portal artifacts later without collisions.
const uploadKeyPrefix = "uploads/"

// MinioArchive implements ObjectStore on MinIO/S3 compatible storage.
type MinioArchive struct {
	client *minio.Client
	bucket string
}

// NewMinioArchive connects to MinIO and ensures the bucket exists.
func NewMinioArchive(cfg MinioConfig) (*MinioArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioArchive{client: client, bucket: cfg.Bucket}, nil
}

// ArchiveUpload stores a decoded payload under the upload's ID.
func (m *MinioArchive) ArchiveUpload(ctx context.Context, uploadID string, data []byte, contentType string) (string, error) {
	key := uploadKeyPrefix + uploadID
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return "", fmt.Errorf("archive upload: %w", err)
	}
	return key, nil
}

// DownloadURL returns a time-limited link to an archived payload.
func (m *MinioArchive) DownloadURL(ctx context.Context, storageKey string, expiry time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucket, storageKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return url.String(), nil
}

// Discard removes an archived payload once its upload is deleted.
func (m *MinioArchive) Discard(ctx context.Context, storageKey string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, storageKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("discard archived payload: %w", err)
	}
	return nil
}
