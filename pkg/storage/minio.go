package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store is an object store for off-site copies.
type Store interface {
	Write(ctx context.Context, key string, r io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

type MinioConfig struct {
	Endpoint  string `env:"BACKUP_S3_ENDPOINT"`
	AccessKey string `env:"BACKUP_S3_ACCESS_KEY"`
	SecretKey string `env:"BACKUP_S3_SECRET_KEY"`
	Bucket    string `env:"BACKUP_S3_BUCKET"`
	UseSSL    bool   `env:"BACKUP_S3_USE_SSL"`
	Prefix    string `env:"BACKUP_S3_PREFIX"` // key prefix inside the bucket
}

// Enabled reports whether enough is configured to reach a bucket.
func (c MinioConfig) Enabled() bool { return c.Endpoint != "" && c.Bucket != "" }

// MinioStore writes to any S3-compatible endpoint.
type MinioStore struct {
	cfg MinioConfig
	cli *minio.Client
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{cfg: cfg, cli: cli}, nil
}

func (m *MinioStore) key(k string) string {
	if m.cfg.Prefix == "" {
		return k
	}
	return path.Join(m.cfg.Prefix, k)
}

func (m *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := m.cli.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return m.cli.MakeBucket(ctx, m.cfg.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (m *MinioStore) Write(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := m.ensureBucket(ctx); err != nil {
		return err
	}
	_, err := m.cli.PutObject(ctx, m.cfg.Bucket, m.key(key), r, size, minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (m *MinioStore) Delete(ctx context.Context, key string) error {
	return m.cli.RemoveObject(ctx, m.cfg.Bucket, m.key(key), minio.RemoveObjectOptions{})
}

func (m *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.cli.StatObject(ctx, m.cfg.Bucket, m.key(key), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns keys under prefix with the configured bucket prefix removed.
func (m *MinioStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	base := m.key("")
	if base != "" {
		base = strings.TrimSuffix(base, "/") + "/"
	}
	for obj := range m.cli.ListObjects(ctx, m.cfg.Bucket, minio.ListObjectsOptions{Prefix: base + prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, strings.TrimPrefix(obj.Key, base))
	}
	return keys, nil
}
