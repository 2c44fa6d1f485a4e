package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"smd/internal/providers"
	"smd/internal/structures"
)

// SnapshotStore uploads incident snapshots and returns the URL they are
// served from.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL *url.URL
	useSSL  bool
}

// NewSnapshotStore builds the configured snapshot store. When object
// storage is disabled or unreachable, incidents fall back to inline
// base64 snapshots instead of failing startup.
func NewSnapshotStore(conf *structures.Config, logger providers.Logger) SnapshotStore {
	if !conf.Incidents.Minio.Enabled {
		return &noopStore{}
	}
	store, err := NewMinioStore(conf.Incidents.Minio)
	if err != nil {
		logger.Warnf(providers.TypeApp, "Snapshot storage unavailable, falling back to inline snapshots: %s", err)
		return &noopStore{}
	}
	logger.Infof(providers.TypeApp, "Snapshot storage connected: %s/%s", conf.Incidents.Minio.Endpoint, conf.Incidents.Minio.Bucket)
	return store
}

func NewMinioStore(conf structures.MinioConfig) (*MinioStore, error) {
	if conf.AccessKey == "" || conf.SecretKey == "" {
		return nil, fmt.Errorf("minio access key / secret key not configured")
	}
	bucket := conf.Bucket
	if bucket == "" {
		bucket = "smd-snapshots"
	}

	cli, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
	if err != nil {
		exists, errBucketExists := cli.BucketExists(ctx, bucket)
		if errBucketExists != nil || !exists {
			return nil, fmt.Errorf("create/check bucket %s: %w", bucket, err)
		}
	}

	var base *url.URL
	if conf.PublicBaseURL != "" {
		base, err = url.Parse(conf.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid public base URL: %w", err)
		}
	}

	return &MinioStore{
		client:  cli,
		bucket:  bucket,
		baseURL: base,
		useSSL:  conf.UseSSL,
	}, nil
}

func (s *MinioStore) SaveSnapshot(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = strings.TrimPrefix(key, "/")

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot %s: %w", key, err)
	}

	if s.baseURL != nil {
		u := *s.baseURL
		u.Path = strings.TrimRight(u.Path, "/") + "/" + s.bucket + "/" + key
		return u.String(), nil
	}

	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.client.EndpointURL().Host, s.bucket, key), nil
}

// noopStore signals "no remote storage" by returning an empty URL.
type noopStore struct{}

func (n *noopStore) SaveSnapshot(_ context.Context, _ string, _ []byte, _ string) (string, error) {
	return "", nil
}
