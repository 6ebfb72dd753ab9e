package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"sehatlog-server/internal/config"
	"sehatlog-server/internal/pkg/logger"
)

type gcsStore struct {
	log       *logger.Logger
	client    *storage.Client
	bucket    string
	cdnDomain string
}

// NewGCSStore creates an ObjectStore backed by a Google Cloud Storage
// bucket.
func NewGCSStore(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (ObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket name is empty")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &gcsStore{
		log:       log.With("service", "ObjectStore"),
		client:    client,
		bucket:    cfg.Bucket,
		cdnDomain: cfg.CDNDomain,
	}, nil
}

func (s *gcsStore) Store(ctx context.Context, data []byte, folder, key string) (StoredObject, error) {
	fullKey := key
	if folder != "" {
		fullKey = path.Join(folder, key)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(fullKey).NewWriter(ctx)
	if ct := contentTypeForKey(fullKey); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return StoredObject{}, fmt.Errorf("failed to write object %s: %w", fullKey, err)
	}
	if err := w.Close(); err != nil {
		return StoredObject{}, fmt.Errorf("failed to finalize object %s: %w", fullKey, err)
	}
	s.log.Debug("object stored", "key", fullKey, "size", len(data))

	return StoredObject{
		Key:    fullKey,
		URL:    s.publicURL(fullKey),
		Format: formatForKey(fullKey),
		Size:   int64(len(data)),
	}, nil
}

func (s *gcsStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	s.log.Debug("object deleted", "key", key)
	return nil
}

func (s *gcsStore) SignedURL(key string, ttl time.Duration) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign url for %s: %w", key, err)
	}
	return url, nil
}

func (s *gcsStore) publicURL(key string) string {
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

func formatForKey(key string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(key)), ".")
	return ext
}

func contentTypeForKey(key string) string {
	switch formatForKey(key) {
	case "pdf":
		return "application/pdf"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	}
	return ""
}
