package logdir

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketConfig configures object-store access for bucket log locations.
type BucketConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Validate checks that the object-store settings are usable.
func (c BucketConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("object store endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("object store endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("object store access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("object store secret key is required")
	}
	return nil
}

// NewBucketClient creates an object-store client for bucket log locations.
func NewBucketClient(cfg BucketConfig) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

// Open resolves a log location into a source, building an object-store
// client when the location is a bucket path.
func Open(location string, cfg BucketConfig) (Source, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	if !loc.IsBucket() {
		return NewDirSource(loc.Dir)
	}

	client, err := NewBucketClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewBucketSource(client, loc.Bucket, loc.Prefix)
}

// BucketSource reads events from *.jsonl objects under a bucket prefix.
type BucketSource struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewBucketSource creates a source over an object-store bucket prefix.
func NewBucketSource(client *minio.Client, bucket, prefix string) (*BucketSource, error) {
	if client == nil {
		return nil, errors.New("object store client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	return &BucketSource{client: client, bucket: bucket, prefix: prefix}, nil
}

// Scan implements Source.
func (s *BucketSource) Scan(ctx context.Context, fn func(Event) error) error {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	})
	for object := range objects {
		if object.Err != nil {
			return fmt.Errorf("list %s/%s: %w", s.bucket, s.prefix, object.Err)
		}
		if !strings.HasSuffix(object.Key, ".jsonl") {
			continue
		}

		if err := s.scanObject(ctx, object.Key, fn); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *BucketSource) scanObject(ctx context.Context, key string, fn func(Event) error) error {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", s.bucket, key, err)
	}
	defer obj.Close()

	return scanLines(obj, s.bucket+"/"+key, fn)
}
