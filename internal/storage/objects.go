package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"
)

// ObjectsConfig holds S3/MinIO connection settings.
type ObjectsConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// maxObjectRequests bounds in-flight requests per batch.
const maxObjectRequests = 16

// Objects is an Adapter keeping one object per key in a bucket.
type Objects struct {
	mc     *minio.Client
	bucket string
}

// OpenObjects connects to the endpoint and creates the bucket if missing.
func OpenObjects(ctx context.Context, cfg ObjectsConfig) (*Objects, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &Objects{mc: mc, bucket: cfg.Bucket}, nil
}

func objectName(key string) string { return url.PathEscape(key) }

func (o *Objects) Get(ctx context.Context, keys ...string) ([]Entry, error) {
	entries := make([]Entry, len(keys))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxObjectRequests)

	for i, key := range keys {
		g.Go(func() error {
			value, found, err := o.getObject(ctx, key)
			if err != nil {
				return fmt.Errorf("get %q: %w", key, err)
			}
			entries[i] = Entry{Key: key, Value: value, Found: found}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (o *Objects) getObject(ctx context.Context, key string) (string, bool, error) {
	obj, err := o.mc.GetObject(ctx, o.bucket, objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return "", false, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func (o *Objects) Set(ctx context.Context, entries ...Entry) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxObjectRequests)

	for _, e := range entries {
		g.Go(func() error {
			data := []byte(e.Value)
			_, err := o.mc.PutObject(ctx, o.bucket, objectName(e.Key), bytes.NewReader(data), int64(len(data)),
				minio.PutObjectOptions{ContentType: "application/json"})
			if err != nil {
				return fmt.Errorf("put %q: %w", e.Key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (o *Objects) Remove(ctx context.Context, keys ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxObjectRequests)

	for _, key := range keys {
		g.Go(func() error {
			if err := o.mc.RemoveObject(ctx, o.bucket, objectName(key), minio.RemoveObjectOptions{}); err != nil {
				return fmt.Errorf("remove %q: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}
