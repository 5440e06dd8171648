// Package blob mirrors collected photo bytes to object storage so the
// remote record's file_uri always has a retrievable copy, independent of the
// device library.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bowerhall/daylog/internal/logger"
)

const photoBucket = "daylog-photos"

// Client wraps the MinIO client for photo mirroring.
type Client struct {
	mc     *minio.Client
	bucket string
}

// Config holds MinIO connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func NewClient(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return &Client{mc: mc, bucket: photoBucket}, nil
}

// Init creates the photo bucket if it doesn't exist.
func (c *Client) Init(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}

	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", c.bucket, err)
		}
		logger.Info("bucket created", "bucket", c.bucket)
	}

	return nil
}

// MirrorPhoto uploads one photo keyed by its device asset URI. Re-uploads
// of the same URI overwrite the object, which is fine: the bytes are
// identical.
func (c *Client) MirrorPhoto(ctx context.Context, uri string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	name := objectName(uri)
	_, err := c.mc.PutObject(ctx, c.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}

	logger.Debug("photo mirrored", "object", name, "size", len(data))
	return nil
}

// Fetch downloads a mirrored photo by its asset URI.
func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, error) {
	name := objectName(uri)
	obj, err := c.mc.GetObject(ctx, c.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Healthy checks if the object store is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.mc.BucketExists(ctx, c.bucket)
	return err == nil
}

// objectName flattens an asset URI into a bucket key.
func objectName(uri string) string {
	name := strings.ReplaceAll(uri, "://", "/")
	return strings.Trim(name, "/")
}
