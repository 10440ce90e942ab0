// Package objectstore stores raw HTML artifacts in S3-compatible object
// storage under content-addressed keys.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/debias/spider/internal/logger"
)

// Config holds S3 connection settings.
type Config struct {
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Endpoint   string `mapstructure:"endpoint"`
	BucketName string `mapstructure:"bucket_name"`
	Region     string `mapstructure:"region"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("s3 endpoint required")
	}
	if c.AccessKey == "" {
		return errors.New("s3 access_key required")
	}
	if c.SecretKey == "" {
		return errors.New("s3 secret_key required")
	}
	if c.BucketName == "" {
		return errors.New("s3 bucket_name required")
	}
	return nil
}

// Client wraps a minio client bound to one bucket.
type Client struct {
	client *miniogo.Client
	bucket string
	log    logger.Interface
}

// New creates an object store client.
func New(cfg Config, log logger.Interface) (*Client, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	return &Client{client: client, bucket: cfg.BucketName, log: log}, nil
}

// Upload stores content at the given key as UTF-8 HTML.
func (c *Client) Upload(ctx context.Context, key string, content []byte) error {
	_, err := c.client.PutObject(
		ctx,
		c.bucket,
		key,
		bytes.NewReader(content),
		int64(len(content)),
		miniogo.PutObjectOptions{ContentType: "text/html; charset=utf-8"},
	)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	c.log.Debug("uploaded object", "key", key, "size", len(content))

	return nil
}

// Download retrieves the content stored at the given key.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	c.log.Debug("downloaded object", "key", key, "size", len(data))

	return data, nil
}

// HealthCheck verifies the bucket is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("object store health check: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", c.bucket)
	}
	return nil
}
