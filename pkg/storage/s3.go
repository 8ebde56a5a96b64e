// Package storage mirrors saved results to an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/log"

	"bunseki/pkg/config"
)

// Putter is the part of *s3.Client the mirror needs.
type Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Mirror struct {
	Client Putter
	Bucket string
	Prefix string
}

// NewS3Client builds a client for cfg. Static credentials are used when a
// key is configured; otherwise the default AWS chain applies.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Key != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Key, cfg.Secret, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// New returns nil when no bucket is configured.
func New(ctx context.Context, cfg config.S3Config) (*Mirror, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Mirror{Client: client, Bucket: cfg.Bucket, Prefix: cfg.Prefix}, nil
}

// Key is the object key of file for a work directory named dir.
func (m *Mirror) Key(dir, file string) string {
	return path.Join(m.Prefix, dir, file)
}

// Upload copies files from localDir to the bucket, keyed by the base name
// of localDir. It returns the keys written.
func (m *Mirror) Upload(ctx context.Context, localDir string, files []string) ([]string, error) {
	dir := filepath.Base(localDir)
	keys := make([]string, 0, len(files))
	for _, name := range files {
		f, err := os.Open(filepath.Join(localDir, name))
		if err != nil {
			return keys, err
		}

		key := m.Key(dir, name)
		_, err = m.Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(m.Bucket),
			Key:         aws.String(key),
			Body:        f,
			ContentType: aws.String(contentType(name)),
		})
		f.Close()
		if err != nil {
			return keys, fmt.Errorf("uploading %s: %w", key, err)
		}
		log.Debug("uploaded", "bucket", m.Bucket, "key", key)
		keys = append(keys, key)
	}
	log.Info("mirrored results", "bucket", m.Bucket, "objects", len(keys))
	return keys, nil
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}
