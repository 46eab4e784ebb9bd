// Package objectstore uploads collectible metadata documents to an
// S3-compatible bucket (AWS S3, Cloudflare R2, MinIO).
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Unwrenchable/fizz-caps/internal/config"
	"github.com/Unwrenchable/fizz-caps/internal/issuer"
)

// PutObjectAPI is the subset of *s3.Client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader implements issuer.MetadataUploader on an S3 bucket.
type Uploader struct {
	client  PutObjectAPI
	bucket  string
	baseURL string
}

// NewUploader creates an Uploader writing to bucket and returning URIs
// under baseURL.
//
// Precondition: client must be non-nil; bucket and baseURL must be non-empty.
func NewUploader(client PutObjectAPI, bucket, baseURL string) *Uploader {
	return &Uploader{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewClient builds an S3 client from cfg. Static credentials are used when
// configured; otherwise the default AWS credential chain applies. A custom
// Endpoint switches to path-style addressing for R2 and MinIO.
func NewClient(ctx context.Context, cfg config.ObjectStoreConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading object store config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// PublicBaseURL returns the configured public base URL, or the bucket's
// endpoint URL when none is set.
func PublicBaseURL(cfg config.ObjectStoreConfig) string {
	if cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL
	}
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

// Upload implements issuer.MetadataUploader.
func (u *Uploader) Upload(ctx context.Context, key string, md issuer.Metadata) (string, error) {
	doc, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("encoding metadata %q: %w", key, err)
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(doc),
		ContentType:  aws.String("application/json"),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading metadata %q: %w", key, err)
	}
	return u.baseURL + "/" + key, nil
}
