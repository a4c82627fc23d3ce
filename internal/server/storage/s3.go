package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	sc "github.com/propertyhub/docgate/internal/server/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Seams for tests.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return c.GetObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// S3Backend stores artifacts in an S3-compatible bucket. It implements
// RemoteBackend.
type S3Backend struct {
	config *sc.Config
}

// NewS3Backend returns a remote backend using the credentials and endpoint
// from cfg.
func NewS3Backend(cfg *sc.Config) *S3Backend {
	return &S3Backend{config: cfg}
}

func (b *S3Backend) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(b.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			b.config.S3AccessKey,
			b.config.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if b.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(b.config.S3BaseEndpoint)
		}
	})

	return client, nil
}

// Put uploads content under key and returns a presigned browser URL for it.
// Callers fetch by key afterwards; the URL is a convenience that may expire.
func (b *S3Backend) Put(ctx context.Context, key string, content []byte, mimeType string) (string, error) {
	client, err := b.getClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := b.config.S3Bucket

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(content),
		ContentType: &mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}

	return req.URL, nil
}

// Get fetches object content by key.
func (b *S3Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	client, err := b.getClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := b.config.S3Bucket

	out, err := getObject(client, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}

	return out.Body, nil
}
