package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"science-registry/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// NewS3Client creates an S3 client against the configured endpoint.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.S3Endpoint,
				SigningRegion:     cfg.S3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// UploadPDF stores an uploaded PDF under a fresh uploads/ key and
// returns its public link.
func UploadPDF(ctx context.Context, client *s3.Client, cfg *config.Config, filename string, data []byte) (string, error) {
	ext := path.Ext(filename)
	if ext == "" {
		ext = ".pdf"
	}
	key := fmt.Sprintf("uploads/%s%s", uuid.NewString(), ext)

	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &cfg.S3Bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", cfg.S3Endpoint, cfg.S3Bucket, key), nil
}

// KeyFromURL recovers the object key from a link produced by UploadPDF.
// Returns "" for links that do not point into the configured bucket.
func KeyFromURL(cfg *config.Config, link string) string {
	prefix := fmt.Sprintf("%s/%s/", cfg.S3Endpoint, cfg.S3Bucket)
	if !strings.HasPrefix(link, prefix) {
		return ""
	}
	return strings.TrimPrefix(link, prefix)
}

// DeleteByURL removes the object a stored pdf_url points at. Links
// outside the bucket are ignored.
func DeleteByURL(ctx context.Context, client *s3.Client, cfg *config.Config, link string) error {
	key := KeyFromURL(cfg, link)
	if key == "" {
		return nil
	}
	_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &cfg.S3Bucket,
		Key:    &key,
	})
	return err
}
