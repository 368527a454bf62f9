package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"science-registry/config"
)

const deptMapKey = "config/dept_map.json"

// SaveDeptMap persists the department to faculty overrides so they
// survive restarts.
func SaveDeptMap(ctx context.Context, client *s3.Client, cfg *config.Config, overrides map[string]string) error {
	data, err := json.MarshalIndent(overrides, "", "  ")
	if err != nil {
		return err
	}
	key := deptMapKey
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &cfg.S3Bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

// LoadDeptMap fetches the persisted overrides. A missing object is not
// an error, it just means nothing was saved yet.
func LoadDeptMap(ctx context.Context, client *s3.Client, cfg *config.Config) (map[string]string, error) {
	key := deptMapKey
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &cfg.S3Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, nil
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	overrides := map[string]string{}
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}
