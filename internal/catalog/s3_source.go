package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// maxCatalogBytes bounds a catalog document fetched from S3.
const maxCatalogBytes = 4 << 20

// S3GetObjectAPI is the subset of the S3 client used to load a catalog.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ParseS3URI splits "s3://bucket/key" into its parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("catalog: %q is not an s3:// uri", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("catalog: %q needs a bucket and a key", uri)
	}
	return bucket, key, nil
}

// LoadS3 reads a JSON catalog document from S3, the way the menu is
// published by the back office.
func LoadS3(ctx context.Context, client S3GetObjectAPI, bucket, key string) (*Catalog, error) {
	if client == nil {
		return nil, fmt.Errorf("catalog: s3 client required")
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: s3 get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxCatalogBytes+1))
	if err != nil {
		return nil, fmt.Errorf("catalog: read s3://%s/%s: %w", bucket, key, err)
	}
	if len(data) > maxCatalogBytes {
		return nil, fmt.Errorf("catalog: s3://%s/%s exceeds %d bytes", bucket, key, maxCatalogBytes)
	}
	return Decode(data)
}
