package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// AWSBackend stores the blob as a single S3 object. PutObject replaces the
// object as a whole, so readers see either the old or the new contents.
type AWSBackend struct {
	s3Client *s3.Client
	bucket   string
	key      string
}

// NewAWSBackend creates an S3-backed store using the default credential
// chain, or the named shared-config profile when one is given.
func NewAWSBackend(ctx context.Context, bucket, key, region, profile string) (*AWSBackend, error) {
	var cfg aws.Config
	var err error

	if profile != "" {
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return NewAWSBackendFromClient(s3.NewFromConfig(cfg), bucket, key), nil
}

// NewAWSBackendFromClient wraps an existing S3 client.
func NewAWSBackendFromClient(client *s3.Client, bucket, key string) *AWSBackend {
	return &AWSBackend{s3Client: client, bucket: bucket, key: key}
}

// Location returns the s3:// URI of the object.
func (b *AWSBackend) Location() string {
	return fmt.Sprintf("s3://%s/%s", b.bucket, b.key)
}

// Read fetches the object, returning nil when it does not exist.
func (b *AWSBackend) Read(ctx context.Context) ([]byte, error) {
	result, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}
	return data, nil
}

// Write uploads data, replacing the object.
func (b *AWSBackend) Write(ctx context.Context, data []byte) error {
	_, err := b.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("putting object to S3: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
