package sdist

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client the store uses
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store uploads distribution artifacts to S3
type Store struct {
	client S3API
	bucket string
}

// NewStore creates a Store against the given artifact bucket
func NewStore(client S3API, bucket string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
	}
}

// Bucket returns the artifact bucket name
func (s *Store) Bucket() string {
	return s.bucket
}

// Put uploads the archive and its SHA256SUMS entry under keyPrefix and
// returns the archive's object key
func (s *Store) Put(ctx context.Context, keyPrefix, filename string, data []byte) (string, error) {
	key := fmt.Sprintf("%s/%s", keyPrefix, filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/gzip"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	sumsKey := fmt.Sprintf("%s/SHA256SUMS", keyPrefix)
	sums := ChecksumLine(filename, data)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(sumsKey),
		Body:        bytes.NewReader([]byte(sums)),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", sumsKey, err)
	}

	return key, nil
}
