// Package blobstore keeps the original bytes of uploaded reports.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// Store saves and removes report blobs.
type Store interface {
	// Put stores data and returns the key it was stored under.
	Put(ctx context.Context, userID, fileName string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey builds prefix/userID/<random>-<sanitised file name>.
func ObjectKey(prefix, userID, fileName string) string {
	name := unsafeChars.ReplaceAllString(path.Base(strings.ReplaceAll(fileName, `\`, "/")), "_")
	if name == "" || name == "." || name == "_" {
		name = "report.pdf"
	}
	return path.Join(prefix, userID, uuid.NewString()+"-"+name)
}

// S3 stores blobs in a single bucket.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 builds an S3 store from the default AWS configuration chain.
func NewS3(ctx context.Context, bucket, prefix string) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewS3FromConfig(cfg, bucket, prefix), nil
}

// NewS3FromConfig builds a path-style S3 store from cfg, keeping every
// setting the config chain resolved (endpoint, retries, credentials).
func NewS3FromConfig(cfg aws.Config, bucket, prefix string) *S3 {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return NewS3WithClient(client, bucket, prefix)
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client *s3.Client, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3) Put(ctx context.Context, userID, fileName string, data []byte, contentType string) (string, error) {
	key := ObjectKey(s.prefix, userID, fileName)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// Nop discards blobs. Put returns an empty key.
type Nop struct{}

func (Nop) Put(context.Context, string, string, []byte, string) (string, error) { return "", nil }

func (Nop) Delete(context.Context, string) error { return nil }
