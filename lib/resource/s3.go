// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectGetter is the subset of the S3 client the store uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 serves resources from an S3 bucket. Resource ids map to object
// keys under prefix.
type S3 struct {
	client ObjectGetter
	bucket string
	prefix string
}

// NewS3 returns a store reading bucket through client.
func NewS3(client ObjectGetter, bucket, prefix string) *S3 {
	if client == nil {
		panic("resource: S3 client is required")
	}
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

// NewS3FromEnvironment builds the S3 client from the default AWS
// credential chain (environment, shared config, instance role).
// An empty region defers to that chain as well.
func NewS3FromEnvironment(ctx context.Context, region, bucket, prefix string) (*S3, error) {
	var options []func(*awsconfig.LoadOptions) error
	if region != "" {
		options = append(options, awsconfig.WithRegion(region))
	}
	config, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	return NewS3(s3.NewFromConfig(config), bucket, prefix), nil
}

// OpenResource fetches the resource object.
func (s *S3) OpenResource(ctx context.Context, resourceID string) (io.ReadCloser, error) {
	return s.get(ctx, resourceID, resourceID)
}

// OpenOffsetIndex fetches the offset index object.
func (s *S3) OpenOffsetIndex(ctx context.Context, resourceID string) (io.ReadCloser, error) {
	return s.get(ctx, resourceID, resourceID+OffsetIndexSuffix)
}

// Key returns the object key for name.
func (s *S3) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3) get(ctx context.Context, resourceID, name string) (io.ReadCloser, error) {
	if err := ValidateID(resourceID); err != nil {
		return nil, err
	}
	key := s.Key(name)
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, key)
		}
		return nil, fmt.Errorf("fetching s3://%s/%s: %w", s.bucket, key, err)
	}
	return output.Body, nil
}
