// Package blobstore persists job artifacts (serialized PipelineResult
// JSON, rendered documents) in an S3-compatible object store, keyed by
// job ID.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store is a minio-backed object store scoped to one bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// New connects to a minio (or S3-compatible) endpoint and ensures bucket
// exists, creating it if absent.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: connect: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("blobstore: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("blobstore: create bucket: %w", err)
		}
	}
	return &Store{client: client, bucket: bucket}, nil
}

func resultKey(jobID string) string   { return fmt.Sprintf("jobs/%s/result.json", jobID) }
func artifactKey(jobID string) string { return fmt.Sprintf("jobs/%s/artifact.docx", jobID) }

// PutResult uploads the serialized PipelineResult for jobID.
func (s *Store) PutResult(ctx context.Context, jobID string, data []byte) error {
	return s.put(ctx, resultKey(jobID), data, "application/json")
}

// GetResult downloads the serialized PipelineResult for jobID.
func (s *Store) GetResult(ctx context.Context, jobID string) ([]byte, error) {
	return s.get(ctx, resultKey(jobID))
}

// PutArtifact uploads a rendered document for jobID.
func (s *Store) PutArtifact(ctx context.Context, jobID string, data []byte) error {
	return s.put(ctx, artifactKey(jobID), data, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
}

// GetArtifact downloads the rendered document for jobID.
func (s *Store) GetArtifact(ctx context.Context, jobID string) ([]byte, error) {
	return s.get(ctx, artifactKey(jobID))
}

func (s *Store) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("blobstore: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("blobstore: get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", key, err)
	}
	return data, nil
}
