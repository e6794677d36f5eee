// Package blobstore wraps the S3-compatible object store (MinIO in development)
// that holds the uploaded label PDFs.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/LabelDrop/internal/config"
)

// Ref identifies a stored object once its upload completed.
type Ref struct {
	Bucket string
	Key    string
	Size   int64
}

// ProgressFunc receives the bytes transferred so far and the total size.
type ProgressFunc func(transferred, total int64)

// Object is an opened object ready to be streamed to a client.
type Object struct {
	io.ReadCloser
	Size        int64
	ContentType string
}

// Store wraps MinIO/S3 interactions for label PDFs.
type Store struct {
	client     *minio.Client
	bucket     string
	region     string
	prefix     string
	publicBase string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Store, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Store{
		client:     client,
		bucket:     cfg.Bucket,
		region:     cfg.S3Region,
		prefix:     cfg.KeyPrefix,
		publicBase: cfg.PublicBaseURL,
	}, nil
}

// EnsureBucket creates the label bucket if needed and makes the label prefix
// publicly readable, since download links are handed out without expiry.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	if err := s.client.SetBucketPolicy(ctx, s.bucket, publicReadPolicy(s.bucket, s.prefix)); err != nil {
		return fmt.Errorf("set bucket policy %s: %w", s.bucket, err)
	}
	return nil
}

// Upload streams reader into key. minio-go switches to a multipart upload for
// large bodies, and onProgress is called after every chunk it sends.
func (s *Store) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string, onProgress ProgressFunc) (Ref, error) {
	// One part at a time keeps progress ordered for the file being sent.
	opts := minio.PutObjectOptions{ContentType: contentType, NumThreads: 1}
	if onProgress != nil {
		opts.Progress = newProgressReader(size, onProgress)
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, reader, size, opts)
	if err != nil {
		return Ref{}, fmt.Errorf("put object %s: %w", key, err)
	}
	return Ref{Bucket: info.Bucket, Key: info.Key, Size: info.Size}, nil
}

// ResolveDownloadURL returns the public, non-expiring URL of ref.
func (s *Store) ResolveDownloadURL(_ context.Context, ref Ref) (string, error) {
	bucket := ref.Bucket
	if bucket == "" {
		bucket = s.bucket
	}
	return publicURL(s.publicBase, bucket, ref.Key)
}

// Open returns the object so the HTTP layer can force a download.
func (s *Store) Open(ctx context.Context, key string) (*Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before any byte is sent.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat object %s: %w", key, err)
	}
	return &Object{ReadCloser: obj, Size: info.Size, ContentType: info.ContentType}, nil
}

// Fetch reads a whole object into memory. Labels are small, so the worker uses
// this instead of streaming.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return buf, nil
}

// publicURL escapes every segment itself: url.JoinPath takes its elements as
// already-escaped text, and keys may contain '%'.
func publicURL(base, bucket, key string) (string, error) {
	segments := []string{url.PathEscape(bucket)}
	for _, seg := range strings.Split(key, "/") {
		segments = append(segments, url.PathEscape(seg))
	}
	u, err := url.JoinPath(base, segments...)
	if err != nil {
		return "", fmt.Errorf("build public url: %w", err)
	}
	return u, nil
}

func publicReadPolicy(bucket, prefix string) string {
	resource := fmt.Sprintf("arn:aws:s3:::%s/%s/*", bucket, prefix)
	return `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},` +
		`"Action":["s3:GetObject"],"Resource":["` + resource + `"]}]}`
}
