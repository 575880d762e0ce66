package io

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// maxDeleteBatch is the object limit of a single DeleteObjects call.
const maxDeleteBatch = 1000

// S3Config holds S3 configuration.
type S3Config struct {
	Region          string
	Endpoint        string // For MinIO or other S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	ForcePathStyle  bool // Required for MinIO
}

// S3FileIO implements FileIO for S3.
type S3FileIO struct {
	client *s3.Client
}

// NewS3FileIO creates a new S3 file I/O handler.
func NewS3FileIO(ctx context.Context, cfg *S3Config) (*S3FileIO, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			cfg.SessionToken,
		)
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3FileIO{client: client}, nil
}

// parseS3URI parses an S3 URI into bucket and key.
func parseS3URI(uri string) (bucket, key string, err error) {
	if !IsS3Location(uri) {
		return "", "", fmt.Errorf("invalid S3 URI %q: missing s3:// scheme", uri)
	}
	uri = strings.TrimPrefix(uri, "s3a://")
	uri = strings.TrimPrefix(uri, "s3://")

	u, err := url.Parse("s3://" + uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URI: %w", err)
	}

	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")

	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in S3 URI")
	}

	return bucket, key, nil
}

// isNotFound reports whether err is a missing object or bucket error.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// Open opens a file for reading.
func (s *S3FileIO) Open(ctx context.Context, path string) (InputFile, error) {
	bucket, key, err := parseS3URI(path)
	if err != nil {
		return nil, err
	}
	return &s3File{client: s.client, bucket: bucket, key: key, path: path}, nil
}

// Create creates a new file for writing.
func (s *S3FileIO) Create(ctx context.Context, path string) (OutputFile, error) {
	bucket, key, err := parseS3URI(path)
	if err != nil {
		return nil, err
	}
	return &s3File{client: s.client, bucket: bucket, key: key, path: path}, nil
}

// Delete deletes a file.
func (s *S3FileIO) Delete(ctx context.Context, path string) error {
	bucket, key, err := parseS3URI(path)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return err
}

// Exists checks if a file exists.
func (s *S3FileIO) Exists(ctx context.Context, path string) (bool, error) {
	bucket, key, err := parseS3URI(path)
	if err != nil {
		return false, err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteFiles deletes multiple files in batches per bucket.
func (s *S3FileIO) DeleteFiles(ctx context.Context, paths []string) error {
	bucketKeys := make(map[string][]types.ObjectIdentifier)
	for _, path := range paths {
		bucket, key, err := parseS3URI(path)
		if err != nil {
			return err
		}
		bucketKeys[bucket] = append(bucketKeys[bucket], types.ObjectIdentifier{Key: aws.String(key)})
	}

	for bucket, objects := range bucketKeys {
		for start := 0; start < len(objects); start += maxDeleteBatch {
			end := min(start+maxDeleteBatch, len(objects))
			out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &types.Delete{Objects: objects[start:end], Quiet: aws.Bool(true)},
			})
			if err != nil {
				return fmt.Errorf("failed to delete objects in %s: %w", bucket, err)
			}
			if len(out.Errors) > 0 {
				e := out.Errors[0]
				return fmt.Errorf("failed to delete %s/%s: %s", bucket, aws.ToString(e.Key), aws.ToString(e.Message))
			}
		}
	}

	return nil
}

// ListFiles lists files under a prefix.
func (s *S3FileIO) ListFiles(ctx context.Context, prefix string) ([]string, error) {
	bucket, key, err := parseS3URI(prefix)
	if err != nil {
		return nil, err
	}

	var files []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(key),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			files = append(files, fmt.Sprintf("s3://%s/%s", bucket, aws.ToString(obj.Key)))
		}
	}

	return files, nil
}

// s3File is both the input and output handle of an object.
type s3File struct {
	client *s3.Client
	bucket string
	key    string
	path   string
}

func (f *s3File) Location() string {
	return f.path
}

func (f *s3File) Length(ctx context.Context) (int64, error) {
	resp, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotExist, f.path)
		}
		return 0, err
	}
	return aws.ToInt64(resp.ContentLength), nil
}

func (f *s3File) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, f.path)
		}
		return nil, err
	}
	return resp.Body, nil
}

func (f *s3File) Create(ctx context.Context) (io.WriteCloser, error) {
	return &s3Writer{file: f, ctx: ctx, exclusive: true}, nil
}

func (f *s3File) CreateOverwrite(ctx context.Context) (io.WriteCloser, error) {
	return &s3Writer{file: f, ctx: ctx}, nil
}

// s3Writer buffers writes and uploads on close. Exclusive uploads use a
// conditional put so a concurrent writer of the same key loses.
type s3Writer struct {
	file      *s3File
	ctx       context.Context
	buffer    bytes.Buffer
	exclusive bool
	closed    bool
}

func (w *s3Writer) Write(p []byte) (n int, err error) {
	return w.buffer.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	input := &s3.PutObjectInput{
		Bucket: aws.String(w.file.bucket),
		Key:    aws.String(w.file.key),
		Body:   bytes.NewReader(w.buffer.Bytes()),
	}
	if w.exclusive {
		input.IfNoneMatch = aws.String("*")
	}
	_, err := w.file.client.PutObject(w.ctx, input)
	return err
}
