package db

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Dump and Load targets are plain paths unless prefixed with a scheme:
// file:// and s3:// work both ways, http:// and https:// read only.

// S3Options configures access to s3:// targets. The zero value falls
// back to the ambient AWS configuration.
type S3Options struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string // custom S3-compatible endpoint
}

// splitTarget separates a target into its scheme and the remainder.
// Bare paths come back with an empty scheme.
func splitTarget(target string) (string, string) {
	scheme, rest, ok := strings.Cut(target, "://")
	if !ok {
		return "", target
	}
	return strings.ToLower(scheme), rest
}

func openTargetReader(target string, opts *S3Options) (io.ReadCloser, error) {
	scheme, rest := splitTarget(target)
	switch scheme {
	case "":
		return os.Open(target)
	case "file":
		return os.Open(rest)
	case "http", "https":
		return openHTTPReader(target)
	case "s3":
		return openS3Reader(rest, opts)
	}
	return nil, fmt.Errorf("unsupported target %q", target)
}

func openTargetWriter(target string, opts *S3Options) (io.WriteCloser, error) {
	scheme, rest := splitTarget(target)
	switch scheme {
	case "":
		return os.Create(target)
	case "file":
		return os.Create(rest)
	case "http", "https":
		return nil, fmt.Errorf("cannot write to %q: http targets are read-only", target)
	case "s3":
		return openS3Writer(rest, opts)
	}
	return nil, fmt.Errorf("unsupported target %q", target)
}

func openHTTPReader(url string) (io.ReadCloser, error) {
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}

// splitBucketKey takes the part after s3:// apart.
func splitBucketKey(rest string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 target %q", "s3://"+rest)
	}
	return bucket, key, nil
}

func s3Client(ctx context.Context, opts *S3Options) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts != nil && opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts != nil && opts.AccessKey != "" && opts.SecretKey != "" {
		provider := credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
		loadOpts = append(loadOpts, config.WithCredentialsProvider(provider))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if opts != nil && opts.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(cfg, clientOpts...), nil
}

func openS3Reader(rest string, opts *S3Options) (io.ReadCloser, error) {
	bucket, key, err := splitBucketKey(rest)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	client, err := s3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	return resp.Body, nil
}

// s3Writer buffers the payload and uploads it on Close. Dumps are small
// enough that a multipart upload is not worth the machinery.
type s3Writer struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	buf    []byte
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("s3 writer already closed")
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_, err := w.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key),
		Body:   strings.NewReader(string(w.buf)),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", w.bucket, w.key, err)
	}
	return nil
}

func openS3Writer(rest string, opts *S3Options) (io.WriteCloser, error) {
	bucket, key, err := splitBucketKey(rest)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	client, err := s3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &s3Writer{ctx: ctx, client: client, bucket: bucket, key: key}, nil
}
