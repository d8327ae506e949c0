package blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	// PublicURL is the base of the returned locators. When empty the
	// location reported by S3 is used.
	PublicURL string
}

// S3Backend uploads objects to AWS S3 or an S3-compatible service.
type S3Backend struct {
	uploader  uploader
	bucket    string
	prefix    string
	publicURL string
}

func NewS3Backend(ctx context.Context, opts S3Options) (*S3Backend, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	})

	if _, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(opts.Bucket)}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %s: %w", opts.Bucket, err)
	}

	return newS3Backend(manager.NewUploader(client), opts), nil
}

func newS3Backend(up uploader, opts S3Options) *S3Backend {
	return &S3Backend{
		uploader:  up,
		bucket:    opts.Bucket,
		prefix:    strings.Trim(opts.Prefix, "/"),
		publicURL: strings.TrimSuffix(opts.PublicURL, "/"),
	}
}

func (s *S3Backend) buildKey(name string) string {
	if s.prefix != "" {
		return s.prefix + "/" + name
	}
	return name
}

func (s *S3Backend) Upload(ctx context.Context, name string, content []byte, contentType string) (string, error) {
	key := s.buildKey(name)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(content),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}
	if out == nil || out.Location == "" {
		return "", fmt.Errorf("S3 did not report a location for %s", key)
	}
	return out.Location, nil
}
