package mediastore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the configuration for S3-backed media storage.
type S3Config struct {
	Region          string
	Endpoint        string // Optional: for S3-compatible stores (R2, MinIO)
	AccessKeyID     string // Optional: static credentials
	SecretAccessKey string // Optional: static credentials
	PublicBaseURL   string // Optional: CDN or public base URL; defaults to the S3 website URL
	Buckets         Buckets
}

// S3Store persists media blobs to S3 (or an S3-compatible store).
type S3Store struct {
	client     *s3.Client
	httpClient *http.Client
	buckets    Buckets
	region     string
	publicBase string
}

// NewS3Store creates a new S3-backed media store.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	buckets := cfg.Buckets
	if buckets.Videos == "" || buckets.Audio == "" {
		buckets = DefaultBuckets()
	}

	return &S3Store{
		client:     s3.NewFromConfig(awsCfg, clientOpts...),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		buckets:    buckets,
		region:     cfg.Region,
		publicBase: cfg.PublicBaseURL,
	}, nil
}

// Save uploads the blob to the bucket for kind and returns its public URL.
func (s *S3Store) Save(ctx context.Context, ownerID string, kind Kind, filename string, data io.Reader) (string, error) {
	ext := extOf(filename, kind)
	key := objectKey(ownerID, ext)
	bucket := s.buckets.For(kind)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentTypeFor(ext)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return s.publicURL(bucket, key), nil
}

// Mirror fetches the source URL and persists the bytes like Save.
func (s *S3Store) Mirror(ctx context.Context, ownerID string, kind Kind, sourceURL string) (string, error) {
	body, err := fetchSource(ctx, s.httpClient, sourceURL)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	return s.Save(ctx, ownerID, kind, sourceURL, body)
}

// publicURL builds the publicly resolvable URL for an object.
func (s *S3Store) publicURL(bucket, key string) string {
	if s.publicBase != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBase, bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.region, key)
}

// Compile-time check that S3Store implements Store.
var _ Store = (*S3Store)(nil)
