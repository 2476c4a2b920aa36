package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bizdev-tools/tg-digest/internal/logger"
)

// Config holds the bucket connection settings
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // empty = AWS
	AccessKey string
	SecretKey string
	PathStyle bool
}

// Client uploads objects to a single bucket
type Client struct {
	s3     *s3.Client
	bucket string
}

// NewClient creates a new S3 client bound to config.Bucket
func NewClient(config Config) (*Client, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	cfg := aws.Config{
		Region: config.Region,
	}
	if config.AccessKey != "" && config.SecretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(config.AccessKey, config.SecretKey, "")
	}

	// buckets with dots break virtual-hosted TLS names
	usePathStyle := config.PathStyle || strings.Contains(config.Bucket, ".")

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		o.UsePathStyle = usePathStyle
	})

	logger.Component("s3").Info().
		Str("bucket", config.Bucket).
		Str("region", config.Region).
		Str("endpoint", config.Endpoint).
		Bool("path_style", usePathStyle).
		Msg("S3 client initialized")

	return &Client{s3: client, bucket: config.Bucket}, nil
}

// Put uploads data under key, replacing any existing object
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}
