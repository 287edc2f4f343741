package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// s3API is the subset of *s3.Client used by S3Cache, narrowed so tests can
// point it at a fake endpoint without reimplementing the whole client.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Cache stores cached archive bytes as objects in a single bucket, using
// S3 object expiration metadata for soft TTL enforcement on read (S3 itself
// has no per-object synchronous TTL, so expiry is checked client-side via
// the Expires header set on write).
type S3Cache struct {
	client s3API
	bucket string
	prefix string
}

// NewS3 constructs a Cache backed by the given S3-compatible client and
// bucket. client is typically *s3.Client but accepts any implementation
// (including a fake) satisfying s3API.
func NewS3(client s3API, bucket, prefix string) *S3Cache {
	return &S3Cache{client: client, bucket: bucket, prefix: prefix}
}

// NewS3FromConfig loads the default AWS config (env vars, shared config
// file, or instance role) and returns a Cache backed by the resulting
// client. endpointURL, when non-empty, overrides the service endpoint --
// used to point at a local or self-hosted S3-compatible store.
func NewS3FromConfig(ctx context.Context, bucket, prefix, region, endpointURL string) (*S3Cache, error) {
	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = aws.String(endpointURL)
			o.UsePathStyle = true
		}
	})

	return NewS3(client, bucket, prefix), nil
}

func (c *S3Cache) objectKey(key string) string {
	return c.prefix + key
}

func (c *S3Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.objectKey(key)),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		var respErr *smithyhttp.ResponseError

		if !errors.As(err, &notFound) && !errors.As(err, &respErr) {
			slog.WarnContext(ctx, "cache: s3 get failed", "key", key, "error", err)
		}

		return nil, false
	}
	defer out.Body.Close()

	if out.Expires != nil && time.Now().After(*out.Expires) {
		return nil, false
	}

	data, err := io.ReadAll(out.Body)
	if err != nil {
		slog.WarnContext(ctx, "cache: s3 read failed", "key", key, "error", err)
		return nil, false
	}

	return data, true
}

func (c *S3Cache) Put(ctx context.Context, key string, data []byte, ttl time.Duration) {
	expires := time.Now().Add(ttl)

	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:  aws.String(c.bucket),
		Key:     aws.String(c.objectKey(key)),
		Body:    bytes.NewReader(data),
		Expires: aws.Time(expires),
	})
	if err != nil {
		slog.WarnContext(ctx, "cache: s3 put failed", "key", key, "error", err)
	}
}

func (c *S3Cache) Close() error { return nil }

// verify at compile time that *s3.Client satisfies s3API.
var _ s3API = (*s3.Client)(nil)
