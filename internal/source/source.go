// Package source fetches movie assets. A location is either a plain
// filesystem path or an s3://bucket/key object.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the one S3 call this package makes, narrowed for tests.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Resolver opens movie locations.
type Resolver struct {
	logger *slog.Logger

	// newS3 is replaceable in tests.
	newS3 func() s3API
}

// New returns a resolver. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		logger: logger,
		newS3:  func() s3API { return s3.NewFromConfig(s3ConfigFromEnv()) },
	}
}

// Open resolves location to a reader. The caller closes it.
func (r *Resolver) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if strings.HasPrefix(location, "s3://") {
		return r.openS3(ctx, location)
	}
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", location, err)
	}
	return f, nil
}

func (r *Resolver) openS3(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	r.logger.Info("fetching movie from s3", "bucket", bucket, "key", key)
	out, err := r.newS3().GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("source: get s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

// ParseS3URI splits s3://bucket/key into its parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("source: not an s3 URI: %q", uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("source: s3 URI needs the s3://bucket/key form: %q", uri)
	}
	return bucket, key, nil
}

// s3ConfigFromEnv builds a client config without the full AWS config
// loader: region and static credentials from the environment, anonymous
// access otherwise (public buckets work without any setup).
func s3ConfigFromEnv() aws.Config {
	cfg := aws.Config{Region: envRegion()}

	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey != "" && secretKey != "" {
		sessionToken := os.Getenv("AWS_SESSION_TOKEN")
		cfg.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     accessKey,
					SecretAccessKey: secretKey,
					SessionToken:    sessionToken,
					Source:          "environment",
				}, nil
			}))
	} else {
		cfg.Credentials = aws.AnonymousCredentials{}
	}
	return cfg
}

func envRegion() string {
	for _, key := range []string{"AWS_REGION", "AWS_DEFAULT_REGION"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "us-east-1"
}
