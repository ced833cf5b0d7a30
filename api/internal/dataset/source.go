package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/reframedb/reframe/pkg/config"
)

// Source opens dataset files by name.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// DirSource reads files from a local directory.
type DirSource struct {
	Dir string
}

// Open opens name relative to the directory; absolute names are used as-is.
func (s DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	full := name
	if !filepath.IsAbs(name) {
		full = filepath.Join(s.Dir, name)
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", full, err)
	}
	return f, nil
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads files from a bucket prefix.
type S3Source struct {
	client objectGetter
	bucket string
	prefix string
}

// Open fetches prefix/name from the bucket.
func (s S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := strings.TrimPrefix(path.Join(s.prefix, name), "/")
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}

// loadDefaultAWSConfig is a seam for tests.
var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

// NewSource picks a local or S3 source based on the data directory.
func NewSource(ctx context.Context, data config.DataConfig, s3cfg config.S3Config) (Source, error) {
	if !data.IsS3() {
		return DirSource{Dir: data.Dir}, nil
	}
	u, err := url.Parse(data.Dir)
	if err != nil {
		return nil, fmt.Errorf("parse data dir: %w", err)
	}
	if u.Host == "" {
		return nil, errors.New("s3 data dir has no bucket")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(s3cfg.Region)}
	if s3cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3cfg.AccessKeyID, s3cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return S3Source{client: client, bucket: u.Host, prefix: strings.Trim(u.Path, "/")}, nil
}
