package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"flowdag/runtime/schema"
)

// S3Config configures the S3-backed blob repository from explicit raw
// values. NewS3 does not read BUCKET_NAME, AWS_ENDPOINT_URL,
// AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY itself; only the AWS SDK's
// default config loading sees the environment.
type S3Config struct {
	Bucket      string `yaml:"bucket" validate:"required"`
	EndpointURL string `yaml:"endpoint_url"`
	AccessKeyID string `yaml:"access_key_id"`
	SecretKey   string `yaml:"secret_access_key"`
	Region      string `yaml:"region" default:"us-east-1"`
	CacheDir    string `yaml:"cache_dir" default:"/tmp/flowdag-blobs"`
}

// S3 is an S3-backed blob repository (§6.4), downloads materialized and
// cached under CacheDir per engine instance. It has no retry helper of its
// own (retries are only those of the AWS SDK client's default retryer) and
// sets no per-operation timeout beyond the caller's context.
type S3 struct {
	client *s3.Client
	bucket string

	cacheDir string
	mu       sync.Mutex
	cached   map[string]string
}

// NewS3 builds an S3-backed blob repository from raw config values.
func NewS3(ctx context.Context, raw map[string]any) (*S3, error) {
	cfg := &S3Config{}
	if err := schema.InitializeConfig(cfg, raw); err != nil {
		return nil, fmt.Errorf("blob: s3 config: %w", err)
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blob: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create cache dir %s: %w", cfg.CacheDir, err)
	}

	return &S3{
		client:   client,
		bucket:   cfg.Bucket,
		cacheDir: cfg.CacheDir,
		cached:   make(map[string]string),
	}, nil
}

func (s *S3) key(b Blob) string {
	if b.Namespace != "" {
		return b.Namespace + "/" + b.ID
	}
	return b.ID
}

func (s *S3) Save(ctx context.Context, data []byte, ext, namespace string) (Blob, error) {
	b := Blob{ID: IDFor(data), Ext: ext, Namespace: namespace}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(b)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return Blob{}, fmt.Errorf("blob: s3 put %s: %w", b.ID, err)
	}
	return b, nil
}

func (s *S3) Retrieve(ctx context.Context, b Blob) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(b)),
	})
	if err != nil {
		return nil, fmt.Errorf("blob: s3 get %s: %w", b.ID, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("blob: s3 read %s: %w", b.ID, err)
	}
	return data, nil
}

func (s *S3) MultiRetrieve(ctx context.Context, bs []Blob) ([][]byte, error) {
	out := make([][]byte, len(bs))
	for i, b := range bs {
		data, err := s.Retrieve(ctx, b)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

func (s *S3) Exists(ctx context.Context, b Blob) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(b)),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (s *S3) Download(ctx context.Context, b Blob) (string, error) {
	s.mu.Lock()
	if path, ok := s.cached[b.ID]; ok {
		s.mu.Unlock()
		return path, nil
	}
	s.mu.Unlock()

	data, err := s.Retrieve(ctx, b)
	if err != nil {
		return "", err
	}
	name := b.ID
	if b.Ext != "" {
		name += "." + b.Ext
	}
	path := filepath.Join(s.cacheDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("blob: cache download %s: %w", b.ID, err)
	}

	s.mu.Lock()
	s.cached[b.ID] = path
	s.mu.Unlock()
	return path, nil
}

func (s *S3) Delete(ctx context.Context, b Blob) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(b)),
	})
	if err != nil {
		return fmt.Errorf("blob: s3 delete %s: %w", b.ID, err)
	}
	return nil
}
