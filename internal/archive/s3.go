// Package archive copies report artifacts to S3-compatible object storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/MacJediWizard/msp-report/internal/config"
	"github.com/MacJediWizard/msp-report/internal/reports"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const defaultRegion = "us-east-1"

// ObjectUploader is the subset of manager.Uploader used by the archiver.
type ObjectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Archiver uploads the artifacts of a run to a bucket.
type Archiver struct {
	bucket   string
	prefix   string
	uploader ObjectUploader
	logger   zerolog.Logger
}

// Validate checks that an S3 target is usable.
func Validate(cfg config.S3Config) error {
	if cfg.Bucket == "" {
		return errors.New("s3: bucket is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return errors.New("s3: access_key_id and secret_access_key must be set together")
	}
	if cfg.Endpoint != "" && !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return fmt.Errorf("s3: endpoint %q must include http:// or https://", cfg.Endpoint)
	}
	return nil
}

// NewArchiver builds an S3 client from cfg. Without static credentials the
// default AWS credential chain is used.
func NewArchiver(ctx context.Context, cfg config.S3Config, logger zerolog.Logger) (*Archiver, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	awsOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKeyID != "" {
		awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewArchiverWithUploader(cfg.Bucket, cfg.Prefix, manager.NewUploader(client), logger), nil
}

// NewArchiverWithUploader creates an archiver around an existing uploader.
func NewArchiverWithUploader(bucket, prefix string, uploader ObjectUploader, logger zerolog.Logger) *Archiver {
	return &Archiver{
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		uploader: uploader,
		logger:   logger.With().Str("component", "s3_archiver").Str("bucket", bucket).Logger(),
	}
}

// ObjectKey returns the key for a file generated at t:
// <prefix>/<YYYY>/<MM>/<file>.
func ObjectKey(prefix string, t time.Time, file string) string {
	parts := []string{t.UTC().Format("2006"), t.UTC().Format("01"), filepath.Base(file)}
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append([]string{p}, parts...)
	}
	return path.Join(parts...)
}

// Archive uploads every artifact and returns the object keys written. It
// stops at the first failed upload.
func (a *Archiver) Archive(ctx context.Context, generatedAt time.Time, artifacts *reports.Artifacts) ([]string, error) {
	keys := make([]string, 0, 2)
	for _, p := range artifacts.Paths() {
		if p == "" {
			continue
		}
		key := ObjectKey(a.prefix, generatedAt, p)
		if err := a.upload(ctx, p, key); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}

	a.logger.Info().Strs("keys", keys).Msg("report artifacts archived")
	return keys, nil
}

func (a *Archiver) upload(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	a.logger.Debug().Str("key", key).Msg("uploaded artifact")
	return nil
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
