package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "ibovflow/config"
	"ibovflow/logger"
)

// S3ObjectStore is the production ObjectStore backed by an S3 bucket.
type S3ObjectStore struct {
	client *s3.Client
	bucket string
	log    *logger.Log
}

// NewS3ObjectStore configures the AWS SDK and validates that credentials are
// available before any object is written.
func NewS3ObjectStore(ctx context.Context, cfg *appconfig.Config) (*S3ObjectStore, error) {
	log := logger.GetLogger()

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("s3_store").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, ErrNoCredentials
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	log.WithComponent("s3_store").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"endpoint":   cfg.Storage.S3.Endpoint,
		"path_style": cfg.Storage.S3.PathStyle,
	}).Info("s3 store initialized")

	return &S3ObjectStore{
		client: client,
		bucket: cfg.Storage.S3.Bucket,
		log:    log,
	}, nil
}

// Put uploads one object, overwriting any existing object at the same key.
func (s *S3ObjectStore) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	log := s.log.WithComponent("s3_store").WithFields(logger.Fields{
		"key":       key,
		"data_size": len(data),
		"operation": "put",
	})
	log.Debug("uploading object")

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata:    metadata,
	})
	if err != nil {
		log.WithError(err).WithEnv("S3_BUCKET").Error("failed to upload object")
		return fmt.Errorf("upload to bucket %s: %w", s.bucket, err)
	}

	log.WithFields(logger.Fields{"location": fmt.Sprintf("s3://%s/%s", s.bucket, key)}).Info("object uploaded")
	return nil
}

// Get downloads one object. Absent keys map to ErrNotFound so callers can
// distinguish "no data yet" from an unreachable store.
func (s *S3ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download from bucket %s: %w", s.bucket, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}
