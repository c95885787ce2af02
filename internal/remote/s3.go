package remote

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/config"
	"github.com/watchtowerhq/watchtower/internal/model"
)

// S3Store uploads snapshots to an S3-compatible bucket (S3, R2, MinIO).
// Each snapshot is one msgpack object keyed by date and snapshot ID, so a
// failed upload never corrupts earlier history.
type S3Store struct {
	client  *s3.Client
	bucket  string
	prefix  string
	timeout time.Duration
	log     zerolog.Logger
}

// NewS3Store creates a remote store from the remote configuration.
func NewS3Store(ctx context.Context, cfg config.RemoteConfig, log zerolog.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load remote store credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		timeout: cfg.Timeout,
		log:     log.With().Str("component", "remote_store").Logger(),
	}, nil
}

// PutSnapshot uploads one snapshot, bounded by the configured timeout.
func (s *S3Store) PutSnapshot(ctx context.Context, snap model.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := s.objectKey(snap)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/msgpack"),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("snapshot upload failed")
		return fmt.Errorf("%w: %s", apperrors.ErrRemoteStoreUnavailable, err)
	}

	s.log.Debug().Str("key", key).Msg("snapshot uploaded")
	return nil
}

// objectKey builds keys like snapshots/2026/08/23/<id>.msgpack so listing a
// day is a single prefix scan.
func (s *S3Store) objectKey(snap model.Snapshot) string {
	return fmt.Sprintf("%s/%s/%s.msgpack",
		s.prefix,
		snap.Timestamp.UTC().Format("2006/01/02"),
		snap.ID,
	)
}
