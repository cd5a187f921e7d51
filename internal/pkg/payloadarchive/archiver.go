package payloadarchive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

const uploadTimeout = 20 * time.Second

// Archiver mirrors raw webhook payloads to an S3 bucket so the append-only
// event table can be pruned of payload bodies without losing replay
// capability. Uploads run in the background and never block or fail webhook
// handling.
type Archiver struct {
	s3Client *s3.Client
	config   *Config
	log      *logrus.Entry
}

// NewArchiver creates an S3 payload archiver from the given config.
func NewArchiver(cfg *Config) (*Archiver, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("payload archive is disabled")
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible services want path-style URLs.
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	a := &Archiver{
		s3Client: s3Client,
		config:   cfg,
		log:      logrus.WithField("component", "payload-archive"),
	}

	if err := a.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	a.log.Infof("initialized payload archive for bucket %s", cfg.BucketName)
	return a, nil
}

// NewArchiverFromEnv builds an archiver from environment configuration.
// Returns (nil, nil) when archiving is disabled.
func NewArchiverFromEnv() (*Archiver, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.IsEnabled() {
		return nil, nil
	}
	return NewArchiver(cfg)
}

func (a *Archiver) testConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	_, err := a.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.config.BucketName),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", a.config.BucketName, err)
	}
	return nil
}

// ArchivePayload uploads the payload in the background. Failures are logged
// only; the durable copy in webhook_events remains the source of truth.
func (a *Archiver) ArchivePayload(provider, eventID string, payload []byte) {
	body := append([]byte(nil), payload...)
	key := a.config.ObjectKey(provider, eventID, time.Now())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()

		_, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.config.BucketName),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("application/json"),
			Metadata: map[string]string{
				"provider": provider,
				"event-id": eventID,
			},
		})
		if err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{
				"provider": provider,
				"event_id": eventID,
			}).Warn("payload archive upload failed")
			return
		}
		a.log.WithField("key", key).Debug("payload archived")
	}()
}
