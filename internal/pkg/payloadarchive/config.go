package payloadarchive

import (
	"errors"
	"fmt"
	"time"

	"github.com/resumeforge/ResumeForge/internal/pkg/env"
)

// Config holds S3 payload archive configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads archive configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("PAYLOAD_ARCHIVE_ENABLED", "false") == "true",
	}

	// Validate required fields if the archive is enabled
	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the payload archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the payload archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the payload archive is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if the payload archive is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey generates the S3 object key for an archived webhook payload.
// Format: webhooks/<provider>/YYYY/MM/<event_id>.json
func (c *Config) ObjectKey(provider, eventID string, receivedAt time.Time) string {
	return fmt.Sprintf("webhooks/%s/%04d/%02d/%s.json", provider, receivedAt.Year(), int(receivedAt.Month()), eventID)
}
