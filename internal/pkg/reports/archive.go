package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shopspring/decimal"
)

// DailyReport summarizes one day of installment settlements.
type DailyReport struct {
	Date            string          `json:"date"`
	SettledCount    int             `json:"settled_count"`
	SettledTotal    decimal.Decimal `json:"settled_total"`
	FailedCount     int             `json:"failed_count"`
	FailedTotal     decimal.Decimal `json:"failed_total"`
	RetriesExceeded int             `json:"retries_exceeded"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// Config holds archive storage configuration (S3 or any S3-compatible store).
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Archive writes settlement reports to object storage.
type Archive struct {
	client *s3.Client
	bucket string
}

// NewArchive creates a report archive backed by S3.
func NewArchive(cfg Config) (*Archive, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
				SigningRegion:     cfg.Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true // required for MinIO-style endpoints
	})

	return &Archive{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads a daily report under reports/YYYY/MM/DD.json.
func (a *Archive) Put(ctx context.Context, report DailyReport) error {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	day, err := time.Parse("2006-01-02", report.Date)
	if err != nil {
		return fmt.Errorf("invalid report date %q: %w", report.Date, err)
	}
	key := day.Format("reports/2006/01/02") + ".json"

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload report: %w", err)
	}

	return nil
}
