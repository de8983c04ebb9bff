package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/lead-intelligence/internal/scoring"
)

// s3API is the slice of the S3 client the store uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store writes snapshots to an S3 bucket.
type S3Store struct {
	client s3API
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Store creates an S3-backed snapshot store using the default AWS
// credential chain.
func NewS3Store(ctx context.Context, bucket, prefix, region, profile string) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}, nil
}

// SaveInsights writes an insight report to S3 and returns its key.
func (s *S3Store) SaveInsights(ctx context.Context, insights *scoring.LeadInsights) (string, error) {
	key := s.withPrefix(insightsKey(insights.LocationID, s.now()))

	data, err := json.MarshalIndent(insights, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling insights: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("putting insights to S3: %w", err)
	}
	return key, nil
}

// GetInsights reads a previously saved insight report.
func (s *S3Store) GetInsights(ctx context.Context, key string) (*scoring.LeadInsights, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting insights from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}

	var insights scoring.LeadInsights
	if err := json.Unmarshal(data, &insights); err != nil {
		return nil, fmt.Errorf("unmarshaling insights: %w", err)
	}
	return &insights, nil
}

// SaveExport writes an encoded score batch to S3 and returns its key.
func (s *S3Store) SaveExport(ctx context.Context, locationID, encodedText string) (string, error) {
	key := s.withPrefix(exportKey(locationID, s.now()))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(encodedText)),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return "", fmt.Errorf("putting export to S3: %w", err)
	}
	return key, nil
}

func (s *S3Store) withPrefix(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}
