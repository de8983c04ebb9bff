// Package storage archives insight reports and score exports so they
// can be reviewed after the fact. Snapshots go to S3 in production and
// to the local filesystem in development.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/lead-intelligence/internal/config"
	"github.com/ignite/lead-intelligence/internal/scoring"
)

// SnapshotStore persists insight reports and exported score batches.
type SnapshotStore interface {
	SaveInsights(ctx context.Context, insights *scoring.LeadInsights) (string, error)
	GetInsights(ctx context.Context, key string) (*scoring.LeadInsights, error)
	SaveExport(ctx context.Context, locationID, encodedText string) (string, error)
}

// New creates the snapshot store selected by config.
func New(ctx context.Context, cfg config.StorageConfig) (SnapshotStore, error) {
	switch cfg.Type {
	case "aws":
		return NewS3Store(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.AWSRegion, cfg.AWSProfile)
	case "local", "":
		return NewLocalStore(cfg.LocalPath), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func insightsKey(locationID string, now time.Time) string {
	return fmt.Sprintf("insights/%s/%s/%s.json",
		locationID,
		now.UTC().Format("2006/01/02"),
		now.UTC().Format("15-04-05"))
}

func exportKey(locationID string, now time.Time) string {
	return fmt.Sprintf("exports/%s/%s/%s.toon",
		locationID,
		now.UTC().Format("2006/01/02"),
		now.UTC().Format("15-04-05"))
}
