package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ignite/lead-intelligence/internal/scoring"
)

// LocalStore writes snapshots to the local filesystem, mirroring the S3
// key layout under a base directory.
type LocalStore struct {
	basePath string
	now      func() time.Time
}

// NewLocalStore creates a filesystem-backed snapshot store.
func NewLocalStore(basePath string) *LocalStore {
	if basePath == "" {
		basePath = "data/insights"
	}
	return &LocalStore{basePath: basePath, now: time.Now}
}

// SaveInsights writes an insight report to disk and returns its key.
func (l *LocalStore) SaveInsights(ctx context.Context, insights *scoring.LeadInsights) (string, error) {
	key := insightsKey(insights.LocationID, l.now())

	data, err := json.MarshalIndent(insights, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling insights: %w", err)
	}
	if err := l.write(key, data); err != nil {
		return "", err
	}
	return key, nil
}

// GetInsights reads a previously saved insight report.
func (l *LocalStore) GetInsights(ctx context.Context, key string) (*scoring.LeadInsights, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", key, err)
	}

	var insights scoring.LeadInsights
	if err := json.Unmarshal(data, &insights); err != nil {
		return nil, fmt.Errorf("unmarshaling insights: %w", err)
	}
	return &insights, nil
}

// SaveExport writes an encoded score batch to disk and returns its key.
func (l *LocalStore) SaveExport(ctx context.Context, locationID, encodedText string) (string, error) {
	key := exportKey(locationID, l.now())
	if err := l.write(key, []byte(encodedText)); err != nil {
		return "", err
	}
	return key, nil
}

func (l *LocalStore) write(key string, data []byte) error {
	fullPath := filepath.Join(l.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", key, err)
	}
	return nil
}
