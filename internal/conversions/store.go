// Package conversions reads historical lead conversions from the
// Snowflake warehouse for pattern analysis and insight reports.
package conversions

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver

	"github.com/ignite/lead-intelligence/internal/scoring"
)

// Config holds Snowflake connection settings.
type Config struct {
	User      string
	Password  string
	Account   string
	Database  string
	Schema    string
	Warehouse string
}

// Store reads conversion history from Snowflake.
type Store struct {
	db *sql.DB
}

// NewStore opens a Snowflake connection from config.
func NewStore(cfg Config) (*Store, error) {
	// DSN format: user:password@account/database/schema?warehouse=xxx
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s",
		cfg.User, cfg.Password, cfg.Account, cfg.Database, cfg.Schema)
	if cfg.Warehouse != "" {
		dsn += "?warehouse=" + cfg.Warehouse
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening snowflake connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection (useful for testing).
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping tests the warehouse connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetConversions returns conversion records for a location within the
// given range, oldest first.
func (s *Store) GetConversions(ctx context.Context, locationID string, rng scoring.DateRange) ([]scoring.ConversionRecord, error) {
	query := `SELECT contact_id, location_id, days_to_conversion,
		email_opens, email_clicks, page_views, form_fills, appointments_completed,
		tags, source, deal_value, converted_at
	FROM lead_conversions
	WHERE location_id = ? AND converted_at BETWEEN ? AND ?
	ORDER BY converted_at`

	rows, err := s.db.QueryContext(ctx, query, locationID, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("querying conversions: %w", err)
	}
	defer rows.Close()

	var records []scoring.ConversionRecord
	for rows.Next() {
		var rec scoring.ConversionRecord
		var tags sql.NullString
		var source sql.NullString
		if err := rows.Scan(
			&rec.ContactID, &rec.LocationID, &rec.DaysToConversion,
			&rec.EmailOpens, &rec.EmailClicks, &rec.PageViews, &rec.FormFills,
			&rec.AppointmentsCompleted, &tags, &source, &rec.DealValue, &rec.ConvertedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning conversion row: %w", err)
		}
		if tags.Valid && tags.String != "" {
			rec.Tags = splitTags(tags.String)
		}
		if source.Valid {
			rec.Source = source.String
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversion rows: %w", err)
	}
	return records, nil
}

// splitTags parses the comma-separated tag column.
func splitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := strings.TrimSpace(p); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
