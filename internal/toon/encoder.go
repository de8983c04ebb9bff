// Package toon implements a compact row-oriented text encoding for flat
// records. Batches serialized this way are handed to language models in
// place of JSON, cutting prompt size roughly in half for tabular data.
package toon

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Options controls the encoding output.
type Options struct {
	// Delimiter separates fields within a row. Defaults to "|".
	Delimiter string
	// LengthMarker prepends a "#N" line carrying the record count so the
	// consumer can validate it received the full batch.
	LengthMarker bool
	// Fields fixes the column order. When empty, the sorted union of all
	// record keys is used.
	Fields []string
}

// SizeMetrics reports the size reduction achieved by the encoding,
// compared against the JSON form of the same records.
type SizeMetrics struct {
	OriginalBytes        int     `json:"original_bytes"`
	EncodedBytes         int     `json:"encoded_bytes"`
	BytesSaved           int     `json:"bytes_saved"`
	PercentSaved         float64 `json:"percent_saved"`
	EstimatedTokensSaved int     `json:"estimated_tokens_saved"`
}

// Result is the outcome of one Encode call.
type Result struct {
	EncodedText string      `json:"encoded_text"`
	SizeMetrics SizeMetrics `json:"size_metrics"`
}

// Encode serializes records into the compact text form: an optional length
// marker, a header row naming the fields, and one delimited row per record.
// The encoding is lossless for flat records; values containing the
// delimiter or newlines are quoted.
func Encode(records []map[string]interface{}, opts Options) (*Result, error) {
	delim := opts.Delimiter
	if delim == "" {
		delim = "|"
	}
	if len(delim) != 1 {
		return nil, fmt.Errorf("delimiter must be a single character, got %q", delim)
	}

	fields := opts.Fields
	if len(fields) == 0 {
		fields = collectFields(records)
	}

	var sb strings.Builder
	if opts.LengthMarker {
		sb.WriteString("#")
		sb.WriteString(strconv.Itoa(len(records)))
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Join(fields, delim))
	sb.WriteString("\n")

	for _, rec := range records {
		for i, f := range fields {
			if i > 0 {
				sb.WriteString(delim)
			}
			val, err := formatValue(rec[f], delim)
			if err != nil {
				return nil, fmt.Errorf("encoding field %q: %w", f, err)
			}
			sb.WriteString(val)
		}
		sb.WriteString("\n")
	}

	encoded := sb.String()

	jsonForm, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("measuring original size: %w", err)
	}

	metrics := SizeMetrics{
		OriginalBytes: len(jsonForm),
		EncodedBytes:  len(encoded),
	}
	if metrics.OriginalBytes > metrics.EncodedBytes {
		metrics.BytesSaved = metrics.OriginalBytes - metrics.EncodedBytes
	}
	if metrics.OriginalBytes > 0 {
		metrics.PercentSaved = math.Round(float64(metrics.BytesSaved)/float64(metrics.OriginalBytes)*10000) / 100
	}
	metrics.EstimatedTokensSaved = metrics.BytesSaved / 4

	return &Result{EncodedText: encoded, SizeMetrics: metrics}, nil
}

func collectFields(records []map[string]interface{}) []string {
	seen := make(map[string]bool)
	for _, rec := range records {
		for k := range rec {
			seen[k] = true
		}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

func formatValue(v interface{}, delim string) (string, error) {
	var s string
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		s = val
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10), nil
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case []string:
		s = strings.Join(val, ",")
	default:
		// Nested values fall back to their JSON form
		data, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		s = string(data)
	}

	if strings.Contains(s, delim) || strings.ContainsAny(s, "\n\"") {
		return strconv.Quote(s), nil
	}
	return s, nil
}
