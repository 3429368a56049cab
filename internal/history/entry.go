package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the serialized form of Entry.Timestamp, in local time.
const TimestampLayout = "2006-01-02 15:04:05"

// Status values recorded for each unit reached by a batch.
const (
	StatusSuccess         = "success"
	StatusSkipped         = "skipped (output exists)"
	StatusCancelled       = "cancelled by user"
	StatusExecutorMissing = "failed: ffmpeg not found"
	statusFailedPrefix    = "failed: "
)

// Failed formats the status of a unit whose conversion failed.
func Failed(detail string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = "unknown error"
	}
	return statusFailedPrefix + detail
}

// IsFailure reports whether status records a failed conversion.
func IsFailure(status string) bool {
	return strings.HasPrefix(status, statusFailedPrefix)
}

// Entry records the outcome of one unit.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	InputPath  string    `json:"input"`
	OutputPath string    `json:"output"`
	Status     string    `json:"status"`
	BatchID    string    `json:"batch_id,omitempty"`
}

type entryJSON struct {
	Timestamp  string `json:"timestamp"`
	InputPath  string `json:"input"`
	OutputPath string `json:"output"`
	Status     string `json:"status"`
	BatchID    string `json:"batch_id,omitempty"`
}

// FormatTimestamp renders ts with TimestampLayout in local time.
func FormatTimestamp(ts time.Time) string {
	return ts.Local().Format(TimestampLayout)
}

// ParseTimestamp accepts TimestampLayout (local time) or RFC 3339.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if ts, err := time.ParseInLocation(TimestampLayout, value, time.Local); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return ts, nil
}

// MarshalJSON writes the timestamp in TimestampLayout.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Timestamp:  FormatTimestamp(e.Timestamp),
		InputPath:  e.InputPath,
		OutputPath: e.OutputPath,
		Status:     e.Status,
		BatchID:    e.BatchID,
	})
}

// UnmarshalJSON reads an entry written by MarshalJSON.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return err
	}
	*e = Entry{
		Timestamp:  ts,
		InputPath:  raw.InputPath,
		OutputPath: raw.OutputPath,
		Status:     raw.Status,
		BatchID:    raw.BatchID,
	}
	return nil
}
