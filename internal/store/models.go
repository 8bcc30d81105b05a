package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Recording is one end-to-end capture run of a single source, from start to
// termination, persisted once it finishes so it survives process restarts.
type Recording struct {
	ID                string `gorm:"primaryKey"`
	SourceURL         string
	StartedAt         time.Time
	EndedAt           *time.Time
	TerminationReason string
	OutputFiles       StringList
	TotalBytes        int64
	TotalDurationMs   int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SourceHealthSnapshot persists one source's health state at a point in
// time, so a source manager's score does not reset to a blank slate every
// time the process restarts.
type SourceHealthSnapshot struct {
	URL             string `gorm:"primaryKey"`
	RecordingID     string `gorm:"index"`
	Successes       uint32
	Failures        uint32
	AvgResponseTime time.Duration
	Score           uint8
	Active          bool
	UpdatedAt       time.Time
}

// StringList persists a []string as a JSON array in a single text column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("store: encoding string list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("store: unsupported type for StringList: %T", value)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("store: decoding string list: %w", err)
	}
	*l = out
	return nil
}
