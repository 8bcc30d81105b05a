package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewRecording starts a Recording with a fresh UUID, ready for
// CreateRecording.
func NewRecording(sourceURL string, startedAt time.Time) Recording {
	return Recording{
		ID:        uuid.NewString(),
		SourceURL: sourceURL,
		StartedAt: startedAt,
	}
}

// CreateRecording persists a new recording row.
func (s *Store) CreateRecording(ctx context.Context, r *Recording) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("store: creating recording: %w", err)
	}
	return nil
}

// RecordingFinish carries the fields set once a recording terminates.
type RecordingFinish struct {
	EndedAt           time.Time
	TerminationReason string
	OutputFiles       []string
	TotalBytes        int64
	TotalDurationMs   int64
}

// FinishRecording updates a recording with its terminal state: end time,
// termination reason, output files, and totals.
func (s *Store) FinishRecording(ctx context.Context, id string, update RecordingFinish) error {
	res := s.db.WithContext(ctx).Model(&Recording{}).Where("id = ?", id).Updates(map[string]any{
		"ended_at":           update.EndedAt,
		"termination_reason": update.TerminationReason,
		"output_files":       StringList(update.OutputFiles),
		"total_bytes":        update.TotalBytes,
		"total_duration_ms":  update.TotalDurationMs,
	})
	if res.Error != nil {
		return fmt.Errorf("store: finishing recording %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("store: recording %s not found", id)
	}
	return nil
}

// GetRecording fetches a recording by id.
func (s *Store) GetRecording(ctx context.Context, id string) (*Recording, error) {
	var r Recording
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("store: recording %s not found", id)
		}
		return nil, fmt.Errorf("store: fetching recording %s: %w", id, err)
	}
	return &r, nil
}

// ListRecordings returns the most recent recordings, newest first, bounded
// by limit. limit <= 0 means no bound.
func (s *Store) ListRecordings(ctx context.Context, limit int) ([]Recording, error) {
	var out []Recording
	q := s.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: listing recordings: %w", err)
	}
	return out, nil
}
