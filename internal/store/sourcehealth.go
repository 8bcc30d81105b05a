package store

import (
	"context"
	"fmt"
	"time"
)

// UpsertSourceHealth persists url's current health snapshot for
// recordingID, overwriting any prior row for the same URL.
func (s *Store) UpsertSourceHealth(ctx context.Context, recordingID string, snapshot SourceHealthSnapshot) error {
	snapshot.RecordingID = recordingID
	snapshot.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(&snapshot).Error; err != nil {
		return fmt.Errorf("store: saving source health for %s: %w", snapshot.URL, err)
	}
	return nil
}

// SourceHealthFor returns every persisted health snapshot for recordingID.
func (s *Store) SourceHealthFor(ctx context.Context, recordingID string) ([]SourceHealthSnapshot, error) {
	var out []SourceHealthSnapshot
	if err := s.db.WithContext(ctx).Where("recording_id = ?", recordingID).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: fetching source health for %s: %w", recordingID, err)
	}
	return out, nil
}
