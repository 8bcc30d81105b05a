package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(Config{Driver: "sqlite", DSN: dsn, LogLevel: "silent"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenSQLiteAndPing(t *testing.T) {
	s := newTestStore(t)
	require.Equal(t, "sqlite", s.Driver())
	require.NoError(t, s.Ping(context.Background()))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "bogus"}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	stats, err := s.Stats()
	require.NoError(t, err)
	require.Contains(t, stats, "open_connections")
}

func TestRecordingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := NewRecording("https://example.com/stream.flv", time.Now())
	require.NoError(t, s.CreateRecording(ctx, &r))

	got, err := s.GetRecording(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, r.SourceURL, got.SourceURL)
	require.Nil(t, got.EndedAt)

	err = s.FinishRecording(ctx, r.ID, RecordingFinish{
		EndedAt:           time.Now(),
		TerminationReason: "stream ended",
		OutputFiles:       []string{"out_0.flv", "out_1.flv"},
		TotalBytes:        12345,
		TotalDurationMs:   60000,
	})
	require.NoError(t, err)

	got, err = s.GetRecording(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	require.Equal(t, "stream ended", got.TerminationReason)
	require.Equal(t, StringList{"out_0.flv", "out_1.flv"}, got.OutputFiles)
	require.Equal(t, int64(12345), got.TotalBytes)
}

func TestFinishRecordingUnknownIDFails(t *testing.T) {
	s := newTestStore(t)
	err := s.FinishRecording(context.Background(), "missing", RecordingFinish{})
	require.Error(t, err)
}

func TestListRecordingsOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := NewRecording("https://example.com/a.flv", time.Now().Add(-time.Hour))
	newer := NewRecording("https://example.com/b.flv", time.Now())
	require.NoError(t, s.CreateRecording(ctx, &older))
	require.NoError(t, s.CreateRecording(ctx, &newer))

	list, err := s.ListRecordings(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID)
	require.Equal(t, older.ID, list[1].ID)
}

func TestSourceHealthUpsertAndFetch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := NewRecording("https://example.com/stream.flv", time.Now())
	require.NoError(t, s.CreateRecording(ctx, &r))

	require.NoError(t, s.UpsertSourceHealth(ctx, r.ID, SourceHealthSnapshot{
		URL:             "https://mirror-a.example.com",
		Successes:       10,
		Failures:        1,
		AvgResponseTime: 120 * time.Millisecond,
		Score:           88,
		Active:          true,
	}))

	snapshots, err := s.SourceHealthFor(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, uint8(88), snapshots[0].Score)

	// A second upsert for the same URL overwrites rather than duplicates.
	require.NoError(t, s.UpsertSourceHealth(ctx, r.ID, SourceHealthSnapshot{
		URL:       "https://mirror-a.example.com",
		Successes: 11,
		Score:     90,
		Active:    true,
	}))
	snapshots, err = s.SourceHealthFor(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, uint8(90), snapshots[0].Score)
}
