package playlist

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	bodies []string
	calls  int
}

func (f *fakeFetcher) FetchPlaylist(ctx context.Context, playlistURL string) ([]byte, error) {
	idx := f.calls
	if idx >= len(f.bodies) {
		idx = len(f.bodies) - 1
	}
	f.calls++
	return []byte(f.bodies[idx]), nil
}

func TestEnginePollEmitsOnlyNewSegments(t *testing.T) {
	first := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-TARGETDURATION:2",
		"#EXT-X-MEDIA-SEQUENCE:0",
		"#EXTINF:2.0,",
		"seg0.ts",
		"#EXTINF:2.0,",
		"seg1.ts",
	}, "\n")
	second := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-TARGETDURATION:2",
		"#EXT-X-MEDIA-SEQUENCE:1",
		"#EXTINF:2.0,",
		"seg1.ts",
		"#EXTINF:2.0,",
		"seg2.ts",
	}, "\n")

	fetcher := &fakeFetcher{bodies: []string{first, second}}
	e := NewEngine(fetcher, DefaultEngineConfig(), nil)

	jobs, unchanged, err := e.Poll(context.Background(), "https://x/playlist.m3u8")
	require.NoError(t, err)
	require.False(t, unchanged)
	require.Len(t, jobs, 2)

	jobs, unchanged, err = e.Poll(context.Background(), "https://x/playlist.m3u8")
	require.NoError(t, err)
	require.False(t, unchanged)
	require.Len(t, jobs, 1)
	require.Equal(t, "https://x/seg2.ts", jobs[0].URI)
}

func TestEnginePollSkipsParsingWhenBodyUnchanged(t *testing.T) {
	body := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-TARGETDURATION:2",
		"#EXT-X-MEDIA-SEQUENCE:0",
		"#EXTINF:2.0,",
		"seg0.ts",
	}, "\n")

	fetcher := &fakeFetcher{bodies: []string{body, body}}
	e := NewEngine(fetcher, DefaultEngineConfig(), nil)

	_, unchanged, err := e.Poll(context.Background(), "https://x/playlist.m3u8")
	require.NoError(t, err)
	require.False(t, unchanged)

	_, unchanged, err = e.Poll(context.Background(), "https://x/playlist.m3u8")
	require.NoError(t, err)
	require.True(t, unchanged)
}

func TestEngineRunStopsAtEndList(t *testing.T) {
	body := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-TARGETDURATION:2",
		"#EXT-X-MEDIA-SEQUENCE:0",
		"#EXTINF:2.0,",
		"seg0.ts",
		"#EXT-X-ENDLIST",
	}, "\n")

	fetcher := &fakeFetcher{bodies: []string{body}}
	cfg := DefaultEngineConfig()
	e := NewEngine(fetcher, cfg, nil)

	var jobs []ScheduledSegmentJob
	err := e.Run(context.Background(), "https://x/playlist.m3u8", func(j ScheduledSegmentJob) error {
		jobs = append(jobs, j)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}
