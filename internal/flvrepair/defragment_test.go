package flvrepair

import (
	"testing"

	"github.com/jmylchreest/streamvault/internal/flv"
	"github.com/stretchr/testify/require"
)

func TestDefragmentBuffersUntilThreshold(t *testing.T) {
	d := NewDefragment(3)
	var out []Data
	emit := func(item Data) error { out = append(out, item); return nil }

	require.NoError(t, d.Process(flv.NewHeaderData(flv.Header{}), emit))
	require.Empty(t, out)

	require.NoError(t, d.Process(avTag(flv.TagTypeVideo, 10, false), emit))
	require.Empty(t, out)
	require.NoError(t, d.Process(avTag(flv.TagTypeVideo, 20, false), emit))
	require.Empty(t, out)
	require.NoError(t, d.Process(avTag(flv.TagTypeVideo, 30, false), emit))
	require.Len(t, out, 4) // header + 3 tags flushed together

	require.NoError(t, d.Process(avTag(flv.TagTypeVideo, 40, false), emit))
	require.Len(t, out, 5) // forwarded directly once started
}

func TestDefragmentFlushesRemainderOnFinish(t *testing.T) {
	d := NewDefragment(10)
	var out []Data
	emit := func(item Data) error { out = append(out, item); return nil }
	require.NoError(t, d.Process(avTag(flv.TagTypeVideo, 10, false), emit))
	require.Empty(t, out)
	require.NoError(t, d.Finish(emit))
	require.Len(t, out, 1)
}
