package writer

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jmylchreest/streamvault/internal/hls/model"
)

// HLSRawConfig tunes HLSRawStrategy's size/duration rotation bounds, mirroring
// FLVConfig's for the TS/fMP4 output path.
type HLSRawConfig struct {
	MaxSizeBytes int64
	MaxDuration  time.Duration
}

// HLSRawStrategy writes model.Data segment bytes back to back into one raw
// output file per segment run: TS segments concatenate directly (the
// format tolerates concatenated transport streams), and fMP4 init/media
// segments likewise concatenate into a single playable file once a init
// segment has opened it. Rotation is driven by the configured size/duration
// bounds or by a model.Data EndMarker from the HLS repair chain's
// SegmentSplit stage, which is exactly where a genuine format or program
// change has already been detected upstream.
type HLSRawStrategy struct {
	cfg HLSRawConfig
}

// NewHLSRawStrategy constructs a strategy writing concatenated segment
// bytes under cfg's rotation bounds.
func NewHLSRawStrategy(cfg HLSRawConfig) *HLSRawStrategy {
	return &HLSRawStrategy{cfg: cfg}
}

// CreateWriter opens path for writing, truncating any existing content.
func (s *HLSRawStrategy) CreateWriter(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

// WriteItem appends the segment's bytes verbatim; an end marker carries no
// bytes and writes nothing.
func (s *HLSRawStrategy) WriteItem(w io.Writer, item model.Data) (int64, error) {
	if item.Kind == model.SegmentTypeEndMarker || len(item.Bytes) == 0 {
		return 0, nil
	}
	n, err := w.Write(item.Bytes)
	if err != nil {
		return int64(n), fmt.Errorf("writing segment bytes: %w", err)
	}
	return int64(n), nil
}

// OnFileOpen writes nothing; the output format needs no file-level header
// beyond the concatenated segment bytes themselves.
func (s *HLSRawStrategy) OnFileOpen(w io.Writer, path string, cfg Config, state State) (int64, error) {
	return 0, nil
}

// OnFileClose writes nothing; there is no trailer to emit.
func (s *HLSRawStrategy) OnFileClose(w io.Writer, path string, cfg Config, state State) (int64, error) {
	return 0, nil
}

// ShouldRotateFile reports true once either configured bound is exceeded.
func (s *HLSRawStrategy) ShouldRotateFile(cfg Config, state State) bool {
	if s.cfg.MaxSizeBytes > 0 && state.BytesWrittenCurrentFile >= s.cfg.MaxSizeBytes {
		return true
	}
	if s.cfg.MaxDuration > 0 && !state.CurrentFileOpenedAt.IsZero() {
		if time.Since(state.CurrentFileOpenedAt) >= s.cfg.MaxDuration {
			return true
		}
	}
	return false
}

// NextFilePath expands the configured template with the current sequence
// number.
func (s *HLSRawStrategy) NextFilePath(cfg Config, state State) string {
	return filePath(cfg, state.FileSequenceNumber)
}

// AfterItemWritten rotates on an EndMarker, the signal the SegmentSplit
// repair stage emits at a detected program/codec/resolution change.
func (s *HLSRawStrategy) AfterItemWritten(item model.Data, bytesWritten int64, state State) (PostWriteAction, error) {
	if item.Kind == model.SegmentTypeEndMarker {
		return PostWriteRotate, nil
	}
	return PostWriteNone, nil
}

var _ FormatStrategy[model.Data] = (*HLSRawStrategy)(nil)
