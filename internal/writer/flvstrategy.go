package writer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jmylchreest/streamvault/internal/flv"
)

// FLVConfig tunes FLVStrategy's rotation policy. A zero value disables the
// corresponding check.
type FLVConfig struct {
	MaxSizeBytes  int64
	MaxDuration   time.Duration
	HasAudio      bool
	HasVideo      bool
}

// FLVStrategy writes flv.Data items (header, tag, or end-of-sequence
// marker) as a standard FLV file, one file per output segment. Rotation is
// driven by either the configured size/duration bounds or an explicit
// flv.EndOfSequence item via AfterItemWritten requesting a close-and-open.
type FLVStrategy struct {
	cfg     FLVConfig
	encoder *flv.Encoder
}

// NewFLVStrategy constructs a strategy writing FLV output under cfg's
// rotation bounds.
func NewFLVStrategy(cfg FLVConfig) *FLVStrategy {
	return &FLVStrategy{cfg: cfg}
}

type bufferedFile struct {
	f *os.File
	w *bufio.Writer
}

func (b *bufferedFile) Write(p []byte) (int, error) { return b.w.Write(p) }

func (b *bufferedFile) Flush() error { return b.w.Flush() }

func (b *bufferedFile) Close() error {
	if err := b.w.Flush(); err != nil {
		b.f.Close()
		return err
	}
	return b.f.Close()
}

// CreateWriter opens path for writing, truncating any existing content.
func (s *FLVStrategy) CreateWriter(path string) (io.WriteCloser, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &bufferedFile{f: f, w: bufio.NewWriter(f)}, nil
}

// OnFileOpen writes the FLV file header and resets the per-file encoder
// state; the 9-byte header plus the initial 4-byte zero previous-tag-size
// are the 13 bytes reported back as written.
func (s *FLVStrategy) OnFileOpen(w io.Writer, path string, cfg Config, state State) (int64, error) {
	s.encoder = flv.NewEncoder(w)
	if err := s.encoder.WriteHeader(flv.Header{HasAudio: s.cfg.HasAudio, HasVideo: s.cfg.HasVideo}); err != nil {
		return 0, fmt.Errorf("writing flv header: %w", err)
	}
	return 13, nil
}

// WriteItem writes one flv.Data item. Header items are ignored (OnFileOpen
// already wrote the file's header); end-of-sequence markers write nothing,
// leaving rotation to AfterItemWritten.
func (s *FLVStrategy) WriteItem(w io.Writer, item flv.Data) (int64, error) {
	switch item.Kind {
	case flv.DataKindTag:
		if err := s.encoder.WriteTag(item.Tag); err != nil {
			return 0, fmt.Errorf("writing flv tag: %w", err)
		}
		// 4-byte previous-tag-size preamble + 11-byte tag header + data.
		return int64(4 + 11 + len(item.Tag.Data)), nil
	default:
		return 0, nil
	}
}

// OnFileClose writes the trailing 4-byte previous-tag-size for the file's
// last tag.
func (s *FLVStrategy) OnFileClose(w io.Writer, path string, cfg Config, state State) (int64, error) {
	if err := s.encoder.Finish(); err != nil {
		return 0, fmt.Errorf("finishing flv file: %w", err)
	}
	return 4, nil
}

// ShouldRotateFile reports true once either configured bound is exceeded.
func (s *FLVStrategy) ShouldRotateFile(cfg Config, state State) bool {
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
func (s *FLVStrategy) NextFilePath(cfg Config, state State) string {
	return filePath(cfg, state.FileSequenceNumber)
}

// AfterItemWritten rotates immediately on an explicit end-of-sequence
// marker, so the repair chain's split points map directly onto file
// boundaries.
func (s *FLVStrategy) AfterItemWritten(item flv.Data, bytesWritten int64, state State) (PostWriteAction, error) {
	if item.Kind == flv.DataKindEndOfSequence {
		return PostWriteRotate, nil
	}
	return PostWriteNone, nil
}

var _ FormatStrategy[flv.Data] = (*FLVStrategy)(nil)
