// Package writer implements a generic, rotating output-file task: a
// FormatStrategy supplies the format-specific knowledge (how to open a
// file, write one item, and decide when to rotate), while Task owns the
// shared bookkeeping (current path, items/bytes written, sequence
// number) and the rotation contract itself.
package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// PostWriteAction is returned by FormatStrategy.AfterItemWritten to tell the
// task what to do once an item has been written.
type PostWriteAction int

const (
	// PostWriteNone takes no further action.
	PostWriteNone PostWriteAction = iota
	// PostWriteRotate closes the current file and immediately opens the
	// next one.
	PostWriteRotate
	// PostWriteClose closes the current file without opening a new one;
	// the next ProcessItem call opens a fresh file from scratch.
	PostWriteClose
)

// Config names the fixed, format-independent parts of the output layout.
type Config struct {
	// BasePath is the directory output files are written under.
	BasePath string
	// FileNameTemplate is the file name, with "%i" replaced by the
	// zero-origin sequence number.
	FileNameTemplate string
	// FileExtension is appended after a literal dot; no dot should be
	// included here.
	FileExtension string
}

// ExpandFilenameTemplate replaces "%i" in template with seq.
func ExpandFilenameTemplate(template string, seq uint32) string {
	return strings.ReplaceAll(template, "%i", strconv.FormatUint(uint64(seq), 10))
}

// filePath builds the conventional "<base>/<template-with-%i>.<ext>" path.
// Strategies that don't need a different naming scheme can use this
// directly from NextFilePath.
func filePath(cfg Config, seq uint32) string {
	name := ExpandFilenameTemplate(cfg.FileNameTemplate, seq)
	return filepath.Join(cfg.BasePath, name+"."+cfg.FileExtension)
}

// State is the mutable bookkeeping a strategy's rotation decision and path
// construction read from.
type State struct {
	CurrentFilePath          string
	HasCurrentFile           bool
	ItemsWrittenCurrentFile  int
	ItemsWrittenTotal        int
	BytesWrittenCurrentFile  int64
	BytesWrittenTotal        int64
	CurrentFileOpenedAt      time.Time
	FileSequenceNumber       uint32
}

func (s *State) resetForNewFile(path string, openedAt time.Time) {
	s.CurrentFilePath = path
	s.HasCurrentFile = true
	s.ItemsWrittenCurrentFile = 0
	s.BytesWrittenCurrentFile = 0
	s.CurrentFileOpenedAt = openedAt
}

// FormatStrategy supplies everything format-specific about writing a
// sequence of D items to rotating files. Implementations are not expected
// to be safe for concurrent use; Task serializes all calls.
type FormatStrategy[D any] interface {
	// CreateWriter opens path for writing, truncating any existing file.
	CreateWriter(path string) (io.WriteCloser, error)

	// WriteItem writes one item to w, returning the number of bytes
	// written.
	WriteItem(w io.Writer, item D) (int64, error)

	// ShouldRotateFile is consulted before every item is written (except
	// the very first, which always opens a file). Returning true rotates
	// before the item is written.
	ShouldRotateFile(cfg Config, state State) bool

	// NextFilePath constructs the path for the file about to be opened.
	NextFilePath(cfg Config, state State) string

	// OnFileOpen runs immediately after a new file is opened, before any
	// item is written to it; typically used to write a header. Returns
	// the number of bytes written.
	OnFileOpen(w io.Writer, path string, cfg Config, state State) (int64, error)

	// OnFileClose runs immediately before a file is closed; typically
	// used to write a footer or trailer. Returns the number of bytes
	// written.
	OnFileClose(w io.Writer, path string, cfg Config, state State) (int64, error)

	// AfterItemWritten runs after WriteItem succeeds, and may request
	// rotation or closure (e.g. an end-of-sequence marker item).
	AfterItemWritten(item D, bytesWritten int64, state State) (PostWriteAction, error)
}

// FileOpCallback is invoked when a file is opened or closed, named by path
// and the sequence number assigned to it.
type FileOpCallback func(path string, sequenceNumber uint32)

// Task drives one FormatStrategy through its lifetime: opening the initial
// file, rotating on demand, and closing cleanly at the end.
type Task[D any] struct {
	cfg      Config
	state    State
	strategy FormatStrategy[D]
	writer   io.WriteCloser

	onFileOpen  FileOpCallback
	onFileClose FileOpCallback
}

// NewTask constructs a writer task. BasePath is created (including parents)
// immediately so a misconfigured path fails fast rather than on first
// write.
func NewTask[D any](cfg Config, strategy FormatStrategy[D]) (*Task[D], error) {
	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("writer: creating base path %s: %w", cfg.BasePath, err)
	}
	return &Task[D]{cfg: cfg, strategy: strategy}, nil
}

// SetOnFileOpen registers a callback invoked after a file is opened (after
// the strategy's own OnFileOpen hook has run).
func (t *Task[D]) SetOnFileOpen(cb FileOpCallback) { t.onFileOpen = cb }

// SetOnFileClose registers a callback invoked after a file is closed (after
// the strategy's own OnFileClose hook has run).
func (t *Task[D]) SetOnFileClose(cb FileOpCallback) { t.onFileClose = cb }

// State returns a snapshot of the task's current bookkeeping.
func (t *Task[D]) State() State { return t.state }

// CurrentFilePath returns the path of the file currently open, or "" if
// none is open.
func (t *Task[D]) CurrentFilePath() string {
	if !t.state.HasCurrentFile {
		return ""
	}
	return t.state.CurrentFilePath
}

// ProcessItem writes one item, opening the initial file or rotating first
// as needed, and honours any PostWriteAction the strategy returns.
func (t *Task[D]) ProcessItem(item D) error {
	if err := t.ensureWriterOpen(); err != nil {
		return err
	}

	n, err := t.strategy.WriteItem(t.writer, item)
	if err != nil {
		return fmt.Errorf("writer: writing item to %s: %w", t.state.CurrentFilePath, err)
	}
	t.state.ItemsWrittenCurrentFile++
	t.state.ItemsWrittenTotal++
	t.state.BytesWrittenCurrentFile += n
	t.state.BytesWrittenTotal += n

	action, err := t.strategy.AfterItemWritten(item, n, t.state)
	if err != nil {
		return fmt.Errorf("writer: after-item hook for %s: %w", t.state.CurrentFilePath, err)
	}
	switch action {
	case PostWriteRotate:
		return t.rotate()
	case PostWriteClose:
		return t.Close()
	default:
		return nil
	}
}

// Flush flushes the underlying writer if it implements an explicit Flush
// method (the FLV strategy's buffered file does, and also flushes when it
// is closed); for any other writer this is a no-op.
func (t *Task[D]) Flush() error {
	if f, ok := t.writer.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close closes the current file, if one is open, running the strategy's
// OnFileClose hook first. A subsequent ProcessItem opens a fresh file.
func (t *Task[D]) Close() error {
	if t.writer == nil {
		return nil
	}
	return t.closeCurrent()
}

func (t *Task[D]) ensureWriterOpen() error {
	if t.writer == nil {
		return t.openInitial()
	}
	if t.strategy.ShouldRotateFile(t.cfg, t.state) {
		return t.rotate()
	}
	return nil
}

func (t *Task[D]) openInitial() error {
	path := t.strategy.NextFilePath(t.cfg, t.state)
	return t.openAt(path)
}

func (t *Task[D]) rotate() error {
	if t.writer != nil {
		if err := t.closeCurrent(); err != nil {
			return err
		}
	}
	t.state.FileSequenceNumber++
	path := t.strategy.NextFilePath(t.cfg, t.state)
	return t.openAt(path)
}

func (t *Task[D]) openAt(path string) error {
	if parent := filepath.Dir(path); parent != "." {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("writer: creating directory for %s: %w", path, err)
		}
	}

	w, err := t.strategy.CreateWriter(path)
	if err != nil {
		return fmt.Errorf("writer: opening %s: %w", path, err)
	}
	t.state.resetForNewFile(path, time.Now())

	n, err := t.strategy.OnFileOpen(w, path, t.cfg, t.state)
	if err != nil {
		w.Close()
		return fmt.Errorf("writer: on-open hook for %s: %w", path, err)
	}
	t.state.BytesWrittenCurrentFile += n
	t.state.BytesWrittenTotal += n

	t.writer = w
	if t.onFileOpen != nil {
		t.onFileOpen(path, t.state.FileSequenceNumber)
	}
	return nil
}

func (t *Task[D]) closeCurrent() error {
	path := t.state.CurrentFilePath
	w := t.writer
	t.writer = nil

	n, err := t.strategy.OnFileClose(w, path, t.cfg, t.state)
	if err != nil {
		w.Close()
		return fmt.Errorf("writer: on-close hook for %s: %w", path, err)
	}
	t.state.BytesWrittenCurrentFile += n
	t.state.BytesWrittenTotal += n

	if err := w.Close(); err != nil {
		return fmt.Errorf("writer: closing %s: %w", path, err)
	}
	t.state.HasCurrentFile = false

	if t.onFileClose != nil {
		t.onFileClose(path, t.state.FileSequenceNumber)
	}
	return nil
}
