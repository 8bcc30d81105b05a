package scriptmod

import (
	"fmt"
	"os"
)

// shiftChunkSize bounds how much of the trailing file content shift.go reads
// into memory at once when relocating bytes around a resized tag.
const shiftChunkSize = 64 * 1024

// shiftForward relocates [start, end) of f forward by delta bytes, growing
// the file by delta. Chunks are copied from the end of the range backward
// so that a chunk is always written to a region not yet read, even when
// source and destination overlap.
func shiftForward(f *os.File, start, end, delta int64) error {
	buf := make([]byte, shiftChunkSize)
	pos := end
	for pos > start {
		n := int64(shiftChunkSize)
		if n > pos-start {
			n = pos - start
		}
		readStart := pos - n
		if _, err := f.ReadAt(buf[:n], readStart); err != nil {
			return fmt.Errorf("scriptmod: reading chunk at %d: %w", readStart, err)
		}
		if _, err := f.WriteAt(buf[:n], readStart+delta); err != nil {
			return fmt.Errorf("scriptmod: writing chunk at %d: %w", readStart+delta, err)
		}
		pos = readStart
	}
	return nil
}

// shiftBackward relocates [start, end) of f to begin at dstStart (< start),
// copying forward since the destination always trails the source read
// cursor by the constant distance start-dstStart.
func shiftBackward(f *os.File, start, dstStart, end int64) error {
	delta := start - dstStart
	buf := make([]byte, shiftChunkSize)
	pos := start
	for pos < end {
		n := int64(shiftChunkSize)
		if n > end-pos {
			n = end - pos
		}
		if _, err := f.ReadAt(buf[:n], pos); err != nil {
			return fmt.Errorf("scriptmod: reading chunk at %d: %w", pos, err)
		}
		if _, err := f.WriteAt(buf[:n], pos-delta); err != nil {
			return fmt.Errorf("scriptmod: writing chunk at %d: %w", pos-delta, err)
		}
		pos += n
	}
	return nil
}
