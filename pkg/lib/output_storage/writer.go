package output_storage

import (
	"bytes"
	"sync"
)

// MaxLineLength bounds the lines a LineWriter emits. Longer runs of bytes
// without a terminator are split into lines of exactly MaxLineLength bytes.
const MaxLineLength = 64 * 1024

// LineWriter implements io.Writer on top of an OutputStorage, turning a byte
// stream into lines. \n, \r\n and a bare \r all end a line and are stripped,
// so carriage-return progress output shows up one refresh per line.
type LineWriter struct {
	mu      sync.Mutex
	storage *OutputStorage
	partial []byte
	// afterCR is set when the last line ended with \r; a \n that follows,
	// possibly in the next Write, belongs to the same terminator.
	afterCR bool
}

func NewLineWriter(storage *OutputStorage) *LineWriter {
	return &LineWriter{storage: storage}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	if w == nil {
		return len(p), nil
	}
	if len(p) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	rest := p
	for len(rest) > 0 {
		if w.afterCR {
			w.afterCR = false
			if rest[0] == '\n' {
				rest = rest[1:]
				continue
			}
		}

		i := bytes.IndexAny(rest, "\r\n")
		if i < 0 {
			w.buffer(rest)
			break
		}
		w.buffer(rest[:i])
		w.emit()
		w.afterCR = rest[i] == '\r'
		rest = rest[i+1:]
	}

	return len(p), nil
}

// buffer adds b to the partial line. A full partial line is emitted only once
// more bytes arrive, so a line of exactly MaxLineLength followed by its
// terminator stays one line.
func (w *LineWriter) buffer(b []byte) {
	for len(b) > 0 {
		if len(w.partial) == MaxLineLength {
			w.emit()
		}
		n := min(len(b), MaxLineLength-len(w.partial))
		w.partial = append(w.partial, b[:n]...)
		b = b[n:]
	}
}

// Flush emits a trailing line that was not terminated.
func (w *LineWriter) Flush() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.afterCR = false
	if len(w.partial) > 0 {
		w.emit()
	}
}

func (w *LineWriter) emit() {
	// string() copies, so the partial buffer can be reused
	w.storage.Append(string(w.partial))
	w.partial = w.partial[:0]
}
