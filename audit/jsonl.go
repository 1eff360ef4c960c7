package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

const maxLineBytes = 4 * 1024 * 1024

// JSONLWriter writes audit entries as JSON lines. Every entry is flushed immediately so a
// crashed process leaves a complete prefix behind.
type JSONLWriter struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closed bool
}

// NewJSONLWriter creates a JSONLWriter on top of w.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: bufio.NewWriter(w)}
}

// Append writes e as one line.
func (w *JSONLWriter) Append(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("audit: writer is closed")
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	if _, err := w.w.Write(line); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("audit: write newline: %w", err)
	}
	return w.w.Flush()
}

// Close flushes and closes the writer. The underlying io.Writer is not closed.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.w.Flush()
}

// ReadAll decodes every entry written by a JSONLWriter.
func ReadAll(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var out []Entry
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("audit: line %d: %w", line, err)
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
