package store

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
)

// DefaultMaxLineSize bounds a single ledger line.
const DefaultMaxLineSize = 4 * 1024 * 1024

// JSONLLedger is an append-only newline-delimited JSON file. It assumes a
// single writer process per file.
type JSONLLedger struct {
	path string

	// MaxLineSize is the longest line ReadAll will buffer. Longer lines are
	// yielded as domain.ErrOversizedEntry.
	MaxLineSize int

	mu   sync.Mutex
	file *os.File
	// torn is set while the file may end in a fragment without a newline.
	torn   bool
	closed bool
}

// NewJSONLLedger opens path for appending, creating it and its directory if
// needed. A trailing fragment left by an interrupted write is fenced off so
// later appends start on their own line.
func NewJSONLLedger(path string) (*JSONLLedger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	torn, err := endsWithoutNewline(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("inspect ledger: %w", err)
	}
	return &JSONLLedger{path: path, file: f, torn: torn, MaxLineSize: DefaultMaxLineSize}, nil
}

func endsWithoutNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

// Path returns the ledger file path.
func (l *JSONLLedger) Path() string {
	return l.path
}

// Append writes line followed by a newline and syncs the file.
func (l *JSONLLedger) Append(_ context.Context, line []byte) error {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 || bytes.IndexByte(line, '\n') >= 0 {
		return ErrInvalidEntry
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLedgerClosed
	}

	buf := make([]byte, 0, len(line)+2)
	if l.torn {
		buf = append(buf, '\n')
	}
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := l.file.Write(buf); err != nil {
		// A short write may have left a fragment behind.
		l.torn = true
		return err
	}
	l.torn = false
	return l.file.Sync()
}

// ReadAll lazily yields every non-blank line in file order. A missing file is
// an empty ledger. A line longer than MaxLineSize is skipped and reported as
// domain.ErrOversizedEntry; reading continues with the next line.
func (l *JSONLLedger) ReadAll(ctx context.Context) iter.Seq2[[]byte, error] {
	limit := l.MaxLineSize
	if limit <= 0 {
		limit = DefaultMaxLineSize
	}
	return func(yield func([]byte, error) bool) {
		f, err := os.Open(l.path)
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		if err != nil {
			yield(nil, err)
			return
		}
		defer f.Close()

		r := bufio.NewReaderSize(f, 64*1024)
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			raw, tooLong, readErr := readLine(r, limit)
			if readErr != nil && !errors.Is(readErr, io.EOF) {
				yield(nil, readErr)
				return
			}

			if tooLong {
				if !yield(nil, fmt.Errorf("%w: longer than %d bytes", domain.ErrOversizedEntry, limit)) {
					return
				}
			} else if line := bytes.TrimSpace(raw); len(line) > 0 {
				if !yield(line, nil) {
					return
				}
			}

			if readErr != nil {
				return
			}
		}
	}
}

// readLine returns the next line including its newline. Once the line grows
// past limit the rest of it is discarded and tooLong is set.
func readLine(r *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(bytes.TrimRight(chunk, "\r\n")) > limit {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, tooLong, err
	}
}

func (l *JSONLLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}
