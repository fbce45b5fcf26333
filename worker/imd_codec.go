package worker

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedPair marks a reduce-side line that carries no tab separator.
var ErrMalformedPair = errors.New("malformed key-value line")

// KV is the unit exchanged between the map and reduce stages.
type KV struct {
	Key   string
	Value string
}

// JoinKey builds the composite award key. The comma join is never quoted;
// the tab that follows it on the wire keeps key and value apart.
func JoinKey(piid, parent string) string {
	return piid + "," + parent
}

// EncodeLine renders kv as key<TAB>value without a trailing newline.
func EncodeLine(kv KV) string {
	var b strings.Builder
	b.Grow(len(kv.Key) + len(kv.Value) + 1)
	b.WriteString(kv.Key)
	b.WriteByte('\t')
	b.WriteString(kv.Value)
	return b.String()
}

// DecodeLine splits a wire line at its first tab. Surrounding whitespace,
// including the line terminator, is dropped first.
func DecodeLine(line string) (KV, error) {
	line = strings.TrimSpace(line)
	parts := strings.SplitN(line, "\t", 2)
	if len(parts) != 2 {
		return KV{}, fmt.Errorf("%w: %q", ErrMalformedPair, line)
	}
	return KV{Key: parts[0], Value: parts[1]}, nil
}

// Writer emits newline terminated lines through a buffer.
type Writer struct {
	w *bufio.Writer
	n int64
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 1<<16)}
}

// Emit writes one key-value line.
func (w *Writer) Emit(kv KV) error {
	return w.WriteLine(EncodeLine(kv))
}

// WriteLine writes s followed by a newline.
func (w *Writer) WriteLine(s string) error {
	if _, err := w.w.WriteString(s); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.n++
	return nil
}

// Lines returns how many lines were written.
func (w *Writer) Lines() int64 { return w.n }

func (w *Writer) Flush() error { return w.w.Flush() }

// Iterator reads key-value lines from a stream one at a time. Blank lines are
// skipped; a line without a tab stops iteration with ErrMalformedPair.
type Iterator struct {
	rd   *bufio.Reader
	kv   KV
	err  error
	line int64
}

func NewIterator(r io.Reader) *Iterator {
	return &Iterator{rd: bufio.NewReaderSize(r, 1<<20)}
}

func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	for {
		line, err := it.rd.ReadString('\n')
		if err != nil && err != io.EOF {
			it.err = err
			return false
		}
		if line == "" && err == io.EOF {
			return false
		}
		it.line++
		if strings.TrimSpace(line) != "" {
			kv, derr := DecodeLine(line)
			if derr != nil {
				it.err = fmt.Errorf("line %d: %w", it.line, derr)
				return false
			}
			it.kv = kv
			return true
		}
		if err == io.EOF {
			return false
		}
	}
}

func (it *Iterator) KV() KV { return it.kv }

func (it *Iterator) Err() error { return it.err }
