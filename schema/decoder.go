package schema

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrMalformedLine marks a line the CSV parser could not tokenize.
	ErrMalformedLine = errors.New("malformed csv line")
	// ErrFieldCount marks a record whose shape does not match the schema.
	ErrFieldCount = errors.New("unexpected field count")
	// ErrBlankLine marks an empty input line.
	ErrBlankLine = errors.New("blank line")
)

// ParseLine splits a single line into fields using CSV quoting rules.
func ParseLine(line string) ([]string, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, ErrBlankLine
	}
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	// Free text carries bare quotes (12" PIPE); they are kept as literal text.
	r.LazyQuotes = true
	fields, err := r.Read()
	if err == io.EOF {
		return nil, ErrBlankLine
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	// An embedded newline still splits the input into two records.
	if _, err := r.Read(); err != io.EOF {
		return nil, fmt.Errorf("%w: more than one record on line", ErrMalformedLine)
	}
	return fields, nil
}

// EncodeRecord writes fields as one canonical CSV row without the trailing
// newline.
func EncodeRecord(fields []string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Decode parses and validates one line against s.
func (s Schema) Decode(line string) (Record, error) {
	fields, err := ParseLine(line)
	if err != nil {
		return Record{}, err
	}
	return s.bind(fields)
}

func (s *Schema) bind(fields []string) (Record, error) {
	if s.Length > 0 && len(fields) != s.Length {
		return Record{}, fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(fields), s.Length)
	}
	if n := s.minFields(); len(fields) < n {
		return Record{}, fmt.Errorf("%w: got %d, need at least %d", ErrFieldCount, len(fields), n)
	}
	return Record{schema: s, fields: fields}, nil
}

// IsHeader reports whether fields form the export header row.
func (s Schema) IsHeader(fields []string) bool {
	return len(fields) > 0 && fields[0] == s.Header
}

// DecoderStats counts what happened to every physical input line.
type DecoderStats struct {
	Lines   int64
	Header  int64
	Dropped int64
	Records int64
}

// Decoder streams validated records out of a line oriented reader. Exactly
// one line is held in memory at a time and one line never yields more than
// one record. Rejected lines are counted and skipped.
type Decoder struct {
	schema Schema
	rd     *bufio.Reader
	rec    Record
	err    error
	stats  DecoderStats
}

// NewDecoder validates s and binds it to r.
func NewDecoder(r io.Reader, s Schema, required ...Field) (*Decoder, error) {
	s = s.Clone()
	if err := s.Validate(required...); err != nil {
		return nil, err
	}
	return &Decoder{schema: s, rd: bufio.NewReaderSize(r, 1<<20)}, nil
}

// Next advances to the next valid record. It returns false at end of input
// or on a read error, see Err.
func (d *Decoder) Next() bool {
	for {
		line, err := d.rd.ReadString('\n')
		if err != nil && err != io.EOF {
			d.err = err
			return false
		}
		if line == "" && err == io.EOF {
			return false
		}
		d.stats.Lines++
		if rec, ok := d.decode(line); ok {
			d.rec = rec
			d.stats.Records++
			return true
		}
		if err == io.EOF {
			return false
		}
	}
}

func (d *Decoder) decode(line string) (Record, bool) {
	fields, err := ParseLine(line)
	if err != nil {
		d.stats.Dropped++
		return Record{}, false
	}
	if d.stats.Lines == 1 && d.schema.IsHeader(fields) {
		d.stats.Header++
		return Record{}, false
	}
	rec, err := d.schema.bind(fields)
	if err != nil {
		d.stats.Dropped++
		return Record{}, false
	}
	return rec, true
}

// Record returns the record produced by the last successful Next.
func (d *Decoder) Record() Record { return d.rec }

func (d *Decoder) Err() error { return d.err }

func (d *Decoder) Stats() DecoderStats { return d.stats }
