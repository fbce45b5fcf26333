package worker

import (
	"bufio"
	"container/heap"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
)

func reducerForKey(key string, nReduce int) int {
	if nReduce <= 0 {
		panic("nReduce must be > 0")
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()&0x7fffffff) % nReduce
}

// Spiller partitions mapped pairs by key and keeps at most chunkLines lines
// in memory across all partitions. When the limit is reached the largest
// partition buffer is sorted and written to an intermediate file, so every
// spill file is sorted on its own.
type Spiller struct {
	dir        string
	runID      string
	chunkLines int
	buffered   int
	buckets    [][]string
	files      [][]string
}

// NewSpiller prepares nReduce partitions writing into dir.
func NewSpiller(dir string, runID string, nReduce int, chunkLines int) (*Spiller, error) {
	if nReduce <= 0 {
		return nil, fmt.Errorf("reducers must be > 0")
	}
	if chunkLines <= 0 {
		return nil, fmt.Errorf("chunk lines must be > 0")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Spiller{
		dir:        dir,
		runID:      runID,
		chunkLines: chunkLines,
		buckets:    make([][]string, nReduce),
		files:      make([][]string, nReduce),
	}, nil
}

func (s *Spiller) Emit(kv KV) error {
	p := reducerForKey(kv.Key, len(s.buckets))
	s.buckets[p] = append(s.buckets[p], EncodeLine(kv))
	s.buffered++
	if s.buffered >= s.chunkLines {
		return s.spill(s.largest())
	}
	return nil
}

func (s *Spiller) largest() int {
	best := 0
	for p := range s.buckets {
		if len(s.buckets[p]) > len(s.buckets[best]) {
			best = p
		}
	}
	return best
}

// Buffered reports how many lines are held in memory.
func (s *Spiller) Buffered() int { return s.buffered }

func (s *Spiller) spill(p int) error {
	lines := s.buckets[p]
	if len(lines) == 0 {
		return nil
	}
	sort.Strings(lines)

	// Filenames stay aligned with the partition index so every reducer only
	// merges its own chunks.
	fname := filepath.Join(s.dir, fmt.Sprintf("imd-%v-%v-%v.txt", s.runID, p, len(s.files[p])))
	file, err := os.Create(fname)
	if err != nil {
		return err
	}
	w := bufio.NewWriterSize(file, 1<<20)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			file.Close()
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			file.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	log.WithFields(log.Fields{"partition": p, "lines": len(lines), "file": fname}).Trace("[Worker] Spill intermediate kv")
	s.files[p] = append(s.files[p], fname)
	s.buffered -= len(lines)
	s.buckets[p] = lines[:0]
	return nil
}

// Close spills whatever is still buffered and returns the spill files of
// every partition, indexed by partition.
func (s *Spiller) Close() ([][]string, error) {
	for p := range s.buckets {
		if err := s.spill(p); err != nil {
			return nil, err
		}
		s.buckets[p] = nil
	}
	return s.files, nil
}

// Files lists every spill file written so far.
func (s *Spiller) Files() []string {
	var out []string
	for _, fs := range s.files {
		out = append(out, fs...)
	}
	return out
}

type mergeItem struct {
	line string
	src  int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].line != h[j].line {
		return h[i].line < h[j].line
	}
	return h[i].src < h[j].src
}
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Merger performs a k-way merge of sorted spill files and yields their
// lines in byte order, the same order `LC_ALL=C sort` produces. It holds one
// pending line per file.
type Merger struct {
	files   []*os.File
	readers []*bufio.Reader
	h       mergeHeap
	kv      KV
	err     error
}

// NewMerger opens every path for merging.
func NewMerger(paths []string) (*Merger, error) {
	m := &Merger{}
	for i, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.files = append(m.files, f)
		m.readers = append(m.readers, bufio.NewReaderSize(f, 1<<16))
		it, ok, err := m.advance(i)
		if err != nil {
			m.Close()
			return nil, err
		}
		if ok {
			m.h = append(m.h, it)
		}
	}
	heap.Init(&m.h)
	return m, nil
}

// advance reads the next non-empty line of src.
func (m *Merger) advance(src int) (mergeItem, bool, error) {
	for {
		line, err := m.readers[src].ReadString('\n')
		if err != nil && err != io.EOF {
			return mergeItem{}, false, err
		}
		if len(line) > 0 && line[len(line)-1] == '\n' {
			line = line[:len(line)-1]
		}
		if line != "" {
			return mergeItem{line: line, src: src}, true, nil
		}
		if err == io.EOF {
			return mergeItem{}, false, nil
		}
	}
}

func (m *Merger) Next() bool {
	if m.err != nil || m.h.Len() == 0 {
		return false
	}
	it := heap.Pop(&m.h).(mergeItem)
	kv, err := DecodeLine(it.line)
	if err != nil {
		m.err = err
		return false
	}
	m.kv = kv
	next, ok, err := m.advance(it.src)
	if err != nil {
		m.err = err
		return false
	}
	if ok {
		heap.Push(&m.h, next)
	}
	return true
}

func (m *Merger) KV() KV { return m.kv }

func (m *Merger) Err() error { return m.err }

func (m *Merger) Close() error {
	var first error
	for _, f := range m.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	m.files = nil
	return first
}
