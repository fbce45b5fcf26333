package worker

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/emptyOVO/mrkit-awards/schema"
	log "github.com/sirupsen/logrus"
)

// ErrOutOfOrder is returned in strict mode when the sorted input revisits a
// key that sorts before the group just closed.
var ErrOutOfOrder = errors.New("reduce input is not sorted by key")

// MapStats summarises one map invocation.
type MapStats struct {
	schema.DecoderStats
	Emitted int64
}

// Emitter receives projected key-value pairs.
type Emitter interface {
	Emit(kv KV) error
}

// RunMap decodes records from in, projects each through m and writes one
// key-value line per record to out.
func RunMap(ctx context.Context, in io.Reader, out io.Writer, m Mapper) (MapStats, error) {
	w := NewWriter(out)
	stats, err := MapTo(ctx, in, w, m)
	if err != nil {
		return stats, err
	}
	return stats, w.Flush()
}

// MapTo is RunMap with the output side left to the caller. Only one record
// is held at a time. Rejected lines are counted, never reported.
func MapTo(ctx context.Context, in io.Reader, e Emitter, m Mapper) (MapStats, error) {
	var stats MapStats
	dec, err := schema.NewDecoder(in, m.Schema(), m.Requires()...)
	if err != nil {
		return stats, err
	}

	log.WithField("schema", m.Schema().Name).Debug("[Worker] Start Map")
	for dec.Next() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		kv, err := m.Map(dec.Record())
		if err != nil {
			return stats, fmt.Errorf("map record: %w", err)
		}
		if err := e.Emit(kv); err != nil {
			return stats, err
		}
		stats.Emitted++
	}
	stats.DecoderStats = dec.Stats()
	if err := dec.Err(); err != nil {
		return stats, fmt.Errorf("read map input: %w", err)
	}
	log.WithFields(log.Fields{
		"lines":   stats.Lines,
		"dropped": stats.Dropped,
		"emitted": stats.Emitted,
	}).Debug("[Worker] Finish Map")
	return stats, nil
}

// ReduceOptions tunes RunReduce.
type ReduceOptions struct {
	// Strict fails the run when a key sorts before the previous group's key.
	// By default the upstream sort is trusted and a key that reappears later
	// simply starts a new group.
	Strict bool
}

// ReduceStats summarises one reduce invocation.
type ReduceStats struct {
	Lines  int64
	Groups int64
}

// RunReduce folds a key-sorted stream of key-value lines. Contiguous lines
// sharing a key form a group; the group is flushed through its accumulator
// when the key changes and at end of input. At most one group is alive.
func RunReduce(ctx context.Context, in io.Reader, out io.Writer, r Reducer, opts ReduceOptions) (ReduceStats, error) {
	return ReduceFrom(ctx, NewIterator(in), out, r, opts)
}

// Source produces key-value pairs in key order.
type Source interface {
	Next() bool
	KV() KV
	Err() error
}

// ReduceFrom is RunReduce over an already decoded source.
func ReduceFrom(ctx context.Context, src Source, out io.Writer, r Reducer, opts ReduceOptions) (ReduceStats, error) {
	var (
		stats ReduceStats
		key   string
		acc   Accumulator
	)
	w := NewWriter(out)
	flush := func() error {
		if acc == nil {
			return nil
		}
		stats.Groups++
		return w.WriteLine(acc.Result())
	}

	for src.Next() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		kv := src.KV()
		stats.Lines++
		if acc == nil || kv.Key != key {
			if opts.Strict && acc != nil && kv.Key < key {
				return stats, fmt.Errorf("%w: %q after %q", ErrOutOfOrder, kv.Key, key)
			}
			if err := flush(); err != nil {
				return stats, err
			}
			key = kv.Key
			acc = r.NewAccumulator(key)
		}
		if err := acc.Add(kv.Value); err != nil {
			return stats, fmt.Errorf("reduce key %q: %w", key, err)
		}
	}
	if err := src.Err(); err != nil {
		return stats, fmt.Errorf("read reduce input: %w", err)
	}
	if err := flush(); err != nil {
		return stats, err
	}
	if err := w.Flush(); err != nil {
		return stats, err
	}
	log.WithFields(log.Fields{
		"lines":  stats.Lines,
		"groups": stats.Groups,
	}).Debug("[Worker] Finish Reduce")
	return stats, nil
}
