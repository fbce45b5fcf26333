package worker

import "github.com/emptyOVO/mrkit-awards/schema"

// Mapper projects one validated record into a key-value pair.
type Mapper interface {
	// Schema is the export layout the mapper reads.
	Schema() schema.Schema
	// Requires lists named fields beyond the composite key that the
	// mapper reads, so the schema can be checked before any input is read.
	Requires() []schema.Field
	Map(rec schema.Record) (KV, error)
}

// Reducer folds one group of values sharing a key.
type Reducer interface {
	NewAccumulator(key string) Accumulator
}

// Accumulator holds the state of a single group. It is discarded once the
// group has been emitted.
type Accumulator interface {
	Add(value string) error
	// Result is the complete output line for the group.
	Result() string
}
