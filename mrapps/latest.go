package mrapps

import (
	"strings"

	"github.com/emptyOVO/mrkit-awards/schema"
	"github.com/emptyOVO/mrkit-awards/worker"
)

// LatestMapper emits award key -> the whole record, re-quoted so the value
// is always one well formed CSV row.
type LatestMapper struct {
	schema schema.Schema
}

func NewLatestMapper(s schema.Schema) LatestMapper {
	return LatestMapper{schema: s}
}

func (m LatestMapper) Schema() schema.Schema { return m.schema }

func (m LatestMapper) Requires() []schema.Field { return nil }

func (m LatestMapper) Map(rec schema.Record) (worker.KV, error) {
	row, err := schema.EncodeRecord(rec.Fields())
	if err != nil {
		return worker.KV{}, err
	}
	return worker.KV{Key: worker.JoinKey(rec.PIID(), rec.ParentAwardID()), Value: row}, nil
}

// LastModified returns the text after the final comma of a mapped row.
// The split is deliberately not CSV aware and the result is compared as a
// plain string, never parsed as a date.
func LastModified(row string) string {
	if i := strings.LastIndexByte(row, ','); i >= 0 {
		return row[i+1:]
	}
	return row
}

// LatestReducer keeps the row with the greatest last_modified_date. On ties
// the first row seen wins.
type LatestReducer struct{}

func (LatestReducer) NewAccumulator(key string) worker.Accumulator {
	return &latestRow{}
}

type latestRow struct {
	inited bool
	best   string
	row    string
}

func (a *latestRow) Add(value string) error {
	date := LastModified(value)
	if !a.inited || date > a.best {
		a.best = date
		a.row = value
		a.inited = true
	}
	return nil
}

func (a *latestRow) Result() string { return a.row }
