package mrapps

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/emptyOVO/mrkit-awards/schema"
	"github.com/emptyOVO/mrkit-awards/worker"
)

// ErrBadFlag is returned when a termination value is not an integer.
var ErrBadFlag = errors.New("termination flag is not an integer")

// badActionTypes are the action types that mark a contract as terminated.
// Matching is exact and case sensitive.
var badActionTypes = map[string]struct{}{
	"TERMINATE FOR DEFAULT (COMPLETE OR PARTIAL)": {},
	"TERMINATE FOR CAUSE":                         {},
}

// IsTermination reports whether actionType is one of the bad action types.
func IsTermination(actionType string) bool {
	_, ok := badActionTypes[actionType]
	return ok
}

// TerminationMapper emits award key -> 1 when the record is a termination
// action, else 0.
type TerminationMapper struct {
	schema schema.Schema
}

func NewTerminationMapper(s schema.Schema) TerminationMapper {
	return TerminationMapper{schema: s}
}

func (m TerminationMapper) Schema() schema.Schema { return m.schema }

func (m TerminationMapper) Requires() []schema.Field {
	return []schema.Field{schema.ActionType}
}

func (m TerminationMapper) Map(rec schema.Record) (worker.KV, error) {
	v := "0"
	if IsTermination(rec.ActionType()) {
		v = "1"
	}
	return worker.KV{Key: worker.JoinKey(rec.PIID(), rec.ParentAwardID()), Value: v}, nil
}

// TerminationReducer ORs the flags of a group by taking their maximum.
type TerminationReducer struct{}

func (TerminationReducer) NewAccumulator(key string) worker.Accumulator {
	return &maxFlag{key: key}
}

type maxFlag struct {
	key    string
	inited bool
	max    int
}

func (a *maxFlag) Add(value string) error {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadFlag, value)
	}
	if !a.inited || v > a.max {
		a.max = v
		a.inited = true
	}
	return nil
}

// Result renders piid,parent,flag.
func (a *maxFlag) Result() string {
	return a.key + "," + strconv.Itoa(a.max)
}
