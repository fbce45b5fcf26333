// Package mrapps holds the award reduction jobs: a map projection paired
// with the reduction policy that folds its groups.
package mrapps

import (
	"fmt"
	"sort"
	"strings"

	"github.com/emptyOVO/mrkit-awards/schema"
	"github.com/emptyOVO/mrkit-awards/worker"
)

// Job is one standalone map/reduce pair bound to its export schema.
type Job struct {
	Name    string
	Schema  schema.Schema
	Mapper  worker.Mapper
	Reducer worker.Reducer
}

const (
	JobTermination = "termination"
	JobLatest      = "latest"
)

var builtinJobs = map[string]func(schema.Schema) Job{
	JobTermination: func(s schema.Schema) Job {
		return Job{Name: JobTermination, Schema: s, Mapper: NewTerminationMapper(s), Reducer: TerminationReducer{}}
	},
	JobLatest: func(s schema.Schema) Job {
		return Job{Name: JobLatest, Schema: s, Mapper: NewLatestMapper(s), Reducer: LatestReducer{}}
	},
}

var defaultSchemas = map[string]schema.Schema{
	JobTermination: schema.Termination,
	JobLatest:      schema.Latest,
}

// Lookup returns the named job with its default schema.
func Lookup(name string) (Job, error) {
	s, ok := defaultSchemas[strings.TrimSpace(name)]
	if !ok {
		return Job{}, fmt.Errorf("unknown job %q (want one of %s)", name, strings.Join(Names(), "|"))
	}
	return LookupWithSchema(name, s)
}

// LookupWithSchema binds the named job to s after validating it.
func LookupWithSchema(name string, s schema.Schema) (Job, error) {
	build, ok := builtinJobs[strings.TrimSpace(name)]
	if !ok {
		return Job{}, fmt.Errorf("unknown job %q (want one of %s)", name, strings.Join(Names(), "|"))
	}
	s = s.Clone()
	job := build(s)
	if err := s.Validate(job.Mapper.Requires()...); err != nil {
		return Job{}, err
	}
	return job, nil
}

// Names lists the registered jobs.
func Names() []string {
	out := make([]string, 0, len(builtinJobs))
	for k := range builtinJobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
