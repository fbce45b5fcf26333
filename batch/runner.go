package batch

import (
	"context"

	"github.com/emptyOVO/mrkit-awards/mrapps"
)

// MapReduceRunConfig describes a runtime invocation for a map-reduce job.
type MapReduceRunConfig struct {
	Files      []string
	Job        mrapps.Job
	Reducers   int
	ChunkLines int
	InRAM      bool
	OutputDir  string
	Strict     bool
}

// Runner abstracts runtime startup strategy for map-reduce execution.
type Runner interface {
	// Run executes the job and returns the reduce output files.
	Run(ctx context.Context, cfg MapReduceRunConfig) ([]string, error)
}

var defaultRunner Runner = LocalRunner{}

// SetDefaultRunner overrides the process-wide runtime strategy.
func SetDefaultRunner(r Runner) {
	if r == nil {
		return
	}
	defaultRunner = r
}

// DefaultRunner returns the current process-wide runtime strategy.
func DefaultRunner() Runner {
	return defaultRunner
}

// RunMapReduce executes map-reduce through the configured runner.
func RunMapReduce(ctx context.Context, cfg MapReduceRunConfig) ([]string, error) {
	return DefaultRunner().Run(ctx, cfg)
}
