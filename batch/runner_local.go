package batch

import (
	"context"
	"fmt"
	"sync"

	mapreduce "github.com/emptyOVO/mrkit-awards"
)

// LocalRunner runs the job in-process with spill file sorting.
type LocalRunner struct{}

var localRuntimeMu sync.Mutex

func (LocalRunner) Run(ctx context.Context, cfg MapReduceRunConfig) ([]string, error) {
	if len(cfg.Files) == 0 {
		return nil, nil
	}
	if cfg.Job.Mapper == nil || cfg.Job.Reducer == nil {
		return nil, fmt.Errorf("job is required")
	}
	if cfg.Reducers <= 0 {
		return nil, fmt.Errorf("reducers must be > 0")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Runs share the output directory layout, so only one at a time.
	localRuntimeMu.Lock()
	defer localRuntimeMu.Unlock()

	res, err := mapreduce.RunLocal(ctx, mapreduce.LocalConfig{
		Inputs:     cfg.Files,
		Job:        cfg.Job,
		Reducers:   cfg.Reducers,
		ChunkLines: cfg.ChunkLines,
		InRAM:      cfg.InRAM,
		OutputDir:  cfg.OutputDir,
		Strict:     cfg.Strict,
	})
	if err != nil {
		return nil, err
	}
	return res.Outputs, nil
}
