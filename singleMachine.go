package mapreduce

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/emptyOVO/mrkit-awards/mrapps"
	"github.com/emptyOVO/mrkit-awards/worker"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// LocalConfig describes a single machine run: map every input, sort through
// spill files, reduce every partition.
type LocalConfig struct {
	Inputs     []string
	Job        mrapps.Job
	Reducers   int
	ChunkLines int
	InRAM      bool
	OutputDir  string
	Strict     bool
}

func (c *LocalConfig) withDefaults() {
	if c.Reducers <= 0 {
		c.Reducers = 1
	}
	if c.ChunkLines <= 0 {
		c.ChunkLines = 100000
	}
	if c.OutputDir == "" {
		c.OutputDir = "output"
	}
}

// LocalResult reports where the reduced lines went.
type LocalResult struct {
	RunID   string
	Outputs []string
	Map     worker.MapStats
	Reduce  worker.ReduceStats
}

// RunLocal executes the job on this machine. Map runs as one sequential
// stream over all inputs; each partition is then merged and reduced in its
// own goroutine into mr-out-<partition>.txt.
func RunLocal(ctx context.Context, cfg LocalConfig) (LocalResult, error) {
	cfg.withDefaults()
	res := LocalResult{RunID: uuid.New().String()}
	if cfg.Job.Mapper == nil || cfg.Job.Reducer == nil {
		return res, fmt.Errorf("job is required")
	}
	if len(cfg.Inputs) == 0 {
		return res, nil
	}
	logger := log.WithFields(log.Fields{"run": res.RunID, "job": cfg.Job.Name})

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return res, err
	}
	spiller, err := worker.NewSpiller(spillDir(cfg), res.RunID, cfg.Reducers, cfg.ChunkLines)
	if err != nil {
		return res, err
	}
	defer func() {
		for _, f := range spiller.Files() {
			_ = os.Remove(f)
		}
	}()

	logger.Info("[Master] Start Map")
	for _, in := range cfg.Inputs {
		stats, err := mapFile(ctx, in, spiller, cfg.Job.Mapper)
		if err != nil {
			return res, fmt.Errorf("map %s: %w", in, err)
		}
		res.Map.Lines += stats.Lines
		res.Map.Header += stats.Header
		res.Map.Dropped += stats.Dropped
		res.Map.Records += stats.Records
		res.Map.Emitted += stats.Emitted
	}
	partitions, err := spiller.Close()
	if err != nil {
		return res, err
	}
	logger.WithFields(log.Fields{
		"lines":   res.Map.Lines,
		"dropped": res.Map.Dropped,
		"emitted": res.Map.Emitted,
	}).Info("[Master] Finish Map")

	logger.Info("[Master] Start Reduce")
	res.Outputs = make([]string, len(partitions))
	stats := make([]worker.ReduceStats, len(partitions))
	var wg sync.WaitGroup
	errCh := make(chan error, len(partitions))
	for p, files := range partitions {
		res.Outputs[p] = filepath.Join(cfg.OutputDir, fmt.Sprintf("mr-out-%v.txt", p))
		wg.Add(1)
		go func(p int, files []string) {
			defer wg.Done()
			s, err := reducePartition(ctx, files, res.Outputs[p], cfg.Job.Reducer, worker.ReduceOptions{Strict: cfg.Strict})
			if err != nil {
				errCh <- fmt.Errorf("reduce partition %d: %w", p, err)
				return
			}
			stats[p] = s
		}(p, files)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		return res, err
	}
	for _, s := range stats {
		res.Reduce.Lines += s.Lines
		res.Reduce.Groups += s.Groups
	}
	logger.WithField("groups", res.Reduce.Groups).Info("[Master] Finish Reduce")
	return res, nil
}

func spillDir(cfg LocalConfig) string {
	if cfg.InRAM {
		baseDir := "/dev/shm"
		if info, err := os.Stat(baseDir); err != nil || !info.IsDir() {
			baseDir = os.TempDir()
		}
		return baseDir
	}
	return filepath.Join(cfg.OutputDir, "imd")
}

func mapFile(ctx context.Context, path string, spiller *worker.Spiller, m worker.Mapper) (worker.MapStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return worker.MapStats{}, err
	}
	defer f.Close()
	return worker.MapTo(ctx, f, spiller, m)
}

func reducePartition(ctx context.Context, files []string, output string, r worker.Reducer, opts worker.ReduceOptions) (worker.ReduceStats, error) {
	merger, err := worker.NewMerger(files)
	if err != nil {
		return worker.ReduceStats{}, err
	}
	defer merger.Close()

	ofile, err := os.Create(output)
	if err != nil {
		return worker.ReduceStats{}, err
	}
	stats, err := worker.ReduceFrom(ctx, merger, ofile, r, opts)
	if err != nil {
		ofile.Close()
		return stats, err
	}
	return stats, ofile.Close()
}
