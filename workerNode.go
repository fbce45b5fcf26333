package mapreduce

import (
	"context"
	"io"

	"github.com/emptyOVO/mrkit-awards/mrapps"
	"github.com/emptyOVO/mrkit-awards/worker"
	log "github.com/sirupsen/logrus"
)

// StartMapper runs the map stage of job from in to out, as one process of a
// streaming batch job. The sort between stages belongs to the caller.
func StartMapper(ctx context.Context, job mrapps.Job, in io.Reader, out io.Writer) error {
	stats, err := worker.RunMap(ctx, in, out, job.Mapper)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"job":     job.Name,
		"lines":   stats.Lines,
		"header":  stats.Header,
		"dropped": stats.Dropped,
		"emitted": stats.Emitted,
	}).Info("[Worker] Finish Map")
	return nil
}

// StartReducer runs the reduce stage of job over a key-sorted stream.
func StartReducer(ctx context.Context, job mrapps.Job, in io.Reader, out io.Writer, strict bool) error {
	stats, err := worker.RunReduce(ctx, in, out, job.Reducer, worker.ReduceOptions{Strict: strict})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"job":    job.Name,
		"lines":  stats.Lines,
		"groups": stats.Groups,
	}).Info("[Worker] Finish Reduce")
	return nil
}
