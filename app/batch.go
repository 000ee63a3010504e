package app

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchResult pairs a job with its outcome. Exactly one of Outcome and
// Err is set.
type BatchResult struct {
	Job     Job
	Outcome *Outcome
	Err     error
}

// RunBatch solves jobs with at most parallel concurrent solves. A failed
// job does not stop the others; results keep the order of jobs. Each job
// formulates its own model so nothing is shared between solves.
func (r *Runner) RunBatch(ctx context.Context, jobs []Job, parallel int) []BatchResult {
	results := make([]BatchResult, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, job := range jobs {
		g.Go(func() error {
			out, err := r.Run(ctx, job)
			results[i] = BatchResult{Job: job, Outcome: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Failed counts the results that carry an error.
func Failed(results []BatchResult) int {
	n := 0
	for _, res := range results {
		if res.Err != nil {
			n++
		}
	}
	return n
}
