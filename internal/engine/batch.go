package engine

import (
	"context"
	"errors"

	"github.com/rendis/flowcore/internal/logging"
	"github.com/rendis/flowcore/pkg/schema"
)

var errRunFailed = errors.New("run failed")

// BatchResult holds the records of one ExecuteBatch call, in payload order,
// plus the pool counters once every run has finished.
type BatchResult struct {
	Runs    []*schema.RunRecord `json:"runs"`
	Metrics PoolMetrics         `json:"metrics"`
}

// Failed counts the runs that ended failed.
func (b *BatchResult) Failed() int {
	n := 0
	for _, rec := range b.Runs {
		if rec != nil && rec.Status == schema.RunStatusFailed {
			n++
		}
	}
	return n
}

// ExecuteBatch runs g once per payload, at most the configured pool size at
// a time. If ctx ends before every payload is submitted, the unsubmitted
// slots are nil and ctx's error is returned with the partial result.
func (e *Engine) ExecuteBatch(ctx context.Context, g schema.Graph, inputs []any) (*BatchResult, error) {
	plan, err := BuildPlan(g, e.types)
	if err != nil {
		return nil, err
	}

	pool := NewWorkerPool(e.poolSize)
	res := &BatchResult{Runs: make([]*schema.RunRecord, len(inputs))}
	var submitErr error
	for i, input := range inputs {
		err := pool.Submit(ctx, func(ctx context.Context) error {
			res.Runs[i] = e.run(ctx, plan, input)
			if res.Runs[i].Status == schema.RunStatusFailed {
				return errRunFailed
			}
			return nil
		})
		if err != nil {
			submitErr = err
			break
		}
	}
	pool.Shutdown()
	res.Metrics = pool.Metrics()

	logging.LogWith(ctx, e.logger).Info("batch finished",
		"graph_id", g.ID, "runs", len(inputs),
		"completed", res.Metrics.Completed, "failed", res.Metrics.Failed, "panics", res.Metrics.Panics)
	return res, submitErr
}
