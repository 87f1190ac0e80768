package retrieval

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/params"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Task is one query of a supervised batch.
type Task struct {
	ID         string
	Node       *query.Node
	Parameters params.Parameters
}

// Outcome is the result or the failure of one Task.
type Outcome struct {
	ID      string
	Results []ScoredDocument
	Err     error
}

// Supervisor evaluates batches of queries concurrently. A failing task only
// affects its own Outcome.
type Supervisor struct {
	r     *Retrieval
	limit int
}

// NewSupervisor returns a supervisor running at most limit queries at once;
// limit <= 0 means no bound.
func (r *Retrieval) NewSupervisor(limit int) *Supervisor {
	return &Supervisor{r: r, limit: limit}
}

// Run evaluates tasks and returns their outcomes in task order. Tasks that
// have not started when ctx ends fail with ErrInterrupted; started ones run
// to completion.
func (s *Supervisor) Run(ctx context.Context, tasks []Task) []Outcome {
	outcomes := make([]Outcome, len(tasks))
	var g errgroup.Group
	if s.limit > 0 {
		g.SetLimit(s.limit)
	}
	log := logger.FromContext(ctx)
	for i, t := range tasks {
		g.Go(func() error {
			outcomes[i].ID = t.ID
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = fmt.Errorf("%w: %w", apperrors.ErrInterrupted, err)
				return nil
			}
			if t.Node == nil {
				outcomes[i].Err = apperrors.Invalid("task %s has no query", t.ID)
				return nil
			}
			docs, err := s.r.safeRun(ctx, t.Node, t.Parameters)
			if err != nil {
				s.r.metrics.AsyncFailure()
				log.Error("supervised query failed", "task", t.ID, "error", err)
			}
			outcomes[i].Results, outcomes[i].Err = docs, err
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Merge folds outcomes into the sinks: results of successful tasks into
// results, one description per failed task into errs.
func Merge(outcomes []Outcome, results *ResultSink, errs *ErrorSink) {
	for _, o := range outcomes {
		if o.Err != nil {
			errs.Append(fmt.Sprintf("%s: %v", o.ID, o.Err))
			continue
		}
		results.Append(o.Results...)
	}
}
