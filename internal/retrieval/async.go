package retrieval

import (
	"context"
	"fmt"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/params"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/logger"
)

// ResultSink collects results from concurrent queries.
type ResultSink struct {
	mu      sync.Mutex
	results []ScoredDocument
}

func (s *ResultSink) Append(docs ...ScoredDocument) {
	s.mu.Lock()
	s.results = append(s.results, docs...)
	s.mu.Unlock()
}

// Results returns a copy of everything appended so far.
func (s *ResultSink) Results() []ScoredDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScoredDocument, len(s.results))
	copy(out, s.results)
	return out
}

func (s *ResultSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// ErrorSink collects failure descriptions from concurrent queries.
type ErrorSink struct {
	mu     sync.Mutex
	errors []string
}

func (s *ErrorSink) Append(msg string) {
	s.mu.Lock()
	s.errors = append(s.errors, msg)
	s.mu.Unlock()
}

func (s *ErrorSink) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.errors))
	copy(out, s.errors)
	return out
}

func (s *ErrorSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errors)
}

// AsyncQuery runs one query at a time in the background. Failures are never
// returned to the caller: they are written to the error sink so that other
// queries sharing the sinks are unaffected. After Join returns nil the
// instance can be started again.
type AsyncQuery struct {
	r       *Retrieval
	mu      sync.Mutex
	running bool
	done    chan struct{}
}

func (r *Retrieval) NewAsyncQuery() *AsyncQuery {
	return &AsyncQuery{r: r}
}

// Start begins evaluating node. It fails with ErrInvalidArgument when a
// previous query has not been joined.
func (a *AsyncQuery) Start(ctx context.Context, node *query.Node, p params.Parameters, results *ResultSink, errs *ErrorSink) error {
	if node == nil || results == nil || errs == nil {
		return apperrors.Invalid("async query needs a query and both sinks")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return apperrors.Invalid("async query already running")
	}
	a.running = true
	a.done = make(chan struct{})

	// The evaluation always runs to completion, even if ctx is cancelled.
	go a.run(context.WithoutCancel(ctx), node, p.Clone(), results, errs, a.done)
	return nil
}

func (a *AsyncQuery) run(ctx context.Context, node *query.Node, p params.Parameters, results *ResultSink, errs *ErrorSink, done chan struct{}) {
	defer close(done)
	docs, err := a.r.safeRun(ctx, node, p)
	if err != nil {
		a.r.metrics.AsyncFailure()
		logger.FromContext(ctx).Error("async query failed", "query", node.String(), "error", err)
		errs.Append(err.Error())
		return
	}
	results.Append(docs...)
}

// Join waits for the running query. If ctx ends first it returns
// ErrInterrupted; the query keeps running and still writes to its sinks.
func (a *AsyncQuery) Join(ctx context.Context) error {
	a.mu.Lock()
	done := a.done
	a.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", apperrors.ErrInterrupted, ctx.Err())
	}
	a.mu.Lock()
	if a.done == done {
		a.running = false
		a.done = nil
	}
	a.mu.Unlock()
	return nil
}

// Running reports whether a started query has not been joined yet.
func (a *AsyncQuery) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// safeRun evaluates node, turning a panic into an error.
func (r *Retrieval) safeRun(ctx context.Context, node *query.Node, p params.Parameters) (docs []ScoredDocument, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("query %s panicked: %v", node, v)
		}
	}()
	return r.RunQuery(ctx, node, p)
}
