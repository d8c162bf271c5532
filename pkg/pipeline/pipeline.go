// Package pipeline implements the ordered stage engine behind every
// folder-mutating operation.
//
// A pipeline is an ordered list of stages. Stages expose up to two
// capabilities: Scoper, to declare data requirements against the fetch
// query before the subject is loaded, and Handler, to validate or mutate
// once it is. Constraints are conventionally ordered before actions so no
// side effect happens while a check can still fail.
package pipeline

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

var (
	runsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookmarkd",
		Name:      "pipeline_runs_total",
		Help:      "Total number of pipeline invocations.",
	})

	abortsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookmarkd",
		Name:      "pipeline_aborts_total",
		Help:      "Total number of pipeline invocations aborted by a stage error.",
	})
)

// Scoper is the capability to merge projection and subquery requirements
// into the fetch query. Runner.Scope visits every Scoper exactly once,
// before the subject is loaded.
type Scoper interface {
	Scope(q *storage.FolderQuery)
}

// Handler is the capability to act on the fetched subject. A returned
// error aborts the pipeline and propagates to the caller untouched.
type Handler interface {
	Handle(ctx context.Context, f *folder.Folder) error
}

// Stopper is an optional capability the runner inspects after each
// invocation; once it reports true, no further stages run.
type Stopper interface {
	Stopped() bool
}

// Halt is an embeddable stop flag for stages that terminate the pipeline
// without raising an error.
type Halt struct {
	stopped bool
}

// StopPropagation marks the pipeline as finished after the current stage.
func (h *Halt) StopPropagation() {
	h.stopped = true
}

func (h *Halt) Stopped() bool {
	return h.stopped
}

// Runner executes a caller-ordered stage list. Stage order is significant
// and entirely caller-controlled.
type Runner struct {
	stages []any
}

func NewRunner(stages ...any) *Runner {
	return &Runner{stages: stages}
}

// Scope visits every stage's Scope capability. It always runs to
// completion: scope collection is a separate pass from handling, and a
// stage that will later stop the pipeline must not starve the stages
// behind it of their data.
func (r *Runner) Scope(q *storage.FolderQuery) {
	for _, stage := range r.stages {
		if s, ok := stage.(Scoper); ok {
			s.Scope(q)
		}
	}
}

// Handle invokes the stages in declared order against the subject. The
// first error aborts the run; a stage whose stop flag is set after its
// invocation terminates the run silently.
func (r *Runner) Handle(ctx context.Context, f *folder.Folder) error {
	for _, stage := range r.stages {
		if h, ok := stage.(Handler); ok {
			if err := h.Handle(ctx, f); err != nil {
				abortsCounter.Inc()
				return err
			}
		}

		if s, ok := stage.(Stopper); ok && s.Stopped() {
			break
		}
	}

	return nil
}

// Execute is the subject fetcher: it collects every stage's requirements,
// loads the subject in a single query, and runs the stages against it.
func Execute(ctx context.Context, ds storage.FolderDatastore, folderID publicid.FolderID, stages ...any) error {
	runsCounter.Inc()

	runner := NewRunner(stages...)

	q := storage.NewFolderQuery(folderID)
	runner.Scope(q)

	f, err := ds.FetchFolder(ctx, q)
	if err != nil {
		return err
	}

	return runner.Handle(ctx, f)
}
