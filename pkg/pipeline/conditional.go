package pipeline

import (
	"context"

	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

// Conditional wraps nested stages behind a predicate evaluated against the
// fetched subject. The nested stages' Scope capabilities always run, so
// their data requirements are satisfied whether or not the predicate ends
// up holding; only their Handle capabilities are gated.
//
// This is the building block for "log activity unless disabled" patterns
// where the decision needs data that only exists after the fetch.
type Conditional struct {
	when   func(f *folder.Folder) bool
	stages []any
}

func When(predicate func(f *folder.Folder) bool, stages ...any) *Conditional {
	return &Conditional{when: predicate, stages: stages}
}

func (c *Conditional) Scope(q *storage.FolderQuery) {
	for _, stage := range c.stages {
		if s, ok := stage.(Scoper); ok {
			s.Scope(q)
		}
	}
}

func (c *Conditional) Handle(ctx context.Context, f *folder.Folder) error {
	if !c.when(f) {
		return nil
	}

	for _, stage := range c.stages {
		if h, ok := stage.(Handler); ok {
			if err := h.Handle(ctx, f); err != nil {
				return err
			}
		}

		if s, ok := stage.(Stopper); ok && s.Stopped() {
			break
		}
	}

	return nil
}
