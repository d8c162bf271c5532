package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookmarkd/bookmarkd/internal/domain"
	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

type countingStage struct {
	invocations int
}

func (s *countingStage) Handle(ctx context.Context, f *folder.Folder) error {
	s.invocations++
	return nil
}

type failingStage struct {
	err error
}

func (s *failingStage) Handle(ctx context.Context, f *folder.Folder) error {
	return s.err
}

type haltingStage struct {
	Halt
}

func (s *haltingStage) Handle(ctx context.Context, f *folder.Folder) error {
	s.StopPropagation()
	return nil
}

type scopingStage struct {
	field folder.Field
	check storage.Check
}

func (s *scopingStage) Scope(q *storage.FolderQuery) {
	if s.field != 0 {
		q.WithFields(s.field)
	}
	if s.check != nil {
		q.WithCheck(s.check)
	}
}

func TestConstraintErrorPreventsLaterStages(t *testing.T) {
	passing := &countingStage{}
	failing := &failingStage{err: domain.ErrFolderNotFound}
	action := &countingStage{}

	runner := NewRunner(passing, failing, action)

	err := runner.Handle(context.Background(), folder.New())
	require.ErrorIs(t, err, domain.ErrFolderNotFound)
	require.Equal(t, 1, passing.invocations)
	require.Equal(t, 0, action.invocations)
}

func TestStopFlagShortCircuits(t *testing.T) {
	halting := &haltingStage{}
	after := &countingStage{}

	runner := NewRunner(halting, after)

	err := runner.Handle(context.Background(), folder.New())
	require.NoError(t, err)
	require.Equal(t, 0, after.invocations)
}

func TestScopeVisitsEveryStageDespiteStopFlags(t *testing.T) {
	halting := &haltingStage{}
	scoping := &scopingStage{
		field: folder.FieldSettings,
		check: storage.UserIsCollaborator{UserID: 7},
	}

	runner := NewRunner(halting, scoping)

	q := storage.NewFolderQuery(mustFolderID(t))
	runner.Scope(q)

	require.Contains(t, q.Fields(), folder.FieldSettings)

	aliases := make([]string, 0)
	for _, c := range q.Checks() {
		aliases = append(aliases, c.Alias())
	}
	require.Contains(t, aliases, storage.UserIsCollaborator{UserID: 7}.Alias())
}

func TestStagesRunInDeclaredOrder(t *testing.T) {
	var order []string

	runner := NewRunner(
		handlerFunc(func() { order = append(order, "first") }),
		handlerFunc(func() { order = append(order, "second") }),
		handlerFunc(func() { order = append(order, "third") }),
	)

	require.NoError(t, runner.Handle(context.Background(), folder.New()))
	require.Equal(t, []string{"first", "second", "third"}, order)
}

func TestConditionalGatesNestedHandlersNotScope(t *testing.T) {
	nestedAction := &countingStage{}
	nestedScope := &scopingStage{field: folder.FieldVisibility}

	suppressed := When(func(f *folder.Folder) bool { return false }, nestedScope, nestedAction)

	q := storage.NewFolderQuery(mustFolderID(t))
	runner := NewRunner(suppressed)
	runner.Scope(q)
	require.Contains(t, q.Fields(), folder.FieldVisibility)

	require.NoError(t, runner.Handle(context.Background(), folder.New()))
	require.Equal(t, 0, nestedAction.invocations)

	exposed := When(func(f *folder.Folder) bool { return true }, nestedAction)
	require.NoError(t, NewRunner(exposed).Handle(context.Background(), folder.New()))
	require.Equal(t, 1, nestedAction.invocations)
}

func TestConditionalPropagatesNestedErrors(t *testing.T) {
	wrapped := When(
		func(f *folder.Folder) bool { return true },
		&failingStage{err: domain.ErrPermissionDenied},
	)

	err := NewRunner(wrapped).Handle(context.Background(), folder.New())
	require.ErrorIs(t, err, domain.ErrPermissionDenied)
}

type handlerFunc func()

func (fn handlerFunc) Handle(ctx context.Context, f *folder.Folder) error {
	fn()
	return nil
}

func mustFolderID(t *testing.T) publicid.FolderID {
	t.Helper()
	return publicid.MustNewFolderID()
}
