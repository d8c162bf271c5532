package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookmarkd/bookmarkd/internal/domain"
	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/logger"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

func TestSuspendCollaborator(t *testing.T) {
	const (
		actorID  int64 = 7
		targetID int64 = 8
	)

	setup := func(t *testing.T) (*fixture, *SuspendCollaboratorCommand) {
		fx := newFixture(t)
		fx.addCollaborator(actorID)
		fx.addCollaborator(targetID)
		fx.grantPermissions(actorID, folder.PermissionSuspendUsers)
		return fx, NewSuspendCollaboratorCommand(fx.ds, fx.queue, fx.notifier, logger.NewNoopLogger())
	}

	t.Run("indefinite_suspension", func(t *testing.T) {
		fx, cmd := setup(t)

		err := cmd.Execute(context.Background(), &SuspendCollaboratorRequest{
			FolderID:       fx.folderID,
			ActorID:        actorID,
			CollaboratorID: targetID,
		})
		require.NoError(t, err)

		require.Equal(t, int64(1), fx.ds.MetricSummary(fx.rowID, actorID, storage.MetricCollaboratorSuspended))
		require.Len(t, fx.notifier.Sent(), 1)

		// The suspended collaborator is now blocked from acting.
		err = cmd.Execute(context.Background(), &SuspendCollaboratorRequest{
			FolderID:       fx.folderID,
			ActorID:        targetID,
			CollaboratorID: actorID,
		})
		require.True(t, domain.IsForbidden(err))
	})

	t.Run("timed_suspension", func(t *testing.T) {
		fx, cmd := setup(t)
		hours := int64(24)

		err := cmd.Execute(context.Background(), &SuspendCollaboratorRequest{
			FolderID:       fx.folderID,
			ActorID:        actorID,
			CollaboratorID: targetID,
			DurationHours:  &hours,
		})
		require.NoError(t, err)
	})

	t.Run("duration_below_one_hour", func(t *testing.T) {
		fx, cmd := setup(t)
		hours := int64(0)

		err := cmd.Execute(context.Background(), &SuspendCollaboratorRequest{
			FolderID:       fx.folderID,
			ActorID:        actorID,
			CollaboratorID: targetID,
			DurationHours:  &hours,
		})
		require.ErrorIs(t, err, errInvalidSuspensionDuration)
	})

	t.Run("self_suspension", func(t *testing.T) {
		fx, cmd := setup(t)

		err := cmd.Execute(context.Background(), &SuspendCollaboratorRequest{
			FolderID:       fx.folderID,
			ActorID:        actorID,
			CollaboratorID: actorID,
		})
		require.ErrorIs(t, err, errCannotSuspendSelf)
	})

	t.Run("suspending_the_owner", func(t *testing.T) {
		fx, cmd := setup(t)

		err := cmd.Execute(context.Background(), &SuspendCollaboratorRequest{
			FolderID:       fx.folderID,
			ActorID:        actorID,
			CollaboratorID: fx.ownerID,
		})
		require.ErrorIs(t, err, errCannotSuspendOwner)
	})

	t.Run("target_not_a_collaborator", func(t *testing.T) {
		fx, cmd := setup(t)

		err := cmd.Execute(context.Background(), &SuspendCollaboratorRequest{
			FolderID:       fx.folderID,
			ActorID:        actorID,
			CollaboratorID: 99,
		})
		require.ErrorIs(t, err, errUserNotACollaborator)
	})

	t.Run("already_suspended", func(t *testing.T) {
		fx, cmd := setup(t)

		req := &SuspendCollaboratorRequest{
			FolderID:       fx.folderID,
			ActorID:        actorID,
			CollaboratorID: targetID,
		}
		require.NoError(t, cmd.Execute(context.Background(), req))

		err := cmd.Execute(context.Background(), req)
		require.ErrorIs(t, err, errCollaboratorAlreadySuspended)
	})

	t.Run("actor_without_permission", func(t *testing.T) {
		fx, cmd := setup(t)
		fx.addCollaborator(9)

		err := cmd.Execute(context.Background(), &SuspendCollaboratorRequest{
			FolderID:       fx.folderID,
			ActorID:        9,
			CollaboratorID: targetID,
		})
		require.ErrorIs(t, err, domain.ErrPermissionDenied)
	})
}

func TestReinstateCollaborator(t *testing.T) {
	const (
		actorID  int64 = 7
		targetID int64 = 8
	)

	setup := func(t *testing.T) (*fixture, *ReinstateCollaboratorCommand) {
		fx := newFixture(t)
		fx.addCollaborator(actorID)
		fx.addCollaborator(targetID)
		fx.grantPermissions(actorID, folder.PermissionSuspendUsers)
		return fx, NewReinstateCollaboratorCommand(fx.ds, fx.queue, logger.NewNoopLogger())
	}

	t.Run("lifts_an_active_suspension", func(t *testing.T) {
		fx, cmd := setup(t)
		require.NoError(t, fx.ds.SuspendCollaborator(context.Background(), storage.SuspensionRecord{
			FolderID:    fx.rowID,
			UserID:      targetID,
			SuspendedBy: actorID,
		}))

		err := cmd.Execute(context.Background(), &ReinstateCollaboratorRequest{
			FolderID:       fx.folderID,
			ActorID:        actorID,
			CollaboratorID: targetID,
		})
		require.NoError(t, err)

		// Reinstating twice surfaces the record's absence.
		err = cmd.Execute(context.Background(), &ReinstateCollaboratorRequest{
			FolderID:       fx.folderID,
			ActorID:        actorID,
			CollaboratorID: targetID,
		})
		require.ErrorIs(t, err, errCollaboratorNotSuspended)
	})

	t.Run("target_not_suspended", func(t *testing.T) {
		fx, cmd := setup(t)

		err := cmd.Execute(context.Background(), &ReinstateCollaboratorRequest{
			FolderID:       fx.folderID,
			ActorID:        actorID,
			CollaboratorID: targetID,
		})
		require.ErrorIs(t, err, errCollaboratorNotSuspended)
		require.True(t, domain.IsNotFound(err))
	})
}
