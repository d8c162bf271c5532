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

func TestLeaveFolder(t *testing.T) {
	const actorID int64 = 7

	setup := func(t *testing.T) (*fixture, *LeaveFolderCommand) {
		fx := newFixture(t)
		fx.addCollaborator(actorID)
		return fx, NewLeaveFolderCommand(fx.ds, fx.queue, fx.notifier, logger.NewNoopLogger())
	}

	t.Run("collaborator_leaves", func(t *testing.T) {
		fx, cmd := setup(t)

		req := &LeaveFolderRequest{FolderID: fx.folderID, ActorID: actorID}
		require.NoError(t, cmd.Execute(context.Background(), req))

		require.Equal(t, int64(1), fx.ds.MetricSummary(fx.rowID, actorID, storage.MetricCollaboratorExit))
		require.Len(t, fx.notifier.Sent(), 1)

		// Membership is gone, so a second leave reads as a missing folder.
		err := cmd.Execute(context.Background(), req)
		require.ErrorIs(t, err, domain.ErrFolderNotFound)
	})

	t.Run("owner_cannot_leave", func(t *testing.T) {
		fx, cmd := setup(t)

		err := cmd.Execute(context.Background(), &LeaveFolderRequest{
			FolderID: fx.folderID,
			ActorID:  fx.ownerID,
		})
		require.ErrorIs(t, err, errOwnerCannotLeave)
		require.True(t, domain.IsBadRequest(err))
	})

	t.Run("non_member_sees_not_found", func(t *testing.T) {
		fx, cmd := setup(t)

		err := cmd.Execute(context.Background(), &LeaveFolderRequest{
			FolderID: fx.folderID,
			ActorID:  99,
		})
		require.ErrorIs(t, err, domain.ErrFolderNotFound)
	})
}

func TestLeaveFolderExitNotificationMode(t *testing.T) {
	const actorID int64 = 7

	writeModeSettings := mustSettings(t, map[string]any{
		"notifications": map[string]any{
			"collaborator_exit": map[string]any{"mode": "hasWritePermission"},
		},
	})

	newModeFixture := func(t *testing.T) (*fixture, *LeaveFolderCommand) {
		fx := newFixtureWith(t, storage.NewFolder{
			OwnerID:    ownerUserID,
			Name:       "selective folder",
			Visibility: folder.VisibilityPublic,
			Settings:   writeModeSettings,
		})
		fx.addCollaborator(actorID)
		return fx, NewLeaveFolderCommand(fx.ds, fx.queue, fx.notifier, logger.NewNoopLogger())
	}

	t.Run("silent_for_read_only_collaborator", func(t *testing.T) {
		fx, cmd := newModeFixture(t)

		err := cmd.Execute(context.Background(), &LeaveFolderRequest{
			FolderID: fx.folderID,
			ActorID:  actorID,
		})
		require.NoError(t, err)
		require.Empty(t, fx.notifier.Sent())
	})

	t.Run("notifies_for_writing_collaborator", func(t *testing.T) {
		fx, cmd := newModeFixture(t)
		fx.grantPermissions(actorID, folder.PermissionAddBookmarks)

		err := cmd.Execute(context.Background(), &LeaveFolderRequest{
			FolderID: fx.folderID,
			ActorID:  actorID,
		})
		require.NoError(t, err)
		require.Len(t, fx.notifier.Sent(), 1)
	})
}
