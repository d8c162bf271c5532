package commands

import (
	"context"
	"strconv"

	"github.com/bookmarkd/bookmarkd/internal/deferred"
	"github.com/bookmarkd/bookmarkd/internal/domain"
	"github.com/bookmarkd/bookmarkd/internal/handlers"
	"github.com/bookmarkd/bookmarkd/internal/notifications"
	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/folder/settings"
	"github.com/bookmarkd/bookmarkd/pkg/logger"
	"github.com/bookmarkd/bookmarkd/pkg/pipeline"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

var errOwnerCannotLeave = domain.BadRequest("OwnerCannotLeaveFolder", "The folder owner cannot leave their own folder.")

type LeaveFolderRequest struct {
	FolderID publicid.FolderID
	ActorID  int64
}

type LeaveFolderCommand struct {
	logger    logger.Logger
	datastore storage.FolderDatastore
	queue     *deferred.Queue
	notifier  notifications.Notifier
}

func NewLeaveFolderCommand(ds storage.FolderDatastore, queue *deferred.Queue, notifier notifications.Notifier, l logger.Logger) *LeaveFolderCommand {
	return &LeaveFolderCommand{
		logger:    l,
		datastore: ds,
		queue:     queue,
		notifier:  notifier,
	}
}

func (c *LeaveFolderCommand) Execute(ctx context.Context, req *LeaveFolderRequest) error {
	// The exit-notification mode may require knowing whether the leaving
	// collaborator could write to the folder; the check is injected at
	// scope time like any other data requirement.
	writeCheck := storage.UserHasPermission{UserID: req.ActorID, Permission: folder.PermissionAddBookmarks}

	return pipeline.Execute(ctx, c.datastore, req.FolderID,
		handlers.FolderExistsConstraint{},
		actorNotOwnerConstraint{actorID: req.ActorID},
		handlers.MustBeACollaboratorConstraint{UserID: req.ActorID},
		leaveFolderAction{datastore: c.datastore, actorID: req.ActorID},
		handlers.RecordMetricAction{
			Datastore: c.datastore,
			Queue:     c.queue,
			ActorID:   req.ActorID,
			Type:      storage.MetricCollaboratorExit,
		},
		handlers.LogActivity(c.datastore, c.queue, settings.KeyLogCollaboratorExit, storage.ActivityCollaboratorExit, map[string]any{
			"collaborator_id": req.ActorID,
		}),
		handlers.NotifyOwnerAction{
			Notifier: c.notifier,
			Queue:    c.queue,
			ActorID:  req.ActorID,
			Type:     notifications.TypeCollaboratorExit,
			EventKey: settings.KeyNotifyCollaboratorExit,
			Data:     map[string]string{"collaborator_id": strconv.FormatInt(req.ActorID, 10)},
			ModeScope: func(q *storage.FolderQuery) {
				q.WithCheck(writeCheck)
			},
			ModeAllows: func(f *folder.Folder) bool {
				mode := f.Settings.Value().String(settings.KeyCollaboratorExitMode)
				if mode == settings.ExitModeHasWritePermission {
					return f.Bool(writeCheck.Alias())
				}
				return true
			},
		},
	)
}

type actorNotOwnerConstraint struct {
	actorID int64
}

func (c actorNotOwnerConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if f.IsOwner(c.actorID) {
		return errOwnerCannotLeave
	}
	return nil
}

type leaveFolderAction struct {
	datastore storage.FolderDatastore
	actorID   int64
}

func (a leaveFolderAction) Handle(ctx context.Context, f *folder.Folder) error {
	err := a.datastore.RemoveCollaborator(ctx, f.ID.Value(), a.actorID)
	return storeNotFound(err, domain.ErrFolderNotFound)
}
