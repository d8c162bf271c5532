package commands

import (
	"context"

	"github.com/bookmarkd/bookmarkd/internal/deferred"
	"github.com/bookmarkd/bookmarkd/internal/domain"
	"github.com/bookmarkd/bookmarkd/internal/handlers"
	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/folder/settings"
	"github.com/bookmarkd/bookmarkd/pkg/logger"
	"github.com/bookmarkd/bookmarkd/pkg/pipeline"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

type DeleteRoleRequest struct {
	FolderID publicid.FolderID
	ActorID  int64
	RoleID   publicid.RoleID
}

type DeleteRoleCommand struct {
	logger    logger.Logger
	datastore storage.FolderDatastore
	queue     *deferred.Queue
}

func NewDeleteRoleCommand(ds storage.FolderDatastore, queue *deferred.Queue, l logger.Logger) *DeleteRoleCommand {
	return &DeleteRoleCommand{
		logger:    l,
		datastore: ds,
		queue:     queue,
	}
}

func (c *DeleteRoleCommand) Execute(ctx context.Context, req *DeleteRoleRequest) error {
	return pipeline.Execute(ctx, c.datastore, req.FolderID,
		handlers.FolderExistsConstraint{},
		handlers.MustBeACollaboratorConstraint{UserID: req.ActorID},
		handlers.MustNotBeSuspendedConstraint{UserID: req.ActorID},
		handlers.PermissionConstraint{UserID: req.ActorID, Permission: folder.PermissionManageRoles},
		roleExistsConstraint{roleID: req.RoleID},
		deleteRoleAction{datastore: c.datastore, roleID: req.RoleID},
		handlers.TouchFolderAction{Datastore: c.datastore},
		handlers.LogActivity(c.datastore, c.queue, settings.KeyLogRoleChanged, storage.ActivityRoleChanged, map[string]any{
			"role_id":    req.RoleID.String(),
			"change":     "deleted",
			"changed_by": req.ActorID,
		}),
	)
}

type deleteRoleAction struct {
	datastore storage.FolderDatastore
	roleID    publicid.RoleID
}

func (a deleteRoleAction) Handle(ctx context.Context, f *folder.Folder) error {
	err := a.datastore.DeleteRole(ctx, f.ID.Value(), a.roleID)
	return storeNotFound(err, domain.ErrRoleNotFound)
}
