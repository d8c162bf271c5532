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

var errRoleAlreadyHasPermission = domain.Conflict("RoleAlreadyHasPermission", "The role already has the permission.")

type AddRolePermissionRequest struct {
	FolderID   publicid.FolderID
	ActorID    int64
	RoleID     publicid.RoleID
	Permission folder.Permission
}

type AddRolePermissionCommand struct {
	logger    logger.Logger
	datastore storage.FolderDatastore
	queue     *deferred.Queue
}

func NewAddRolePermissionCommand(ds storage.FolderDatastore, queue *deferred.Queue, l logger.Logger) *AddRolePermissionCommand {
	return &AddRolePermissionCommand{
		logger:    l,
		datastore: ds,
		queue:     queue,
	}
}

func (c *AddRolePermissionCommand) Execute(ctx context.Context, req *AddRolePermissionRequest) error {
	if !folder.IsValidPermission(req.Permission) {
		return domain.BadRequest("InvalidPermission", "Unknown permission: "+string(req.Permission))
	}

	return pipeline.Execute(ctx, c.datastore, req.FolderID,
		handlers.FolderExistsConstraint{},
		handlers.MustBeACollaboratorConstraint{UserID: req.ActorID},
		handlers.MustNotBeSuspendedConstraint{UserID: req.ActorID},
		handlers.PermissionConstraint{UserID: req.ActorID, Permission: folder.PermissionManageRoles},
		roleExistsConstraint{roleID: req.RoleID},
		roleLacksPermissionConstraint{roleID: req.RoleID, permission: req.Permission},
		addRolePermissionAction{datastore: c.datastore, roleID: req.RoleID, permission: req.Permission},
		handlers.TouchFolderAction{Datastore: c.datastore},
		handlers.LogActivity(c.datastore, c.queue, settings.KeyLogRoleChanged, storage.ActivityRoleChanged, map[string]any{
			"role_id":    req.RoleID.String(),
			"permission": req.Permission,
			"change":     "permission_added",
			"changed_by": req.ActorID,
		}),
	)
}

type roleLacksPermissionConstraint struct {
	roleID     publicid.RoleID
	permission folder.Permission
}

func (c roleLacksPermissionConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.RoleHasPermission{RoleID: c.roleID, Permission: c.permission})
}

func (c roleLacksPermissionConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if f.Bool(storage.RoleHasPermission{RoleID: c.roleID, Permission: c.permission}.Alias()) {
		return errRoleAlreadyHasPermission
	}
	return nil
}

type addRolePermissionAction struct {
	datastore  storage.FolderDatastore
	roleID     publicid.RoleID
	permission folder.Permission
}

func (a addRolePermissionAction) Handle(ctx context.Context, f *folder.Folder) error {
	err := a.datastore.AddRolePermission(ctx, f.ID.Value(), a.roleID, a.permission)
	err = storeConflict(err, errRoleAlreadyHasPermission)
	return storeNotFound(err, domain.ErrRoleNotFound)
}
