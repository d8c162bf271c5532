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

var (
	errRolePermissionNotFound        = domain.NotFound("RolePermissionNotFound", "The role does not have the permission.")
	errCannotRemoveAllRolePermission = domain.BadRequest("CannotRemoveAllRolePermissions", "A role must keep at least one permission.")
)

type RemoveRolePermissionRequest struct {
	FolderID   publicid.FolderID
	ActorID    int64
	RoleID     publicid.RoleID
	Permission folder.Permission
}

type RemoveRolePermissionCommand struct {
	logger    logger.Logger
	datastore storage.FolderDatastore
	queue     *deferred.Queue
}

func NewRemoveRolePermissionCommand(ds storage.FolderDatastore, queue *deferred.Queue, l logger.Logger) *RemoveRolePermissionCommand {
	return &RemoveRolePermissionCommand{
		logger:    l,
		datastore: ds,
		queue:     queue,
	}
}

func (c *RemoveRolePermissionCommand) Execute(ctx context.Context, req *RemoveRolePermissionRequest) error {
	if !folder.IsValidPermission(req.Permission) {
		return domain.BadRequest("InvalidPermission", "Unknown permission: "+string(req.Permission))
	}

	return pipeline.Execute(ctx, c.datastore, req.FolderID,
		handlers.FolderExistsConstraint{},
		handlers.MustBeACollaboratorConstraint{UserID: req.ActorID},
		handlers.MustNotBeSuspendedConstraint{UserID: req.ActorID},
		handlers.PermissionConstraint{UserID: req.ActorID, Permission: folder.PermissionManageRoles},
		roleExistsConstraint{roleID: req.RoleID},
		roleHasPermissionConstraint{roleID: req.RoleID, permission: req.Permission},
		roleKeepsAPermissionConstraint{roleID: req.RoleID},
		removeRolePermissionAction{datastore: c.datastore, roleID: req.RoleID, permission: req.Permission},
		handlers.TouchFolderAction{Datastore: c.datastore},
		handlers.LogActivity(c.datastore, c.queue, settings.KeyLogRoleChanged, storage.ActivityRoleChanged, map[string]any{
			"role_id":    req.RoleID.String(),
			"permission": req.Permission,
			"change":     "permission_removed",
			"changed_by": req.ActorID,
		}),
	)
}

type roleHasPermissionConstraint struct {
	roleID     publicid.RoleID
	permission folder.Permission
}

func (c roleHasPermissionConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.RoleHasPermission{RoleID: c.roleID, Permission: c.permission})
}

func (c roleHasPermissionConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if !f.Bool(storage.RoleHasPermission{RoleID: c.roleID, Permission: c.permission}.Alias()) {
		return errRolePermissionNotFound
	}
	return nil
}

// roleKeepsAPermissionConstraint rejects removing the role's last
// permission. It fires only at a count of exactly one: a count of zero
// means the permission being removed is absent, which is the preceding
// roleHasPermissionConstraint's failure to report.
type roleKeepsAPermissionConstraint struct {
	roleID publicid.RoleID
}

func (c roleKeepsAPermissionConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.RolePermissionCount{RoleID: c.roleID})
}

func (c roleKeepsAPermissionConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if f.Count(storage.RolePermissionCount{RoleID: c.roleID}.Alias()) == 1 {
		return errCannotRemoveAllRolePermission
	}
	return nil
}

type removeRolePermissionAction struct {
	datastore  storage.FolderDatastore
	roleID     publicid.RoleID
	permission folder.Permission
}

func (a removeRolePermissionAction) Handle(ctx context.Context, f *folder.Folder) error {
	err := a.datastore.RemoveRolePermission(ctx, f.ID.Value(), a.roleID, a.permission)
	return storeNotFound(err, errRolePermissionNotFound)
}
