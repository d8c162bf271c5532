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

var errRoleNotAssigned = domain.NotFound("RoleNotAssigned", "The collaborator does not have the role.")

type RevokeRoleRequest struct {
	FolderID       publicid.FolderID
	ActorID        int64
	RoleID         publicid.RoleID
	CollaboratorID int64
}

type RevokeRoleCommand struct {
	logger    logger.Logger
	datastore storage.FolderDatastore
	queue     *deferred.Queue
}

func NewRevokeRoleCommand(ds storage.FolderDatastore, queue *deferred.Queue, l logger.Logger) *RevokeRoleCommand {
	return &RevokeRoleCommand{
		logger:    l,
		datastore: ds,
		queue:     queue,
	}
}

func (c *RevokeRoleCommand) Execute(ctx context.Context, req *RevokeRoleRequest) error {
	return pipeline.Execute(ctx, c.datastore, req.FolderID,
		handlers.FolderExistsConstraint{},
		handlers.MustBeACollaboratorConstraint{UserID: req.ActorID},
		handlers.MustNotBeSuspendedConstraint{UserID: req.ActorID},
		handlers.PermissionConstraint{UserID: req.ActorID, Permission: folder.PermissionManageRoles},
		roleExistsConstraint{roleID: req.RoleID},
		roleAssignedConstraint{roleID: req.RoleID, targetID: req.CollaboratorID},
		revokeRoleAction{datastore: c.datastore, roleID: req.RoleID, targetID: req.CollaboratorID},
		handlers.LogActivity(c.datastore, c.queue, settings.KeyLogRoleChanged, storage.ActivityRoleChanged, map[string]any{
			"role_id":         req.RoleID.String(),
			"collaborator_id": req.CollaboratorID,
			"change":          "revoked",
			"changed_by":      req.ActorID,
		}),
	)
}

type roleAssignedConstraint struct {
	roleID   publicid.RoleID
	targetID int64
}

func (c roleAssignedConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.CollaboratorHasRole{UserID: c.targetID, RoleID: c.roleID})
}

func (c roleAssignedConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if !f.Bool(storage.CollaboratorHasRole{UserID: c.targetID, RoleID: c.roleID}.Alias()) {
		return errRoleNotAssigned
	}
	return nil
}

type revokeRoleAction struct {
	datastore storage.FolderDatastore
	roleID    publicid.RoleID
	targetID  int64
}

func (a revokeRoleAction) Handle(ctx context.Context, f *folder.Folder) error {
	err := a.datastore.RevokeRole(ctx, f.ID.Value(), a.roleID, a.targetID)
	return storeNotFound(err, errRoleNotAssigned)
}
