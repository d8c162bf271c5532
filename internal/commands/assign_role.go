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
	errRoleAlreadyAssigned  = domain.Conflict("RoleAlreadyAssigned", "The collaborator already has the role.")
	errCannotAssignToOwner  = domain.BadRequest("CannotAssignRoleToOwner", "The folder owner holds every permission and cannot be assigned a role.")
	errRoleAssignmentTarget = domain.NotFound("UserNotACollaborator", "The user is not a collaborator on the folder.")
)

type AssignRoleRequest struct {
	FolderID       publicid.FolderID
	ActorID        int64
	RoleID         publicid.RoleID
	CollaboratorID int64
}

type AssignRoleCommand struct {
	logger    logger.Logger
	datastore storage.FolderDatastore
	queue     *deferred.Queue
}

func NewAssignRoleCommand(ds storage.FolderDatastore, queue *deferred.Queue, l logger.Logger) *AssignRoleCommand {
	return &AssignRoleCommand{
		logger:    l,
		datastore: ds,
		queue:     queue,
	}
}

func (c *AssignRoleCommand) Execute(ctx context.Context, req *AssignRoleRequest) error {
	return pipeline.Execute(ctx, c.datastore, req.FolderID,
		handlers.FolderExistsConstraint{},
		handlers.MustBeACollaboratorConstraint{UserID: req.ActorID},
		handlers.MustNotBeSuspendedConstraint{UserID: req.ActorID},
		handlers.PermissionConstraint{UserID: req.ActorID, Permission: folder.PermissionManageRoles},
		roleExistsConstraint{roleID: req.RoleID},
		assigneeNotOwnerConstraint{targetID: req.CollaboratorID},
		assigneeIsCollaboratorConstraint{targetID: req.CollaboratorID},
		roleNotAssignedConstraint{roleID: req.RoleID, targetID: req.CollaboratorID},
		assignRoleAction{datastore: c.datastore, roleID: req.RoleID, targetID: req.CollaboratorID},
		handlers.RecordMetricAction{
			Datastore: c.datastore,
			Queue:     c.queue,
			ActorID:   req.ActorID,
			Type:      storage.MetricRoleAssigned,
		},
		handlers.LogActivity(c.datastore, c.queue, settings.KeyLogRoleChanged, storage.ActivityRoleChanged, map[string]any{
			"role_id":         req.RoleID.String(),
			"collaborator_id": req.CollaboratorID,
			"change":          "assigned",
			"changed_by":      req.ActorID,
		}),
	)
}

type assigneeNotOwnerConstraint struct {
	targetID int64
}

func (c assigneeNotOwnerConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if f.IsOwner(c.targetID) {
		return errCannotAssignToOwner
	}
	return nil
}

type assigneeIsCollaboratorConstraint struct {
	targetID int64
}

func (c assigneeIsCollaboratorConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.UserIsCollaborator{UserID: c.targetID})
}

func (c assigneeIsCollaboratorConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if !f.Bool(storage.UserIsCollaborator{UserID: c.targetID}.Alias()) {
		return errRoleAssignmentTarget
	}
	return nil
}

type roleNotAssignedConstraint struct {
	roleID   publicid.RoleID
	targetID int64
}

func (c roleNotAssignedConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.CollaboratorHasRole{UserID: c.targetID, RoleID: c.roleID})
}

func (c roleNotAssignedConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if f.Bool(storage.CollaboratorHasRole{UserID: c.targetID, RoleID: c.roleID}.Alias()) {
		return errRoleAlreadyAssigned
	}
	return nil
}

type assignRoleAction struct {
	datastore storage.FolderDatastore
	roleID    publicid.RoleID
	targetID  int64
}

func (a assignRoleAction) Handle(ctx context.Context, f *folder.Folder) error {
	err := a.datastore.AssignRole(ctx, f.ID.Value(), a.roleID, a.targetID)
	err = storeConflict(err, errRoleAlreadyAssigned)
	return storeNotFound(err, domain.ErrRoleNotFound)
}
