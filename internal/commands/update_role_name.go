package commands

import (
	"context"
	"strings"

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

type UpdateRoleNameRequest struct {
	FolderID publicid.FolderID
	ActorID  int64
	RoleID   publicid.RoleID
	Name     string
}

type UpdateRoleNameCommand struct {
	logger    logger.Logger
	datastore storage.FolderDatastore
	queue     *deferred.Queue
}

func NewUpdateRoleNameCommand(ds storage.FolderDatastore, queue *deferred.Queue, l logger.Logger) *UpdateRoleNameCommand {
	return &UpdateRoleNameCommand{
		logger:    l,
		datastore: ds,
		queue:     queue,
	}
}

func (c *UpdateRoleNameCommand) Execute(ctx context.Context, req *UpdateRoleNameRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxRoleNameLength {
		return errInvalidRoleName
	}

	return pipeline.Execute(ctx, c.datastore, req.FolderID,
		handlers.FolderExistsConstraint{},
		handlers.MustBeACollaboratorConstraint{UserID: req.ActorID},
		handlers.MustNotBeSuspendedConstraint{UserID: req.ActorID},
		handlers.PermissionConstraint{UserID: req.ActorID, Permission: folder.PermissionManageRoles},
		roleExistsConstraint{roleID: req.RoleID},
		uniqueRoleNameConstraint{name: name},
		updateRoleNameAction{datastore: c.datastore, roleID: req.RoleID, name: name},
		handlers.TouchFolderAction{Datastore: c.datastore},
		handlers.LogActivity(c.datastore, c.queue, settings.KeyLogRoleChanged, storage.ActivityRoleChanged, map[string]any{
			"role_id":    req.RoleID.String(),
			"name":       name,
			"change":     "renamed",
			"changed_by": req.ActorID,
		}),
	)
}

type roleExistsConstraint struct {
	roleID publicid.RoleID
}

func (c roleExistsConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.RoleExists{RoleID: c.roleID})
}

func (c roleExistsConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if !f.Bool(storage.RoleExists{RoleID: c.roleID}.Alias()) {
		return domain.ErrRoleNotFound
	}
	return nil
}

type updateRoleNameAction struct {
	datastore storage.FolderDatastore
	roleID    publicid.RoleID
	name      string
}

func (a updateRoleNameAction) Handle(ctx context.Context, f *folder.Folder) error {
	err := a.datastore.UpdateRoleName(ctx, f.ID.Value(), a.roleID, a.name)
	err = storeConflict(err, errDuplicateRoleName)
	return storeNotFound(err, domain.ErrRoleNotFound)
}
