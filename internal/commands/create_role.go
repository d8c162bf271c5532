package commands

import (
	"context"
	"sort"
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

const maxRoleNameLength = 64

var (
	errDuplicateRoleName = domain.Conflict("DuplicateRoleName", "A role with the same name already exists for the folder.")
	errDuplicateRole     = domain.Conflict("DuplicateRole", "A role with the exact same permissions already exists for the folder.")
	errInvalidRoleName   = domain.BadRequest("InvalidRoleName", "The role name must be between 1 and 64 characters.")
	errNoRolePermissions = domain.BadRequest("NoRolePermissions", "A role must have at least one permission.")
)

type CreateRoleRequest struct {
	FolderID    publicid.FolderID
	ActorID     int64
	Name        string
	Permissions []folder.Permission
}

type CreateRoleCommand struct {
	logger    logger.Logger
	datastore storage.FolderDatastore
	queue     *deferred.Queue
}

func NewCreateRoleCommand(ds storage.FolderDatastore, queue *deferred.Queue, l logger.Logger) *CreateRoleCommand {
	return &CreateRoleCommand{
		logger:    l,
		datastore: ds,
		queue:     queue,
	}
}

func (c *CreateRoleCommand) Execute(ctx context.Context, req *CreateRoleRequest) (publicid.RoleID, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxRoleNameLength {
		return publicid.RoleID{}, errInvalidRoleName
	}

	permissions, err := dedupePermissions(req.Permissions)
	if err != nil {
		return publicid.RoleID{}, err
	}

	roleID := publicid.MustNewRoleID()

	err = pipeline.Execute(ctx, c.datastore, req.FolderID,
		handlers.FolderExistsConstraint{},
		handlers.MustBeACollaboratorConstraint{UserID: req.ActorID},
		handlers.MustNotBeSuspendedConstraint{UserID: req.ActorID},
		handlers.PermissionConstraint{UserID: req.ActorID, Permission: folder.PermissionManageRoles},
		uniqueRoleNameConstraint{name: name},
		uniqueRolePermissionsConstraint{permissions: permissions},
		createRoleAction{
			datastore:   c.datastore,
			roleID:      roleID,
			name:        name,
			permissions: permissions,
		},
		handlers.TouchFolderAction{Datastore: c.datastore},
		handlers.LogActivity(c.datastore, c.queue, settings.KeyLogRoleChanged, storage.ActivityRoleChanged, map[string]any{
			"role_id":     roleID.String(),
			"name":        name,
			"permissions": permissions,
			"change":      "created",
			"changed_by":  req.ActorID,
		}),
	)
	if err != nil {
		return publicid.RoleID{}, err
	}

	return roleID, nil
}

// dedupePermissions validates each permission against the catalog and
// returns the set sorted and de-duplicated so the exact-set comparison
// against existing roles is order-insensitive.
func dedupePermissions(permissions []folder.Permission) ([]folder.Permission, error) {
	if len(permissions) == 0 {
		return nil, errNoRolePermissions
	}

	seen := make(map[folder.Permission]struct{}, len(permissions))
	out := make([]folder.Permission, 0, len(permissions))
	for _, p := range permissions {
		if !folder.IsValidPermission(p) {
			return nil, domain.BadRequest("InvalidPermission", "Unknown permission: "+string(p))
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

type uniqueRoleNameConstraint struct {
	name string
}

func (c uniqueRoleNameConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.RoleNameExists{Name: c.name})
}

func (c uniqueRoleNameConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if f.Bool(storage.RoleNameExists{Name: c.name}.Alias()) {
		return errDuplicateRoleName
	}
	return nil
}

type uniqueRolePermissionsConstraint struct {
	permissions []folder.Permission
}

func (c uniqueRolePermissionsConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.RoleWithPermissionsExists{Permissions: c.permissions})
}

func (c uniqueRolePermissionsConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if f.Bool(storage.RoleWithPermissionsExists{Permissions: c.permissions}.Alias()) {
		return errDuplicateRole
	}
	return nil
}

type createRoleAction struct {
	datastore   storage.FolderDatastore
	roleID      publicid.RoleID
	name        string
	permissions []folder.Permission
}

func (a createRoleAction) Handle(ctx context.Context, f *folder.Folder) error {
	err := a.datastore.CreateRole(ctx, storage.NewRole{
		FolderID:    f.ID.Value(),
		PublicID:    a.roleID,
		Name:        a.name,
		Permissions: a.permissions,
	})

	// Two concurrent creates can both pass the scope-time checks; the
	// store's unique constraints decide the race.
	return storeConflict(err, errDuplicateRoleName)
}
