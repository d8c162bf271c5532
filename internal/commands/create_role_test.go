package commands

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookmarkd/bookmarkd/internal/domain"
	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/logger"
)

func TestCreateRole(t *testing.T) {
	setup := func(t *testing.T) (*fixture, *CreateRoleCommand) {
		fx := newFixture(t)
		return fx, NewCreateRoleCommand(fx.ds, fx.queue, logger.NewNoopLogger())
	}

	t.Run("returns_a_role_id", func(t *testing.T) {
		fx, cmd := setup(t)

		roleID, err := cmd.Execute(context.Background(), &CreateRoleRequest{
			FolderID:    fx.folderID,
			ActorID:     fx.ownerID,
			Name:        "librarian",
			Permissions: []folder.Permission{folder.PermissionAddBookmarks},
		})
		require.NoError(t, err)
		require.False(t, roleID.IsZero())
		require.True(t, strings.HasPrefix(roleID.String(), "rol_"))
	})

	t.Run("duplicate_name_conflicts", func(t *testing.T) {
		fx, cmd := setup(t)

		_, err := cmd.Execute(context.Background(), &CreateRoleRequest{
			FolderID:    fx.folderID,
			ActorID:     fx.ownerID,
			Name:        "librarian",
			Permissions: []folder.Permission{folder.PermissionAddBookmarks},
		})
		require.NoError(t, err)

		_, err = cmd.Execute(context.Background(), &CreateRoleRequest{
			FolderID:    fx.folderID,
			ActorID:     fx.ownerID,
			Name:        "librarian",
			Permissions: []folder.Permission{folder.PermissionRemoveBookmarks},
		})
		require.ErrorIs(t, err, errDuplicateRoleName)
	})

	t.Run("validation", func(t *testing.T) {
		fx, cmd := setup(t)

		tests := map[string]*CreateRoleRequest{
			"empty_name": {
				FolderID:    fx.folderID,
				ActorID:     fx.ownerID,
				Name:        "   ",
				Permissions: []folder.Permission{folder.PermissionAddBookmarks},
			},
			"name_too_long": {
				FolderID:    fx.folderID,
				ActorID:     fx.ownerID,
				Name:        strings.Repeat("x", maxRoleNameLength+1),
				Permissions: []folder.Permission{folder.PermissionAddBookmarks},
			},
			"no_permissions": {
				FolderID: fx.folderID,
				ActorID:  fx.ownerID,
				Name:     "empty role",
			},
			"unknown_permission": {
				FolderID:    fx.folderID,
				ActorID:     fx.ownerID,
				Name:        "bad role",
				Permissions: []folder.Permission{"launch_missiles"},
			},
		}

		for name, req := range tests {
			t.Run(name, func(t *testing.T) {
				_, err := cmd.Execute(context.Background(), req)
				require.True(t, domain.IsBadRequest(err))
			})
		}
	})

	t.Run("collaborator_needs_manage_roles", func(t *testing.T) {
		fx, cmd := setup(t)
		fx.addCollaborator(7)

		_, err := cmd.Execute(context.Background(), &CreateRoleRequest{
			FolderID:    fx.folderID,
			ActorID:     7,
			Name:        "librarian",
			Permissions: []folder.Permission{folder.PermissionAddBookmarks},
		})
		require.ErrorIs(t, err, domain.ErrPermissionDenied)

		fx.grantPermissions(7, folder.PermissionManageRoles)

		_, err = cmd.Execute(context.Background(), &CreateRoleRequest{
			FolderID:    fx.folderID,
			ActorID:     7,
			Name:        "librarian",
			Permissions: []folder.Permission{folder.PermissionAddBookmarks},
		})
		require.NoError(t, err)
	})
}

// Permission-set uniqueness compares exact sets: overlap in either
// direction is allowed, only an equal set conflicts.
func TestCreateRolePermissionSetUniqueness(t *testing.T) {
	existing := []folder.Permission{folder.PermissionAddBookmarks, folder.PermissionRemoveBookmarks}

	tests := map[string]struct {
		permissions []folder.Permission
		wantErr     error
	}{
		"proper_subset_is_allowed": {
			permissions: []folder.Permission{folder.PermissionAddBookmarks},
		},
		"proper_superset_is_allowed": {
			permissions: []folder.Permission{
				folder.PermissionAddBookmarks,
				folder.PermissionRemoveBookmarks,
				folder.PermissionInviteUsers,
			},
		},
		"disjoint_set_is_allowed": {
			permissions: []folder.Permission{folder.PermissionInviteUsers},
		},
		"equal_set_conflicts": {
			permissions: []folder.Permission{folder.PermissionAddBookmarks, folder.PermissionRemoveBookmarks},
			wantErr:     errDuplicateRole,
		},
		"equal_set_in_different_order_conflicts": {
			permissions: []folder.Permission{folder.PermissionRemoveBookmarks, folder.PermissionAddBookmarks},
			wantErr:     errDuplicateRole,
		},
		"duplicated_entries_collapse_before_comparison": {
			permissions: []folder.Permission{
				folder.PermissionRemoveBookmarks,
				folder.PermissionAddBookmarks,
				folder.PermissionAddBookmarks,
			},
			wantErr: errDuplicateRole,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			fx := newFixture(t)
			cmd := NewCreateRoleCommand(fx.ds, fx.queue, logger.NewNoopLogger())

			_, err := cmd.Execute(context.Background(), &CreateRoleRequest{
				FolderID:    fx.folderID,
				ActorID:     fx.ownerID,
				Name:        "editors",
				Permissions: existing,
			})
			require.NoError(t, err)

			_, err = cmd.Execute(context.Background(), &CreateRoleRequest{
				FolderID:    fx.folderID,
				ActorID:     fx.ownerID,
				Name:        "challenger",
				Permissions: tc.permissions,
			})
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

// Two identical creates racing past the scope-time checks must resolve at
// the store: exactly one wins, the rest surface the same conflict the
// checks would have raised.
func TestCreateRoleConcurrentDuplicates(t *testing.T) {
	const attempts = 8

	fx := newFixture(t)
	cmd := NewCreateRoleCommand(fx.ds, fx.queue, logger.NewNoopLogger())

	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cmd.Execute(context.Background(), &CreateRoleRequest{
				FolderID:    fx.folderID,
				ActorID:     fx.ownerID,
				Name:        "librarian",
				Permissions: []folder.Permission{folder.PermissionAddBookmarks},
			})
		}(i)
	}
	wg.Wait()

	var created int
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		require.ErrorIs(t, err, errDuplicateRoleName)
	}
	require.Equal(t, 1, created)
}
