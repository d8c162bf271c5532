package commands

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookmarkd/bookmarkd/internal/deferred"
	"github.com/bookmarkd/bookmarkd/internal/notifications"
	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/folder/settings"
	"github.com/bookmarkd/bookmarkd/pkg/logger"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
	"github.com/bookmarkd/bookmarkd/pkg/storage/memory"
)

const ownerUserID int64 = 1

// fixture is one folder in a fresh memory datastore, with a synchronous
// deferred queue so side effects are observable as soon as a command
// returns.
type fixture struct {
	t        *testing.T
	ds       *memory.Datastore
	queue    *deferred.Queue
	notifier *notifications.CaptureNotifier

	folderID publicid.FolderID
	rowID    int64
	ownerID  int64

	roleSeq int
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, storage.NewFolder{
		OwnerID:    ownerUserID,
		Name:       "engineering reading list",
		Visibility: folder.VisibilityPublic,
		Settings:   settings.Default(),
	})
}

func newFixtureWith(t *testing.T, nf storage.NewFolder) *fixture {
	t.Helper()

	if nf.PublicID.IsZero() {
		nf.PublicID = publicid.MustNewFolderID()
	}

	ds := memory.New()
	rowID, err := ds.CreateFolder(context.Background(), nf)
	require.NoError(t, err)

	queue := deferred.NewQueue(logger.NewNoopLogger(), deferred.WithMode(deferred.ModeSync))
	t.Cleanup(queue.Close)

	return &fixture{
		t:        t,
		ds:       ds,
		queue:    queue,
		notifier: notifications.NewCaptureNotifier(),
		folderID: nf.PublicID,
		rowID:    rowID,
		ownerID:  nf.OwnerID,
	}
}

func (f *fixture) addCollaborator(userID int64) {
	f.t.Helper()
	require.NoError(f.t, f.ds.AddCollaborator(context.Background(), f.rowID, userID, f.ownerID))
}

// grantPermissions wires userID to a throwaway role carrying exactly the
// given permissions.
func (f *fixture) grantPermissions(userID int64, permissions ...folder.Permission) publicid.RoleID {
	f.t.Helper()

	f.roleSeq++
	roleID := publicid.MustNewRoleID()
	require.NoError(f.t, f.ds.CreateRole(context.Background(), storage.NewRole{
		FolderID:    f.rowID,
		PublicID:    roleID,
		Name:        fmt.Sprintf("granted %d", f.roleSeq),
		Permissions: permissions,
	}))
	require.NoError(f.t, f.ds.AssignRole(context.Background(), f.rowID, roleID, userID))
	return roleID
}

func mustSettings(t *testing.T, values map[string]any) settings.Settings {
	t.Helper()

	s, err := settings.FromMap(values)
	require.NoError(t, err)
	return s
}
