package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
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

type testServer struct {
	t        *testing.T
	handler  http.Handler
	ds       *memory.Datastore
	folderID publicid.FolderID
	rowID    int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ds := memory.New()
	folderID := publicid.MustNewFolderID()
	rowID, err := ds.CreateFolder(context.Background(), storage.NewFolder{
		PublicID:   folderID,
		OwnerID:    ownerUserID,
		Name:       "engineering reading list",
		Visibility: folder.VisibilityPublic,
		Settings:   settings.Default(),
	})
	require.NoError(t, err)

	queue := deferred.NewQueue(logger.NewNoopLogger(), deferred.WithMode(deferred.ModeSync))
	t.Cleanup(queue.Close)

	srv := New(ds, queue, notifications.NewCaptureNotifier(), logger.NewNoopLogger())

	return &testServer{
		t:        t,
		handler:  srv.Handler(),
		ds:       ds,
		folderID: folderID,
		rowID:    rowID,
	}
}

// do issues a request as userID and returns the recorded response. A body of
// nil sends an empty JSON object so handlers that decode never see EOF.
func (s *testServer) do(userID int64, method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	if body == nil {
		body = map[string]any{}
	}
	raw, err := json.Marshal(body)
	require.NoError(s.t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	if userID != 0 {
		req.Header.Set("X-User-Id", fmt.Sprintf("%d", userID))
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) addCollaborator(userID int64) {
	s.t.Helper()
	require.NoError(s.t, s.ds.AddCollaborator(context.Background(), s.rowID, userID, ownerUserID))
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func TestBlacklistDomainRoutes(t *testing.T) {
	t.Run("owner_blacklists_and_deletes", func(t *testing.T) {
		ts := newTestServer(t)
		path := fmt.Sprintf("/folders/%s/blacklisted-domains", ts.folderID)

		rec := ts.do(ownerUserID, http.MethodPost, path, map[string]string{"url": "https://spam.example.com/promo"})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = ts.do(ownerUserID, http.MethodDelete, path, map[string]string{"url": "https://spam.example.com"})
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("duplicate_domain_is_conflict", func(t *testing.T) {
		ts := newTestServer(t)
		path := fmt.Sprintf("/folders/%s/blacklisted-domains", ts.folderID)

		rec := ts.do(ownerUserID, http.MethodPost, path, map[string]string{"url": "https://spam.example.com"})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = ts.do(ownerUserID, http.MethodPost, path, map[string]string{"url": "http://www.spam.example.com/other"})
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "DomainAlreadyBlacklisted", errorMessage(t, rec))
	})

	t.Run("non_member_sees_not_found", func(t *testing.T) {
		ts := newTestServer(t)
		path := fmt.Sprintf("/folders/%s/blacklisted-domains", ts.folderID)

		rec := ts.do(42, http.MethodPost, path, map[string]string{"url": "https://spam.example.com"})
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "FolderNotFound", errorMessage(t, rec))
	})

	t.Run("collaborator_without_permission_is_forbidden", func(t *testing.T) {
		ts := newTestServer(t)
		ts.addCollaborator(42)
		path := fmt.Sprintf("/folders/%s/blacklisted-domains", ts.folderID)

		rec := ts.do(42, http.MethodPost, path, map[string]string{"url": "https://spam.example.com"})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRoleRoutes(t *testing.T) {
	createRole := func(ts *testServer, name string, permissions ...string) string {
		ts.t.Helper()

		rec := ts.do(ownerUserID, http.MethodPost, fmt.Sprintf("/folders/%s/roles", ts.folderID), map[string]any{
			"name":        name,
			"permissions": permissions,
		})
		require.Equal(ts.t, http.StatusCreated, rec.Code)

		var body struct {
			ID string `json:"id"`
		}
		require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.NotEmpty(ts.t, body.ID)
		return body.ID
	}

	t.Run("create_returns_role_id", func(t *testing.T) {
		ts := newTestServer(t)
		roleID := createRole(ts, "moderators", "add_bookmarks", "remove_bookmarks")
		require.Regexp(t, `^rol_`, roleID)
	})

	t.Run("rename_and_delete", func(t *testing.T) {
		ts := newTestServer(t)
		roleID := createRole(ts, "moderators", "add_bookmarks")
		base := fmt.Sprintf("/folders/%s/roles/%s", ts.folderID, roleID)

		rec := ts.do(ownerUserID, http.MethodPatch, base, map[string]string{"name": "curators"})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(ownerUserID, http.MethodDelete, base, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(ownerUserID, http.MethodDelete, base, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "RoleNotFound", errorMessage(t, rec))
	})

	t.Run("permission_lifecycle", func(t *testing.T) {
		ts := newTestServer(t)
		roleID := createRole(ts, "moderators", "add_bookmarks")
		base := fmt.Sprintf("/folders/%s/roles/%s/permissions", ts.folderID, roleID)

		rec := ts.do(ownerUserID, http.MethodPost, base, map[string]string{"permission": "remove_bookmarks"})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(ownerUserID, http.MethodDelete, base+"/remove_bookmarks", nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		// The role must keep at least one permission.
		rec = ts.do(ownerUserID, http.MethodDelete, base+"/add_bookmarks", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "CannotRemoveAllRolePermissions", errorMessage(t, rec))
	})

	t.Run("assignment_lifecycle", func(t *testing.T) {
		ts := newTestServer(t)
		ts.addCollaborator(42)
		roleID := createRole(ts, "moderators", "add_bookmarks")
		base := fmt.Sprintf("/folders/%s/roles/%s/assignees", ts.folderID, roleID)

		rec := ts.do(ownerUserID, http.MethodPost, base, map[string]int64{"user_id": 42})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(ownerUserID, http.MethodPost, base, map[string]int64{"user_id": 42})
		require.Equal(t, http.StatusConflict, rec.Code)

		rec = ts.do(ownerUserID, http.MethodDelete, base+"/42", nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(ownerUserID, http.MethodDelete, base+"/42", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "RoleNotAssigned", errorMessage(t, rec))
	})

	t.Run("malformed_role_id_is_not_found", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(ownerUserID, http.MethodDelete, fmt.Sprintf("/folders/%s/roles/not-a-role", ts.folderID), nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "RoleNotFound", errorMessage(t, rec))
	})
}

func TestSuspensionRoutes(t *testing.T) {
	t.Run("suspend_and_reinstate", func(t *testing.T) {
		ts := newTestServer(t)
		ts.addCollaborator(42)
		path := fmt.Sprintf("/folders/%s/collaborators/42/suspension", ts.folderID)

		rec := ts.do(ownerUserID, http.MethodPost, path, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(ownerUserID, http.MethodDelete, path, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(ownerUserID, http.MethodDelete, path, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid_duration_is_bad_request", func(t *testing.T) {
		ts := newTestServer(t)
		ts.addCollaborator(42)
		path := fmt.Sprintf("/folders/%s/collaborators/42/suspension", ts.folderID)

		rec := ts.do(ownerUserID, http.MethodPost, path, map[string]int64{"duration_hours": 0})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLeaveFolderRoute(t *testing.T) {
	t.Run("collaborator_leaves", func(t *testing.T) {
		ts := newTestServer(t)
		ts.addCollaborator(42)

		rec := ts.do(42, http.MethodDelete, fmt.Sprintf("/folders/%s/collaborators/me", ts.folderID), nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("owner_cannot_leave", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(ownerUserID, http.MethodDelete, fmt.Sprintf("/folders/%s/collaborators/me", ts.folderID), nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "OwnerCannotLeaveFolder", errorMessage(t, rec))
	})
}

func TestRequestValidation(t *testing.T) {
	t.Run("missing_user_header", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(0, http.MethodDelete, fmt.Sprintf("/folders/%s/collaborators/me", ts.folderID), nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "MissingUserId", errorMessage(t, rec))
	})

	t.Run("malformed_folder_id_is_not_found", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(ownerUserID, http.MethodDelete, "/folders/garbage/collaborators/me", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "FolderNotFound", errorMessage(t, rec))
	})

	t.Run("invalid_json_body", func(t *testing.T) {
		ts := newTestServer(t)

		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/folders/%s/roles", ts.folderID), bytes.NewReader([]byte("{")))
		req.Header.Set("X-User-Id", "1")
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "InvalidRequestBody", errorMessage(t, rec))
	})

	t.Run("request_id_header_is_set", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(ownerUserID, http.MethodDelete, fmt.Sprintf("/folders/%s/collaborators/me", ts.folderID), nil)
		require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	})
}
