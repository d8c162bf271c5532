// Package server exposes the folder collaboration operations over HTTP.
//
// Authentication is out of scope: the acting user is taken from the
// X-User-Id header, which a fronting gateway is expected to have verified.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bookmarkd/bookmarkd/internal/commands"
	"github.com/bookmarkd/bookmarkd/internal/deferred"
	"github.com/bookmarkd/bookmarkd/internal/domain"
	"github.com/bookmarkd/bookmarkd/internal/middleware"
	"github.com/bookmarkd/bookmarkd/internal/notifications"
	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/logger"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

const userIDHeader = "X-User-Id"

var errMissingUser = domain.BadRequest("MissingUserId", "The X-User-Id header is required.")

// Server routes HTTP requests to the folder commands.
type Server struct {
	logger logger.Logger

	blacklistDomain         *commands.BlacklistDomainCommand
	deleteBlacklistedDomain *commands.DeleteBlacklistedDomainCommand
	suspendCollaborator     *commands.SuspendCollaboratorCommand
	reinstateCollaborator   *commands.ReinstateCollaboratorCommand
	leaveFolder             *commands.LeaveFolderCommand
	createRole              *commands.CreateRoleCommand
	updateRoleName          *commands.UpdateRoleNameCommand
	deleteRole              *commands.DeleteRoleCommand
	addRolePermission       *commands.AddRolePermissionCommand
	removeRolePermission    *commands.RemoveRolePermissionCommand
	assignRole              *commands.AssignRoleCommand
	revokeRole              *commands.RevokeRoleCommand
}

func New(ds storage.FolderDatastore, queue *deferred.Queue, notifier notifications.Notifier, l logger.Logger) *Server {
	return &Server{
		logger: l,

		blacklistDomain:         commands.NewBlacklistDomainCommand(ds, queue, notifier, l),
		deleteBlacklistedDomain: commands.NewDeleteBlacklistedDomainCommand(ds, queue, l),
		suspendCollaborator:     commands.NewSuspendCollaboratorCommand(ds, queue, notifier, l),
		reinstateCollaborator:   commands.NewReinstateCollaboratorCommand(ds, queue, l),
		leaveFolder:             commands.NewLeaveFolderCommand(ds, queue, notifier, l),
		createRole:              commands.NewCreateRoleCommand(ds, queue, l),
		updateRoleName:          commands.NewUpdateRoleNameCommand(ds, queue, l),
		deleteRole:              commands.NewDeleteRoleCommand(ds, queue, l),
		addRolePermission:       commands.NewAddRolePermissionCommand(ds, queue, l),
		removeRolePermission:    commands.NewRemoveRolePermissionCommand(ds, queue, l),
		assignRole:              commands.NewAssignRoleCommand(ds, queue, l),
		revokeRole:              commands.NewRevokeRoleCommand(ds, queue, l),
	}
}

// Handler returns the API routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /folders/{folder_id}/blacklisted-domains", s.handleBlacklistDomain)
	mux.HandleFunc("DELETE /folders/{folder_id}/blacklisted-domains", s.handleDeleteBlacklistedDomain)

	mux.HandleFunc("POST /folders/{folder_id}/collaborators/{user_id}/suspension", s.handleSuspendCollaborator)
	mux.HandleFunc("DELETE /folders/{folder_id}/collaborators/{user_id}/suspension", s.handleReinstateCollaborator)
	mux.HandleFunc("DELETE /folders/{folder_id}/collaborators/me", s.handleLeaveFolder)

	mux.HandleFunc("POST /folders/{folder_id}/roles", s.handleCreateRole)
	mux.HandleFunc("PATCH /folders/{folder_id}/roles/{role_id}", s.handleUpdateRoleName)
	mux.HandleFunc("DELETE /folders/{folder_id}/roles/{role_id}", s.handleDeleteRole)
	mux.HandleFunc("POST /folders/{folder_id}/roles/{role_id}/permissions", s.handleAddRolePermission)
	mux.HandleFunc("DELETE /folders/{folder_id}/roles/{role_id}/permissions/{permission}", s.handleRemoveRolePermission)
	mux.HandleFunc("POST /folders/{folder_id}/roles/{role_id}/assignees", s.handleAssignRole)
	mux.HandleFunc("DELETE /folders/{folder_id}/roles/{role_id}/assignees/{user_id}", s.handleRevokeRole)

	return middleware.RequestID(middleware.Logging(s.logger, mux))
}

func (s *Server) handleBlacklistDomain(w http.ResponseWriter, r *http.Request) {
	folderID, actorID, err := s.scope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, s.logger, err)
		return
	}

	err = s.blacklistDomain.Execute(r.Context(), &commands.BlacklistDomainRequest{
		FolderID: folderID,
		ActorID:  actorID,
		URL:      body.URL,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDeleteBlacklistedDomain(w http.ResponseWriter, r *http.Request) {
	folderID, actorID, err := s.scope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, s.logger, err)
		return
	}

	err = s.deleteBlacklistedDomain.Execute(r.Context(), &commands.DeleteBlacklistedDomainRequest{
		FolderID: folderID,
		ActorID:  actorID,
		URL:      body.URL,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSuspendCollaborator(w http.ResponseWriter, r *http.Request) {
	folderID, actorID, err := s.scope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	targetID, err := pathInt64(r, "user_id")
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	var body struct {
		DurationHours *int64 `json:"duration_hours"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, s.logger, err)
		return
	}

	err = s.suspendCollaborator.Execute(r.Context(), &commands.SuspendCollaboratorRequest{
		FolderID:       folderID,
		ActorID:        actorID,
		CollaboratorID: targetID,
		DurationHours:  body.DurationHours,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReinstateCollaborator(w http.ResponseWriter, r *http.Request) {
	folderID, actorID, err := s.scope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	targetID, err := pathInt64(r, "user_id")
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	err = s.reinstateCollaborator.Execute(r.Context(), &commands.ReinstateCollaboratorRequest{
		FolderID:       folderID,
		ActorID:        actorID,
		CollaboratorID: targetID,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLeaveFolder(w http.ResponseWriter, r *http.Request) {
	folderID, actorID, err := s.scope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	err = s.leaveFolder.Execute(r.Context(), &commands.LeaveFolderRequest{
		FolderID: folderID,
		ActorID:  actorID,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	folderID, actorID, err := s.scope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	var body struct {
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, s.logger, err)
		return
	}

	permissions := make([]folder.Permission, len(body.Permissions))
	for i, p := range body.Permissions {
		permissions[i] = folder.Permission(p)
	}

	roleID, err := s.createRole.Execute(r.Context(), &commands.CreateRoleRequest{
		FolderID:    folderID,
		ActorID:     actorID,
		Name:        body.Name,
		Permissions: permissions,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": roleID.String()})
}

func (s *Server) handleUpdateRoleName(w http.ResponseWriter, r *http.Request) {
	folderID, actorID, roleID, err := s.roleScope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, s.logger, err)
		return
	}

	err = s.updateRoleName.Execute(r.Context(), &commands.UpdateRoleNameRequest{
		FolderID: folderID,
		ActorID:  actorID,
		RoleID:   roleID,
		Name:     body.Name,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	folderID, actorID, roleID, err := s.roleScope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	err = s.deleteRole.Execute(r.Context(), &commands.DeleteRoleRequest{
		FolderID: folderID,
		ActorID:  actorID,
		RoleID:   roleID,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddRolePermission(w http.ResponseWriter, r *http.Request) {
	folderID, actorID, roleID, err := s.roleScope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	var body struct {
		Permission string `json:"permission"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, s.logger, err)
		return
	}

	err = s.addRolePermission.Execute(r.Context(), &commands.AddRolePermissionRequest{
		FolderID:   folderID,
		ActorID:    actorID,
		RoleID:     roleID,
		Permission: folder.Permission(body.Permission),
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveRolePermission(w http.ResponseWriter, r *http.Request) {
	folderID, actorID, roleID, err := s.roleScope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	err = s.removeRolePermission.Execute(r.Context(), &commands.RemoveRolePermissionRequest{
		FolderID:   folderID,
		ActorID:    actorID,
		RoleID:     roleID,
		Permission: folder.Permission(r.PathValue("permission")),
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	folderID, actorID, roleID, err := s.roleScope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	var body struct {
		UserID int64 `json:"user_id"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, s.logger, err)
		return
	}

	err = s.assignRole.Execute(r.Context(), &commands.AssignRoleRequest{
		FolderID:       folderID,
		ActorID:        actorID,
		RoleID:         roleID,
		CollaboratorID: body.UserID,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	folderID, actorID, roleID, err := s.roleScope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	targetID, err := pathInt64(r, "user_id")
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	err = s.revokeRole.Execute(r.Context(), &commands.RevokeRoleRequest{
		FolderID:       folderID,
		ActorID:        actorID,
		RoleID:         roleID,
		CollaboratorID: targetID,
	})
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// scope extracts the folder id and acting user shared by every route.
func (s *Server) scope(r *http.Request) (publicid.FolderID, int64, error) {
	folderID, err := publicid.FolderIDFromRequest(r.PathValue("folder_id"))
	if err != nil {
		return publicid.FolderID{}, 0, err
	}

	raw := r.Header.Get(userIDHeader)
	if raw == "" {
		return publicid.FolderID{}, 0, errMissingUser
	}
	actorID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || actorID <= 0 {
		return publicid.FolderID{}, 0, errMissingUser
	}

	return folderID, actorID, nil
}

func (s *Server) roleScope(r *http.Request) (publicid.FolderID, int64, publicid.RoleID, error) {
	folderID, actorID, err := s.scope(r)
	if err != nil {
		return publicid.FolderID{}, 0, publicid.RoleID{}, err
	}
	roleID, err := publicid.RoleIDFromRequest(r.PathValue("role_id"))
	if err != nil {
		return publicid.FolderID{}, 0, publicid.RoleID{}, err
	}
	return folderID, actorID, roleID, nil
}

func decode(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return domain.BadRequest("InvalidRequestBody", "The request body is not valid JSON.")
	}
	return nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v <= 0 {
		return 0, domain.BadRequest("InvalidUserId", "The user id must be a positive integer.")
	}
	return v, nil
}
