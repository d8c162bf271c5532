// Package handlers contains the stage families shared across the folder
// commands: membership and permission constraints, and the settings-gated
// side-effect actions that close out every chain.
package handlers

import (
	"context"

	"github.com/bookmarkd/bookmarkd/internal/domain"
	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

// FolderExistsConstraint fails with FolderNotFound when the fetch produced
// the empty placeholder. It is the first stage of every chain that targets
// an existing folder.
type FolderExistsConstraint struct{}

func (FolderExistsConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if !f.Exists() {
		return domain.ErrFolderNotFound
	}
	return nil
}

// MustBeACollaboratorConstraint requires the acting user to be the folder
// owner or a collaborator. Failure raises FolderNotFound, not
// PermissionDenied: a non-member must not be able to tell a private folder
// apart from a missing one.
type MustBeACollaboratorConstraint struct {
	UserID int64
}

func (c MustBeACollaboratorConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.UserIsCollaborator{UserID: c.UserID})
}

func (c MustBeACollaboratorConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if f.IsOwner(c.UserID) {
		return nil
	}
	if !f.Bool(storage.UserIsCollaborator{UserID: c.UserID}.Alias()) {
		return domain.ErrFolderNotFound
	}
	return nil
}

// PermissionConstraint requires the acting user to hold a named permission
// through one of their roles. The owner holds every permission implicitly.
type PermissionConstraint struct {
	UserID     int64
	Permission folder.Permission
}

func (c PermissionConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.UserHasPermission{UserID: c.UserID, Permission: c.Permission})
}

func (c PermissionConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if f.IsOwner(c.UserID) {
		return nil
	}
	if !f.Bool(storage.UserHasPermission{UserID: c.UserID, Permission: c.Permission}.Alias()) {
		return domain.ErrPermissionDenied
	}
	return nil
}

// MustBeOwnerConstraint restricts an operation to the folder owner.
type MustBeOwnerConstraint struct {
	UserID int64
}

func (c MustBeOwnerConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if !f.IsOwner(c.UserID) {
		return domain.ErrPermissionDenied
	}
	return nil
}

// FeatureMustBeEnabledConstraint blocks an operation when the folder has
// the backing feature toggled off. The owner is exempt.
type FeatureMustBeEnabledConstraint struct {
	UserID  int64
	Feature folder.Feature
}

func (c FeatureMustBeEnabledConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.FeatureIsDisabled{Feature: c.Feature})
}

func (c FeatureMustBeEnabledConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if f.IsOwner(c.UserID) {
		return nil
	}
	if f.Bool(storage.FeatureIsDisabled{Feature: c.Feature}.Alias()) {
		return domain.Disabled("FolderFeatureDisabled", "This feature has been disabled for the folder.")
	}
	return nil
}

// MustNotBeSuspendedConstraint blocks collaborators with an active
// suspension from acting on the folder.
type MustNotBeSuspendedConstraint struct {
	UserID int64
}

func (c MustNotBeSuspendedConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.CollaboratorIsSuspended{UserID: c.UserID})
}

func (c MustNotBeSuspendedConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if f.IsOwner(c.UserID) {
		return nil
	}
	if f.Bool(storage.CollaboratorIsSuspended{UserID: c.UserID}.Alias()) {
		return domain.Forbidden("CollaboratorSuspended", "You are suspended from this folder.")
	}
	return nil
}
