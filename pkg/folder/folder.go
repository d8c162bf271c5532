// Package folder defines the folder aggregate that pipeline operations
// target, along with its permission and feature vocabulary.
package folder

import (
	"time"

	"github.com/bookmarkd/bookmarkd/pkg/folder/settings"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
)

// Field enumerates the selectable columns of a folder. Stages declare the
// fields they need at scope time; anything not declared stays absent on the
// fetched subject.
type Field int

const (
	FieldID Field = iota + 1
	FieldPublicID
	FieldOwnerID
	FieldName
	FieldVisibility
	FieldSettings
	FieldUpdatedAt
)

// Column returns the backing column name for the field.
func (f Field) Column() string {
	switch f {
	case FieldID:
		return "id"
	case FieldPublicID:
		return "public_id"
	case FieldOwnerID:
		return "owner_id"
	case FieldName:
		return "name"
	case FieldVisibility:
		return "visibility"
	case FieldSettings:
		return "settings"
	case FieldUpdatedAt:
		return "updated_at"
	default:
		return ""
	}
}

// Attr is an attribute that distinguishes "not selected" from the zero
// value. Reading an unselected attribute yields the zero value; callers
// that must know the difference check IsSet first.
type Attr[T any] struct {
	value T
	set   bool
}

func NewAttr[T any](v T) Attr[T] {
	return Attr[T]{value: v, set: true}
}

func (a Attr[T]) Value() T {
	return a.value
}

func (a Attr[T]) IsSet() bool {
	return a.set
}

type Visibility string

const (
	VisibilityPublic            Visibility = "public"
	VisibilityPrivate           Visibility = "private"
	VisibilityCollaborators     Visibility = "collaborators"
	VisibilityPasswordProtected Visibility = "password_protected"
)

// IsHidden reports whether activity on the folder must never be logged.
func (v Visibility) IsHidden() bool {
	return v == VisibilityPrivate || v == VisibilityPasswordProtected
}

type Permission string

const (
	PermissionAddBookmarks     Permission = "add_bookmarks"
	PermissionRemoveBookmarks  Permission = "remove_bookmarks"
	PermissionInviteUsers      Permission = "invite_users"
	PermissionUpdateFolder     Permission = "update_folder"
	PermissionBlacklistDomains Permission = "blacklist_domains"
	PermissionSuspendUsers     Permission = "suspend_users"
	PermissionManageRoles      Permission = "manage_roles"
)

// Permissions returns the full permission catalog.
func Permissions() []Permission {
	return []Permission{
		PermissionAddBookmarks,
		PermissionRemoveBookmarks,
		PermissionInviteUsers,
		PermissionUpdateFolder,
		PermissionBlacklistDomains,
		PermissionSuspendUsers,
		PermissionManageRoles,
	}
}

func IsValidPermission(p Permission) bool {
	for _, known := range Permissions() {
		if p == known {
			return true
		}
	}
	return false
}

// Feature is a per-folder toggleable capability. A disabled feature blocks
// the corresponding operations for everyone but the owner.
type Feature string

const (
	FeatureAddBookmarks     Feature = "add_bookmarks"
	FeatureRemoveBookmarks  Feature = "remove_bookmarks"
	FeatureInviteUsers      Feature = "invite_users"
	FeatureBlacklistDomains Feature = "blacklist_domains"
	FeatureSuspendUsers     Feature = "suspend_users"
)

// Folder is the subject of a pipeline run. Attributes are populated
// selectively by the fetch query; checks carry the results of
// scope-injected subqueries keyed by alias.
//
// A Folder is only mutated inside a single pipeline invocation and is never
// shared across runs.
type Folder struct {
	ID         Attr[int64]
	PublicID   Attr[publicid.FolderID]
	OwnerID    Attr[int64]
	Name       Attr[string]
	Visibility Attr[Visibility]
	Settings   Attr[settings.Settings]
	UpdatedAt  Attr[time.Time]

	checks map[string]int64
}

func New() *Folder {
	return &Folder{checks: make(map[string]int64)}
}

// Exists reports whether the fetch found a backing row. The empty
// placeholder returned for unknown public ids reports false.
func (f *Folder) Exists() bool {
	return f.ID.IsSet()
}

// IsOwner reports whether userID owns the folder.
func (f *Folder) IsOwner(userID int64) bool {
	return f.OwnerID.IsSet() && f.OwnerID.Value() == userID
}

// SetCheck records the result of a scope-injected check. Boolean checks
// store 0 or 1.
func (f *Folder) SetCheck(alias string, value int64) {
	if f.checks == nil {
		f.checks = make(map[string]int64)
	}
	f.checks[alias] = value
}

// Bool reads a boolean check result. Absent aliases read false, which for
// every constraint in the pipeline is the conservative answer.
func (f *Folder) Bool(alias string) bool {
	return f.checks[alias] != 0
}

// Count reads a numeric check result.
func (f *Folder) Count(alias string) int64 {
	return f.checks[alias]
}
