// Package storage defines the datastore contract for folders and the
// two-phase fetch query that pipeline stages contribute requirements to.
package storage

import (
	"context"
	"time"

	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/folder/settings"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
)

// NewFolder is the payload for creating a folder.
type NewFolder struct {
	PublicID   publicid.FolderID
	OwnerID    int64
	Name       string
	Visibility folder.Visibility
	Settings   settings.Settings
}

// BlacklistRecord is the payload for blacklisting a domain on a folder.
// DomainHash is the canonical identity of the domain; the raw domain is
// kept for display only.
type BlacklistRecord struct {
	FolderID   int64
	Domain     string
	DomainHash string
	CreatedBy  int64
}

// SuspensionRecord suspends a collaborator. A nil SuspendedUntil means the
// suspension is indefinite.
type SuspensionRecord struct {
	FolderID       int64
	UserID         int64
	SuspendedBy    int64
	SuspendedUntil *time.Time
}

// NewRole is the payload for creating a role with its permission set.
type NewRole struct {
	FolderID    int64
	PublicID    publicid.RoleID
	Name        string
	Permissions []folder.Permission
}

type MetricType string

const (
	MetricDomainBlacklisted     MetricType = "domain_blacklisted"
	MetricCollaboratorSuspended MetricType = "collaborator_suspended"
	MetricCollaboratorExit      MetricType = "collaborator_exit"
	MetricRoleAssigned          MetricType = "role_assigned"
)

// Metric is one recorded actor action. Stores persist it twice: as an
// append-only event row and as an insert-or-increment summary keyed by
// (folder, actor, type).
type Metric struct {
	FolderID int64
	ActorID  int64
	Type     MetricType
	Count    int64
}

type ActivityType string

const (
	ActivityDomainBlacklisted     ActivityType = "domain_blacklisted"
	ActivityCollaboratorSuspended ActivityType = "collaborator_suspended"
	ActivityCollaboratorExit      ActivityType = "collaborator_exit"
	ActivityRoleChanged           ActivityType = "role_changed"
	ActivityFolderUpdated         ActivityType = "folder_updated"
)

// Activity is one append-only activity log entry. Data carries the
// mutation's before/after payload as JSON.
type Activity struct {
	FolderID int64
	Type     ActivityType
	Data     []byte
}

// A FolderDatastore provides an R/W interface for folders and the
// collaboration state hanging off them.
//
// Uniqueness is enforced by the store: writes that would violate a unique
// constraint return ErrCollision even when an application-level check
// passed earlier, and callers must treat that as authoritative.
type FolderDatastore interface {
	// FetchFolder executes the compiled query exactly once and returns the
	// folder with the requested fields and check results populated. When no
	// folder matches, it returns an empty placeholder, never nil: absence is
	// a constraint's concern, not the fetcher's.
	FetchFolder(ctx context.Context, q *FolderQuery) (*folder.Folder, error)

	CreateFolder(ctx context.Context, f NewFolder) (int64, error)
	TouchFolder(ctx context.Context, folderID int64) error

	AddCollaborator(ctx context.Context, folderID, userID, invitedBy int64) error
	RemoveCollaborator(ctx context.Context, folderID, userID int64) error

	BlacklistDomain(ctx context.Context, rec BlacklistRecord) error
	DeleteBlacklistedDomain(ctx context.Context, folderID int64, domainHash string) error

	SuspendCollaborator(ctx context.Context, rec SuspensionRecord) error
	ReinstateCollaborator(ctx context.Context, folderID, userID int64) error

	CreateRole(ctx context.Context, r NewRole) error
	UpdateRoleName(ctx context.Context, folderID int64, roleID publicid.RoleID, name string) error
	DeleteRole(ctx context.Context, folderID int64, roleID publicid.RoleID) error
	AddRolePermission(ctx context.Context, folderID int64, roleID publicid.RoleID, p folder.Permission) error
	RemoveRolePermission(ctx context.Context, folderID int64, roleID publicid.RoleID, p folder.Permission) error
	AssignRole(ctx context.Context, folderID int64, roleID publicid.RoleID, userID int64) error
	RevokeRole(ctx context.Context, folderID int64, roleID publicid.RoleID, userID int64) error

	DisableFeature(ctx context.Context, folderID int64, feature folder.Feature) error
	EnableFeature(ctx context.Context, folderID int64, feature folder.Feature) error

	RecordMetric(ctx context.Context, m Metric) error
	LogActivity(ctx context.Context, a Activity) error

	// Close releases any resources held by the datastore.
	Close()
}
