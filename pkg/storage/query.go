package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
)

// A Check is a named data requirement a stage injects into the fetch query.
// Each variant compiles to one scalar subquery in SQL engines and to a
// direct lookup in the memory engine; its result lands on the fetched
// folder under Alias.
//
// Checks are declarative only. Stages never see the compiled query; they
// read the result back through folder.Bool or folder.Count using the same
// alias they registered.
type Check interface {
	Alias() string
}

// UserIsCollaborator reports whether the user is a collaborator on the
// folder. Ownership is not included; it is read off the base projection.
type UserIsCollaborator struct {
	UserID int64
}

func (c UserIsCollaborator) Alias() string {
	return fmt.Sprintf("user_%d_is_collaborator", c.UserID)
}

// UserHasPermission reports whether the user holds the permission through
// any of their assigned roles.
type UserHasPermission struct {
	UserID     int64
	Permission folder.Permission
}

func (c UserHasPermission) Alias() string {
	return fmt.Sprintf("user_%d_has_%s", c.UserID, c.Permission)
}

// FeatureIsDisabled reports whether the feature has been toggled off on the
// folder.
type FeatureIsDisabled struct {
	Feature folder.Feature
}

func (c FeatureIsDisabled) Alias() string {
	return fmt.Sprintf("feature_%s_disabled", c.Feature)
}

// DomainIsBlacklisted reports whether a domain with the given hash is
// already blacklisted on the folder.
type DomainIsBlacklisted struct {
	DomainHash string
}

func (c DomainIsBlacklisted) Alias() string {
	return "domain_" + c.DomainHash + "_blacklisted"
}

// RoleNameExists reports whether the folder already has a role with the
// given name.
type RoleNameExists struct {
	Name string
}

func (c RoleNameExists) Alias() string {
	return "role_name_" + sanitizeAlias(c.Name) + "_exists"
}

// RoleWithPermissionsExists reports whether the folder has a role whose
// permission set equals the given set exactly. Equality requires the
// matched count on both sides to agree; partial overlap does not count.
type RoleWithPermissionsExists struct {
	Permissions []folder.Permission
}

func (c RoleWithPermissionsExists) Alias() string {
	names := make([]string, len(c.Permissions))
	for i, p := range c.Permissions {
		names[i] = string(p)
	}
	sort.Strings(names)
	return "role_with_" + strings.Join(names, "_") + "_exists"
}

// RoleExists reports whether the role belongs to the folder.
type RoleExists struct {
	RoleID publicid.RoleID
}

func (c RoleExists) Alias() string {
	return "role_" + c.RoleID.String() + "_exists"
}

// RoleHasPermission reports whether the role carries the permission.
type RoleHasPermission struct {
	RoleID     publicid.RoleID
	Permission folder.Permission
}

func (c RoleHasPermission) Alias() string {
	return "role_" + c.RoleID.String() + "_has_" + string(c.Permission)
}

// RolePermissionCount counts the permissions attached to the role.
type RolePermissionCount struct {
	RoleID publicid.RoleID
}

func (c RolePermissionCount) Alias() string {
	return "role_" + c.RoleID.String() + "_permission_count"
}

// CollaboratorHasRole reports whether the role is already assigned to the
// user.
type CollaboratorHasRole struct {
	UserID int64
	RoleID publicid.RoleID
}

func (c CollaboratorHasRole) Alias() string {
	return fmt.Sprintf("user_%d_has_role_%s", c.UserID, c.RoleID)
}

// CollaboratorIsSuspended reports whether the user currently has an active
// suspension on the folder.
type CollaboratorIsSuspended struct {
	UserID int64
}

func (c CollaboratorIsSuspended) Alias() string {
	return fmt.Sprintf("user_%d_is_suspended", c.UserID)
}

func sanitizeAlias(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}

// FolderQuery accumulates the field and check requirements of every stage
// in a pipeline before the subject is fetched. Phase one (this type) only
// collects; phase two, compiling the requirements into one store query, is
// each datastore's concern.
type FolderQuery struct {
	folderID publicid.FolderID
	fields   map[folder.Field]struct{}
	checks   map[string]Check
}

// NewFolderQuery starts a query scoped to one public folder id with the
// base projection every pipeline needs: identity and ownership.
func NewFolderQuery(id publicid.FolderID) *FolderQuery {
	q := &FolderQuery{
		folderID: id,
		fields:   make(map[folder.Field]struct{}),
		checks:   make(map[string]Check),
	}
	q.WithFields(folder.FieldID, folder.FieldPublicID, folder.FieldOwnerID)
	return q
}

func (q *FolderQuery) FolderID() publicid.FolderID {
	return q.folderID
}

// WithFields merges extra columns into the projection.
func (q *FolderQuery) WithFields(fields ...folder.Field) *FolderQuery {
	for _, f := range fields {
		q.fields[f] = struct{}{}
	}
	return q
}

// WithCheck merges a check requirement. Registering the same alias twice is
// harmless; the requirement is identical by construction.
func (q *FolderQuery) WithCheck(c Check) *FolderQuery {
	q.checks[c.Alias()] = c
	return q
}

// Fields returns the requested projection in stable order.
func (q *FolderQuery) Fields() []folder.Field {
	fields := make([]folder.Field, 0, len(q.fields))
	for f := range q.fields {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Checks returns the registered checks in stable alias order so compiled
// statements are deterministic.
func (q *FolderQuery) Checks() []Check {
	aliases := make([]string, 0, len(q.checks))
	for alias := range q.checks {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	checks := make([]Check, 0, len(aliases))
	for _, alias := range aliases {
		checks = append(checks, q.checks[alias])
	}
	return checks
}
