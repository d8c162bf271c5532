// Package memory provides an ephemeral, memory-backed FolderDatastore.
//
// It enforces the same unique constraints as the SQL engines so tests
// exercise the store-is-authoritative contract for uniqueness races.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/folder/settings"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

type folderRecord struct {
	id         int64
	publicID   publicid.FolderID
	ownerID    int64
	name       string
	visibility folder.Visibility
	settings   string
	updatedAt  time.Time
}

type roleRecord struct {
	publicID    publicid.RoleID
	name        string
	permissions map[folder.Permission]struct{}
	assignees   map[int64]struct{}
}

type blacklistEntry struct {
	domain    string
	createdBy int64
	createdAt time.Time
}

type suspension struct {
	suspendedBy int64
	until       *time.Time
}

type summaryKey struct {
	folderID int64
	actorID  int64
	metric   storage.MetricType
}

// Datastore may be safely shared by multiple goroutines.
type Datastore struct {
	mu sync.Mutex

	nextID  int64
	folders map[int64]*folderRecord /* GUARDED_BY(mu) */

	// map: folder id => user id => invitation metadata
	collaborators map[int64]map[int64]int64

	// map: folder id => user id => active suspension
	suspensions map[int64]map[int64]suspension

	// map: folder id => domain hash => entry
	blacklist map[int64]map[string]blacklistEntry

	// map: folder id => role public id => role
	roles map[int64]map[publicid.RoleID]*roleRecord

	disabledFeatures map[int64]map[folder.Feature]struct{}

	metricEvents []storage.Metric
	summaries    map[summaryKey]int64

	activities []storage.Activity
}

var _ storage.FolderDatastore = (*Datastore)(nil)

// New creates a new empty Datastore.
func New() *Datastore {
	return &Datastore{
		folders:          make(map[int64]*folderRecord),
		collaborators:    make(map[int64]map[int64]int64),
		suspensions:      make(map[int64]map[int64]suspension),
		blacklist:        make(map[int64]map[string]blacklistEntry),
		roles:            make(map[int64]map[publicid.RoleID]*roleRecord),
		disabledFeatures: make(map[int64]map[folder.Feature]struct{}),
		summaries:        make(map[summaryKey]int64),
	}
}

func (d *Datastore) Close() {}

func (d *Datastore) FetchFolder(ctx context.Context, q *storage.FolderQuery) (*folder.Folder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f := folder.New()

	rec := d.findByPublicID(q.FolderID())
	if rec == nil {
		return f, nil
	}

	for _, field := range q.Fields() {
		switch field {
		case folder.FieldID:
			f.ID = folder.NewAttr(rec.id)
		case folder.FieldPublicID:
			f.PublicID = folder.NewAttr(rec.publicID)
		case folder.FieldOwnerID:
			f.OwnerID = folder.NewAttr(rec.ownerID)
		case folder.FieldName:
			f.Name = folder.NewAttr(rec.name)
		case folder.FieldVisibility:
			f.Visibility = folder.NewAttr(rec.visibility)
		case folder.FieldSettings:
			s, err := settings.FromJSON(rec.settings)
			if err != nil {
				return nil, err
			}
			f.Settings = folder.NewAttr(s)
		case folder.FieldUpdatedAt:
			f.UpdatedAt = folder.NewAttr(rec.updatedAt)
		}
	}

	for _, check := range q.Checks() {
		f.SetCheck(check.Alias(), d.evaluate(rec, check))
	}

	return f, nil
}

func (d *Datastore) evaluate(rec *folderRecord, check storage.Check) int64 {
	switch c := check.(type) {
	case storage.UserIsCollaborator:
		_, ok := d.collaborators[rec.id][c.UserID]
		return boolToInt(ok)
	case storage.UserHasPermission:
		for _, role := range d.roles[rec.id] {
			if _, assigned := role.assignees[c.UserID]; !assigned {
				continue
			}
			if _, has := role.permissions[c.Permission]; has {
				return 1
			}
		}
		return 0
	case storage.FeatureIsDisabled:
		_, ok := d.disabledFeatures[rec.id][c.Feature]
		return boolToInt(ok)
	case storage.DomainIsBlacklisted:
		_, ok := d.blacklist[rec.id][c.DomainHash]
		return boolToInt(ok)
	case storage.RoleNameExists:
		for _, role := range d.roles[rec.id] {
			if role.name == c.Name {
				return 1
			}
		}
		return 0
	case storage.RoleWithPermissionsExists:
		for _, role := range d.roles[rec.id] {
			if permissionSetsEqual(role.permissions, c.Permissions) {
				return 1
			}
		}
		return 0
	case storage.RoleExists:
		_, ok := d.roles[rec.id][c.RoleID]
		return boolToInt(ok)
	case storage.RoleHasPermission:
		role, ok := d.roles[rec.id][c.RoleID]
		if !ok {
			return 0
		}
		_, has := role.permissions[c.Permission]
		return boolToInt(has)
	case storage.RolePermissionCount:
		role, ok := d.roles[rec.id][c.RoleID]
		if !ok {
			return 0
		}
		return int64(len(role.permissions))
	case storage.CollaboratorHasRole:
		role, ok := d.roles[rec.id][c.RoleID]
		if !ok {
			return 0
		}
		_, has := role.assignees[c.UserID]
		return boolToInt(has)
	case storage.CollaboratorIsSuspended:
		s, ok := d.suspensions[rec.id][c.UserID]
		if !ok {
			return 0
		}
		if s.until != nil && s.until.Before(time.Now()) {
			return 0
		}
		return 1
	default:
		return 0
	}
}

func (d *Datastore) CreateFolder(ctx context.Context, f storage.NewFolder) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.findByPublicID(f.PublicID) != nil {
		return 0, storage.ErrCollision
	}

	d.nextID++
	d.folders[d.nextID] = &folderRecord{
		id:         d.nextID,
		publicID:   f.PublicID,
		ownerID:    f.OwnerID,
		name:       f.Name,
		visibility: f.Visibility,
		settings:   f.Settings.JSON(),
		updatedAt:  time.Now().UTC(),
	}

	return d.nextID, nil
}

func (d *Datastore) TouchFolder(ctx context.Context, folderID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.folders[folderID]
	if !ok {
		return storage.ErrNotFound
	}
	rec.updatedAt = time.Now().UTC()
	return nil
}

func (d *Datastore) AddCollaborator(ctx context.Context, folderID, userID, invitedBy int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.folders[folderID]; !ok {
		return storage.ErrNotFound
	}
	if d.collaborators[folderID] == nil {
		d.collaborators[folderID] = make(map[int64]int64)
	}
	if _, ok := d.collaborators[folderID][userID]; ok {
		return storage.ErrCollision
	}
	d.collaborators[folderID][userID] = invitedBy
	return nil
}

func (d *Datastore) RemoveCollaborator(ctx context.Context, folderID, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.collaborators[folderID][userID]; !ok {
		return storage.ErrNotFound
	}
	delete(d.collaborators[folderID], userID)
	for _, role := range d.roles[folderID] {
		delete(role.assignees, userID)
	}
	delete(d.suspensions[folderID], userID)
	return nil
}

func (d *Datastore) BlacklistDomain(ctx context.Context, rec storage.BlacklistRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.folders[rec.FolderID]; !ok {
		return storage.ErrNotFound
	}
	if d.blacklist[rec.FolderID] == nil {
		d.blacklist[rec.FolderID] = make(map[string]blacklistEntry)
	}
	if _, ok := d.blacklist[rec.FolderID][rec.DomainHash]; ok {
		return storage.ErrCollision
	}
	d.blacklist[rec.FolderID][rec.DomainHash] = blacklistEntry{
		domain:    rec.Domain,
		createdBy: rec.CreatedBy,
		createdAt: time.Now().UTC(),
	}
	return nil
}

func (d *Datastore) DeleteBlacklistedDomain(ctx context.Context, folderID int64, domainHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.blacklist[folderID][domainHash]; !ok {
		return storage.ErrNotFound
	}
	delete(d.blacklist[folderID], domainHash)
	return nil
}

func (d *Datastore) SuspendCollaborator(ctx context.Context, rec storage.SuspensionRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.suspensions[rec.FolderID] == nil {
		d.suspensions[rec.FolderID] = make(map[int64]suspension)
	}
	if existing, ok := d.suspensions[rec.FolderID][rec.UserID]; ok {
		if existing.until == nil || existing.until.After(time.Now()) {
			return storage.ErrCollision
		}
	}
	d.suspensions[rec.FolderID][rec.UserID] = suspension{
		suspendedBy: rec.SuspendedBy,
		until:       rec.SuspendedUntil,
	}
	return nil
}

func (d *Datastore) ReinstateCollaborator(ctx context.Context, folderID, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.suspensions[folderID][userID]; !ok {
		return storage.ErrNotFound
	}
	delete(d.suspensions[folderID], userID)
	return nil
}

func (d *Datastore) CreateRole(ctx context.Context, r storage.NewRole) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.folders[r.FolderID]; !ok {
		return storage.ErrNotFound
	}
	if d.roles[r.FolderID] == nil {
		d.roles[r.FolderID] = make(map[publicid.RoleID]*roleRecord)
	}
	for _, role := range d.roles[r.FolderID] {
		if role.name == r.Name {
			return storage.ErrCollision
		}
	}

	permissions := make(map[folder.Permission]struct{}, len(r.Permissions))
	for _, p := range r.Permissions {
		permissions[p] = struct{}{}
	}
	d.roles[r.FolderID][r.PublicID] = &roleRecord{
		publicID:    r.PublicID,
		name:        r.Name,
		permissions: permissions,
		assignees:   make(map[int64]struct{}),
	}
	return nil
}

func (d *Datastore) UpdateRoleName(ctx context.Context, folderID int64, roleID publicid.RoleID, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	role, ok := d.roles[folderID][roleID]
	if !ok {
		return storage.ErrNotFound
	}
	for id, other := range d.roles[folderID] {
		if id != roleID && other.name == name {
			return storage.ErrCollision
		}
	}
	role.name = name
	return nil
}

func (d *Datastore) DeleteRole(ctx context.Context, folderID int64, roleID publicid.RoleID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.roles[folderID][roleID]; !ok {
		return storage.ErrNotFound
	}
	delete(d.roles[folderID], roleID)
	return nil
}

func (d *Datastore) AddRolePermission(ctx context.Context, folderID int64, roleID publicid.RoleID, p folder.Permission) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	role, ok := d.roles[folderID][roleID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, has := role.permissions[p]; has {
		return storage.ErrCollision
	}
	role.permissions[p] = struct{}{}
	return nil
}

func (d *Datastore) RemoveRolePermission(ctx context.Context, folderID int64, roleID publicid.RoleID, p folder.Permission) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	role, ok := d.roles[folderID][roleID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, has := role.permissions[p]; !has {
		return storage.ErrNotFound
	}
	delete(role.permissions, p)
	return nil
}

func (d *Datastore) AssignRole(ctx context.Context, folderID int64, roleID publicid.RoleID, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	role, ok := d.roles[folderID][roleID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, has := role.assignees[userID]; has {
		return storage.ErrCollision
	}
	role.assignees[userID] = struct{}{}
	return nil
}

func (d *Datastore) RevokeRole(ctx context.Context, folderID int64, roleID publicid.RoleID, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	role, ok := d.roles[folderID][roleID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, has := role.assignees[userID]; !has {
		return storage.ErrNotFound
	}
	delete(role.assignees, userID)
	return nil
}

func (d *Datastore) DisableFeature(ctx context.Context, folderID int64, feature folder.Feature) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disabledFeatures[folderID] == nil {
		d.disabledFeatures[folderID] = make(map[folder.Feature]struct{})
	}
	d.disabledFeatures[folderID][feature] = struct{}{}
	return nil
}

func (d *Datastore) EnableFeature(ctx context.Context, folderID int64, feature folder.Feature) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.disabledFeatures[folderID], feature)
	return nil
}

func (d *Datastore) RecordMetric(ctx context.Context, m storage.Metric) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.metricEvents = append(d.metricEvents, m)
	d.summaries[summaryKey{m.FolderID, m.ActorID, m.Type}] += m.Count
	return nil
}

func (d *Datastore) LogActivity(ctx context.Context, a storage.Activity) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	a.Data = data
	d.activities = append(d.activities, a)
	return nil
}

// MetricEvents returns a copy of the append-only metric rows. Test helper.
func (d *Datastore) MetricEvents() []storage.Metric {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]storage.Metric(nil), d.metricEvents...)
}

// MetricSummary returns the running total for (folder, actor, type). Test
// helper.
func (d *Datastore) MetricSummary(folderID, actorID int64, typ storage.MetricType) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.summaries[summaryKey{folderID, actorID, typ}]
}

// Activities returns a copy of the activity log. Test helper.
func (d *Datastore) Activities() []storage.Activity {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]storage.Activity, len(d.activities))
	copy(out, d.activities)
	return out
}

// ActivityData decodes the data payload of an activity entry. Test helper.
func ActivityData(a storage.Activity) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(a.Data, &out)
	return out
}

func (d *Datastore) findByPublicID(id publicid.FolderID) *folderRecord {
	for _, rec := range d.folders {
		if rec.publicID == id {
			return rec
		}
	}
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func permissionSetsEqual(have map[folder.Permission]struct{}, want []folder.Permission) bool {
	if len(have) != len(want) {
		return false
	}
	for _, p := range want {
		if _, ok := have[p]; !ok {
			return false
		}
	}
	return true
}
