package sqlcommon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/folder/settings"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

// FetchFolder compiles the accumulated requirements into one SELECT: the
// requested columns plus one scalar subquery per check, all against the row
// matched by public id. Missing folders yield the empty placeholder.
func (d *Datastore) FetchFolder(ctx context.Context, q *storage.FolderQuery) (*folder.Folder, error) {
	ctx, span := d.tracer.Start(ctx, "sql.FetchFolder")
	defer span.End()

	fields := q.Fields()
	checks := q.Checks()

	builder := d.stbl.Select()
	for _, field := range fields {
		builder = builder.Column("f." + field.Column())
	}
	for _, check := range checks {
		expr, args, err := compileCheck(check)
		if err != nil {
			return nil, err
		}
		builder = builder.Column(sq.Alias(sq.Expr(expr, args...), check.Alias()))
	}
	builder = builder.
		From("folder f").
		Where(sq.Eq{"f.public_id": q.FolderID().String()})

	var (
		id          int64
		rawPublicID string
		ownerID     int64
		name        string
		visibility  string
		settingsDoc string
		updatedAt   sql.NullTime
	)

	dests := make([]any, 0, len(fields)+len(checks))
	for _, field := range fields {
		switch field {
		case folder.FieldID:
			dests = append(dests, &id)
		case folder.FieldPublicID:
			dests = append(dests, &rawPublicID)
		case folder.FieldOwnerID:
			dests = append(dests, &ownerID)
		case folder.FieldName:
			dests = append(dests, &name)
		case folder.FieldVisibility:
			dests = append(dests, &visibility)
		case folder.FieldSettings:
			dests = append(dests, &settingsDoc)
		case folder.FieldUpdatedAt:
			dests = append(dests, &updatedAt)
		default:
			return nil, fmt.Errorf("unknown folder field %d", field)
		}
	}

	checkResults := make([]int64, len(checks))
	for i := range checks {
		dests = append(dests, &checkResults[i])
	}

	f := folder.New()

	err := builder.QueryRowContext(ctx).Scan(dests...)
	if errors.Is(err, sql.ErrNoRows) {
		return f, nil
	}
	if err != nil {
		return nil, d.handleError(err)
	}

	for _, field := range fields {
		switch field {
		case folder.FieldID:
			f.ID = folder.NewAttr(id)
		case folder.FieldPublicID:
			parsed, err := publicid.FolderIDFromRequest(rawPublicID)
			if err != nil {
				return nil, fmt.Errorf("stored public id %q is malformed", rawPublicID)
			}
			f.PublicID = folder.NewAttr(parsed)
		case folder.FieldOwnerID:
			f.OwnerID = folder.NewAttr(ownerID)
		case folder.FieldName:
			f.Name = folder.NewAttr(name)
		case folder.FieldVisibility:
			f.Visibility = folder.NewAttr(folder.Visibility(visibility))
		case folder.FieldSettings:
			s, err := settings.FromJSON(settingsDoc)
			if err != nil {
				return nil, err
			}
			f.Settings = folder.NewAttr(s)
		case folder.FieldUpdatedAt:
			f.UpdatedAt = folder.NewAttr(updatedAt.Time)
		}
	}

	for i, check := range checks {
		f.SetCheck(check.Alias(), checkResults[i])
	}

	return f, nil
}

// compileCheck renders one check as a scalar expression against the outer
// folder row "f". Boolean checks compile to CASE WHEN EXISTS so every
// engine yields an integer column.
func compileCheck(check storage.Check) (string, []any, error) {
	switch c := check.(type) {
	case storage.UserIsCollaborator:
		return exists(`SELECT 1 FROM folder_collaborator fc WHERE fc.folder_id = f.id AND fc.user_id = ?`),
			[]any{c.UserID}, nil

	case storage.UserHasPermission:
		return exists(`SELECT 1 FROM folder_collaborator_role cr
			JOIN folder_role_permission rp ON rp.folder_id = cr.folder_id AND rp.role_id = cr.role_id
			WHERE cr.folder_id = f.id AND cr.user_id = ? AND rp.permission = ?`),
			[]any{c.UserID, string(c.Permission)}, nil

	case storage.FeatureIsDisabled:
		return exists(`SELECT 1 FROM folder_disabled_feature df WHERE df.folder_id = f.id AND df.feature = ?`),
			[]any{string(c.Feature)}, nil

	case storage.DomainIsBlacklisted:
		return exists(`SELECT 1 FROM folder_blacklisted_domain bd WHERE bd.folder_id = f.id AND bd.domain_hash = ?`),
			[]any{c.DomainHash}, nil

	case storage.RoleNameExists:
		return exists(`SELECT 1 FROM folder_role r WHERE r.folder_id = f.id AND r.name = ?`),
			[]any{c.Name}, nil

	case storage.RoleWithPermissionsExists:
		// Exact set equality: the matched count and the total count must
		// both equal the requested set's size.
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(c.Permissions)), ",")
		expr := exists(fmt.Sprintf(`SELECT 1 FROM folder_role r WHERE r.folder_id = f.id
			AND (SELECT COUNT(*) FROM folder_role_permission rp
				WHERE rp.folder_id = f.id AND rp.role_id = r.public_id AND rp.permission IN (%s)) = ?
			AND (SELECT COUNT(*) FROM folder_role_permission rp2
				WHERE rp2.folder_id = f.id AND rp2.role_id = r.public_id) = ?`, placeholders))

		args := make([]any, 0, len(c.Permissions)+2)
		for _, p := range c.Permissions {
			args = append(args, string(p))
		}
		args = append(args, len(c.Permissions), len(c.Permissions))
		return expr, args, nil

	case storage.RoleExists:
		return exists(`SELECT 1 FROM folder_role r WHERE r.folder_id = f.id AND r.public_id = ?`),
			[]any{c.RoleID.String()}, nil

	case storage.RoleHasPermission:
		return exists(`SELECT 1 FROM folder_role_permission rp WHERE rp.folder_id = f.id AND rp.role_id = ? AND rp.permission = ?`),
			[]any{c.RoleID.String(), string(c.Permission)}, nil

	case storage.RolePermissionCount:
		return `(SELECT COUNT(*) FROM folder_role_permission rp WHERE rp.folder_id = f.id AND rp.role_id = ?)`,
			[]any{c.RoleID.String()}, nil

	case storage.CollaboratorHasRole:
		return exists(`SELECT 1 FROM folder_collaborator_role cr WHERE cr.folder_id = f.id AND cr.role_id = ? AND cr.user_id = ?`),
			[]any{c.RoleID.String(), c.UserID}, nil

	case storage.CollaboratorIsSuspended:
		return exists(`SELECT 1 FROM folder_suspension s WHERE s.folder_id = f.id AND s.user_id = ?
			AND (s.suspended_until IS NULL OR s.suspended_until > ?)`),
			[]any{c.UserID, time.Now().UTC()}, nil

	default:
		return "", nil, fmt.Errorf("uncompilable check %T", check)
	}
}

func exists(subquery string) string {
	return "CASE WHEN EXISTS (" + subquery + ") THEN 1 ELSE 0 END"
}
