package sqlcommon

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

func (d *Datastore) CreateFolder(ctx context.Context, nf storage.NewFolder) (int64, error) {
	ctx, span := d.tracer.Start(ctx, "sql.CreateFolder")
	defer span.End()

	now := time.Now().UTC()
	builder := d.stbl.Insert("folder").
		Columns("public_id", "owner_id", "name", "visibility", "settings", "created_at", "updated_at").
		Values(nf.PublicID.String(), nf.OwnerID, nf.Name, string(nf.Visibility), nf.Settings.JSON(), now, now)

	if d.dialect.UseReturning() {
		var id int64
		if err := builder.Suffix("RETURNING id").QueryRowContext(ctx).Scan(&id); err != nil {
			return 0, d.handleError(err)
		}
		return id, nil
	}

	res, err := builder.ExecContext(ctx)
	if err != nil {
		return 0, d.handleError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, d.handleError(err)
	}
	return id, nil
}

func (d *Datastore) TouchFolder(ctx context.Context, folderID int64) error {
	ctx, span := d.tracer.Start(ctx, "sql.TouchFolder")
	defer span.End()

	res, err := d.stbl.Update("folder").
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": folderID}).
		ExecContext(ctx)
	if err != nil {
		return d.handleError(err)
	}
	return d.expectRows(res.RowsAffected())
}

func (d *Datastore) AddCollaborator(ctx context.Context, folderID, userID, invitedBy int64) error {
	ctx, span := d.tracer.Start(ctx, "sql.AddCollaborator")
	defer span.End()

	_, err := d.stbl.Insert("folder_collaborator").
		Columns("folder_id", "user_id", "invited_by", "created_at").
		Values(folderID, userID, invitedBy, time.Now().UTC()).
		ExecContext(ctx)
	return d.handleError(err)
}

func (d *Datastore) RemoveCollaborator(ctx context.Context, folderID, userID int64) error {
	ctx, span := d.tracer.Start(ctx, "sql.RemoveCollaborator")
	defer span.End()

	// Role assignments and suspensions hang off the membership and go with
	// it, in one transaction.
	return d.inTx(ctx, func(stbl sq.StatementBuilderType) error {
		res, err := stbl.Delete("folder_collaborator").
			Where(sq.Eq{"folder_id": folderID, "user_id": userID}).
			ExecContext(ctx)
		if err != nil {
			return d.handleError(err)
		}
		if err := d.expectRows(res.RowsAffected()); err != nil {
			return err
		}

		if _, err := stbl.Delete("folder_collaborator_role").
			Where(sq.Eq{"folder_id": folderID, "user_id": userID}).
			ExecContext(ctx); err != nil {
			return d.handleError(err)
		}

		_, err = stbl.Delete("folder_suspension").
			Where(sq.Eq{"folder_id": folderID, "user_id": userID}).
			ExecContext(ctx)
		return d.handleError(err)
	})
}

func (d *Datastore) BlacklistDomain(ctx context.Context, rec storage.BlacklistRecord) error {
	ctx, span := d.tracer.Start(ctx, "sql.BlacklistDomain")
	defer span.End()

	_, err := d.stbl.Insert("folder_blacklisted_domain").
		Columns("folder_id", "domain", "domain_hash", "created_by", "created_at").
		Values(rec.FolderID, rec.Domain, rec.DomainHash, rec.CreatedBy, time.Now().UTC()).
		ExecContext(ctx)
	return d.handleError(err)
}

func (d *Datastore) DeleteBlacklistedDomain(ctx context.Context, folderID int64, domainHash string) error {
	ctx, span := d.tracer.Start(ctx, "sql.DeleteBlacklistedDomain")
	defer span.End()

	res, err := d.stbl.Delete("folder_blacklisted_domain").
		Where(sq.Eq{"folder_id": folderID, "domain_hash": domainHash}).
		ExecContext(ctx)
	if err != nil {
		return d.handleError(err)
	}
	return d.expectRows(res.RowsAffected())
}

func (d *Datastore) SuspendCollaborator(ctx context.Context, rec storage.SuspensionRecord) error {
	ctx, span := d.tracer.Start(ctx, "sql.SuspendCollaborator")
	defer span.End()

	return d.inTx(ctx, func(stbl sq.StatementBuilderType) error {
		// An expired suspension occupies the unique slot but is no longer
		// active; clear it so only a live suspension collides.
		if _, err := stbl.Delete("folder_suspension").
			Where(sq.Eq{"folder_id": rec.FolderID, "user_id": rec.UserID}).
			Where(sq.NotEq{"suspended_until": nil}).
			Where(sq.LtOrEq{"suspended_until": time.Now().UTC()}).
			ExecContext(ctx); err != nil {
			return d.handleError(err)
		}

		_, err := stbl.Insert("folder_suspension").
			Columns("folder_id", "user_id", "suspended_by", "suspended_until", "created_at").
			Values(rec.FolderID, rec.UserID, rec.SuspendedBy, rec.SuspendedUntil, time.Now().UTC()).
			ExecContext(ctx)
		return d.handleError(err)
	})
}

func (d *Datastore) ReinstateCollaborator(ctx context.Context, folderID, userID int64) error {
	ctx, span := d.tracer.Start(ctx, "sql.ReinstateCollaborator")
	defer span.End()

	res, err := d.stbl.Delete("folder_suspension").
		Where(sq.Eq{"folder_id": folderID, "user_id": userID}).
		ExecContext(ctx)
	if err != nil {
		return d.handleError(err)
	}
	return d.expectRows(res.RowsAffected())
}

func (d *Datastore) CreateRole(ctx context.Context, r storage.NewRole) error {
	ctx, span := d.tracer.Start(ctx, "sql.CreateRole")
	defer span.End()

	return d.inTx(ctx, func(stbl sq.StatementBuilderType) error {
		if _, err := stbl.Insert("folder_role").
			Columns("folder_id", "public_id", "name", "created_at").
			Values(r.FolderID, r.PublicID.String(), r.Name, time.Now().UTC()).
			ExecContext(ctx); err != nil {
			return d.handleError(err)
		}

		insert := stbl.Insert("folder_role_permission").
			Columns("folder_id", "role_id", "permission")
		for _, p := range r.Permissions {
			insert = insert.Values(r.FolderID, r.PublicID.String(), string(p))
		}
		_, err := insert.ExecContext(ctx)
		return d.handleError(err)
	})
}

func (d *Datastore) UpdateRoleName(ctx context.Context, folderID int64, roleID publicid.RoleID, name string) error {
	ctx, span := d.tracer.Start(ctx, "sql.UpdateRoleName")
	defer span.End()

	res, err := d.stbl.Update("folder_role").
		Set("name", name).
		Where(sq.Eq{"folder_id": folderID, "public_id": roleID.String()}).
		ExecContext(ctx)
	if err != nil {
		return d.handleError(err)
	}
	return d.expectRows(res.RowsAffected())
}

func (d *Datastore) DeleteRole(ctx context.Context, folderID int64, roleID publicid.RoleID) error {
	ctx, span := d.tracer.Start(ctx, "sql.DeleteRole")
	defer span.End()

	return d.inTx(ctx, func(stbl sq.StatementBuilderType) error {
		res, err := stbl.Delete("folder_role").
			Where(sq.Eq{"folder_id": folderID, "public_id": roleID.String()}).
			ExecContext(ctx)
		if err != nil {
			return d.handleError(err)
		}
		if err := d.expectRows(res.RowsAffected()); err != nil {
			return err
		}

		if _, err := stbl.Delete("folder_role_permission").
			Where(sq.Eq{"folder_id": folderID, "role_id": roleID.String()}).
			ExecContext(ctx); err != nil {
			return d.handleError(err)
		}

		_, err = stbl.Delete("folder_collaborator_role").
			Where(sq.Eq{"folder_id": folderID, "role_id": roleID.String()}).
			ExecContext(ctx)
		return d.handleError(err)
	})
}

func (d *Datastore) AddRolePermission(ctx context.Context, folderID int64, roleID publicid.RoleID, p folder.Permission) error {
	ctx, span := d.tracer.Start(ctx, "sql.AddRolePermission")
	defer span.End()

	// INSERT..SELECT keyed on the role row, so a vanished role shows up as
	// zero affected rows instead of a dangling permission.
	res, err := d.stbl.Insert("folder_role_permission").
		Columns("folder_id", "role_id", "permission").
		Select(
			sq.Select("r.folder_id", "r.public_id").
				Column(sq.Expr("?", string(p))).
				From("folder_role r").
				Where(sq.Eq{"r.folder_id": folderID, "r.public_id": roleID.String()}),
		).
		ExecContext(ctx)
	if err != nil {
		return d.handleError(err)
	}
	return d.expectRows(res.RowsAffected())
}

func (d *Datastore) RemoveRolePermission(ctx context.Context, folderID int64, roleID publicid.RoleID, p folder.Permission) error {
	ctx, span := d.tracer.Start(ctx, "sql.RemoveRolePermission")
	defer span.End()

	res, err := d.stbl.Delete("folder_role_permission").
		Where(sq.Eq{"folder_id": folderID, "role_id": roleID.String(), "permission": string(p)}).
		ExecContext(ctx)
	if err != nil {
		return d.handleError(err)
	}
	return d.expectRows(res.RowsAffected())
}

func (d *Datastore) AssignRole(ctx context.Context, folderID int64, roleID publicid.RoleID, userID int64) error {
	ctx, span := d.tracer.Start(ctx, "sql.AssignRole")
	defer span.End()

	res, err := d.stbl.Insert("folder_collaborator_role").
		Columns("folder_id", "role_id", "user_id").
		Select(
			sq.Select("r.folder_id", "r.public_id").
				Column(sq.Expr("?", userID)).
				From("folder_role r").
				Where(sq.Eq{"r.folder_id": folderID, "r.public_id": roleID.String()}),
		).
		ExecContext(ctx)
	if err != nil {
		return d.handleError(err)
	}
	return d.expectRows(res.RowsAffected())
}

func (d *Datastore) RevokeRole(ctx context.Context, folderID int64, roleID publicid.RoleID, userID int64) error {
	ctx, span := d.tracer.Start(ctx, "sql.RevokeRole")
	defer span.End()

	res, err := d.stbl.Delete("folder_collaborator_role").
		Where(sq.Eq{"folder_id": folderID, "role_id": roleID.String(), "user_id": userID}).
		ExecContext(ctx)
	if err != nil {
		return d.handleError(err)
	}
	return d.expectRows(res.RowsAffected())
}

func (d *Datastore) DisableFeature(ctx context.Context, folderID int64, feature folder.Feature) error {
	ctx, span := d.tracer.Start(ctx, "sql.DisableFeature")
	defer span.End()

	_, err := d.stbl.Insert("folder_disabled_feature").
		Columns("folder_id", "feature").
		Values(folderID, string(feature)).
		ExecContext(ctx)
	if d.dialect.IsDuplicateError(err) {
		// Disabling twice is a no-op.
		return nil
	}
	return d.handleError(err)
}

func (d *Datastore) EnableFeature(ctx context.Context, folderID int64, feature folder.Feature) error {
	ctx, span := d.tracer.Start(ctx, "sql.EnableFeature")
	defer span.End()

	_, err := d.stbl.Delete("folder_disabled_feature").
		Where(sq.Eq{"folder_id": folderID, "feature": string(feature)}).
		ExecContext(ctx)
	return d.handleError(err)
}

func (d *Datastore) RecordMetric(ctx context.Context, m storage.Metric) error {
	ctx, span := d.tracer.Start(ctx, "sql.RecordMetric")
	defer span.End()

	return d.inTx(ctx, func(stbl sq.StatementBuilderType) error {
		if _, err := stbl.Insert("folder_metric").
			Columns("folder_id", "actor_id", "metric_type", "count", "created_at").
			Values(m.FolderID, m.ActorID, string(m.Type), m.Count, time.Now().UTC()).
			ExecContext(ctx); err != nil {
			return d.handleError(err)
		}

		_, err := stbl.Insert("folder_metric_summary").
			Columns("folder_id", "actor_id", "metric_type", "total").
			Values(m.FolderID, m.ActorID, string(m.Type), m.Count).
			Suffix(d.dialect.MetricSummaryUpsert()).
			ExecContext(ctx)
		return d.handleError(err)
	})
}

func (d *Datastore) LogActivity(ctx context.Context, a storage.Activity) error {
	ctx, span := d.tracer.Start(ctx, "sql.LogActivity")
	defer span.End()

	_, err := d.stbl.Insert("folder_activity").
		Columns("folder_id", "activity_type", "data", "created_at").
		Values(a.FolderID, string(a.Type), a.Data, time.Now().UTC()).
		ExecContext(ctx)
	return d.handleError(err)
}

func (d *Datastore) inTx(ctx context.Context, fn func(stbl sq.StatementBuilderType) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return d.handleError(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(d.stbl.RunWith(tx)); err != nil {
		return err
	}
	return d.handleError(tx.Commit())
}

func (d *Datastore) expectRows(n int64, err error) error {
	if err != nil {
		return d.handleError(err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
