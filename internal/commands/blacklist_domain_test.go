package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookmarkd/bookmarkd/internal/domain"
	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/folder/settings"
	"github.com/bookmarkd/bookmarkd/pkg/logger"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
	"github.com/bookmarkd/bookmarkd/pkg/storage/memory"
)

func TestBlacklistDomain(t *testing.T) {
	const actorID int64 = 7

	setup := func(t *testing.T) (*fixture, *BlacklistDomainCommand) {
		fx := newFixture(t)
		fx.addCollaborator(actorID)
		fx.grantPermissions(actorID, folder.PermissionBlacklistDomains)
		cmd := NewBlacklistDomainCommand(fx.ds, fx.queue, fx.notifier, logger.NewNoopLogger())
		return fx, cmd
	}

	t.Run("records_side_effects_on_success", func(t *testing.T) {
		fx, cmd := setup(t)

		err := cmd.Execute(context.Background(), &BlacklistDomainRequest{
			FolderID: fx.folderID,
			ActorID:  actorID,
			URL:      "https://www.Example.COM/some/path",
		})
		require.NoError(t, err)

		require.Equal(t, int64(1), fx.ds.MetricSummary(fx.rowID, actorID, storage.MetricDomainBlacklisted))

		activities := fx.ds.Activities()
		require.Len(t, activities, 1)
		require.Equal(t, storage.ActivityDomainBlacklisted, activities[0].Type)
		require.Equal(t, "example.com", memory.ActivityData(activities[0])["domain"])

		sent := fx.notifier.Sent()
		require.Len(t, sent, 1)
		require.Equal(t, fx.ownerID, sent[0].OwnerID)
		require.Equal(t, "example.com", sent[0].Data["domain"])
	})

	t.Run("owner_actor_skips_metric_and_notification", func(t *testing.T) {
		fx, cmd := setup(t)

		err := cmd.Execute(context.Background(), &BlacklistDomainRequest{
			FolderID: fx.folderID,
			ActorID:  fx.ownerID,
			URL:      "https://example.com",
		})
		require.NoError(t, err)

		require.Empty(t, fx.ds.MetricEvents())
		require.Empty(t, fx.notifier.Sent())
		// The activity log is not actor-scoped and is still written.
		require.Len(t, fx.ds.Activities(), 1)
	})

	t.Run("duplicate_domain_conflicts", func(t *testing.T) {
		fx, cmd := setup(t)

		req := &BlacklistDomainRequest{FolderID: fx.folderID, ActorID: actorID, URL: "example.com"}
		require.NoError(t, cmd.Execute(context.Background(), req))

		// Same host through a different spelling of the URL.
		err := cmd.Execute(context.Background(), &BlacklistDomainRequest{
			FolderID: fx.folderID,
			ActorID:  actorID,
			URL:      "http://www.example.com/other",
		})
		require.ErrorIs(t, err, errDomainAlreadyBlacklisted)
		require.True(t, domain.IsConflict(err))
	})

	t.Run("non_member_sees_not_found", func(t *testing.T) {
		fx, cmd := setup(t)

		err := cmd.Execute(context.Background(), &BlacklistDomainRequest{
			FolderID: fx.folderID,
			ActorID:  99,
			URL:      "example.com",
		})
		require.ErrorIs(t, err, domain.ErrFolderNotFound)
	})

	t.Run("collaborator_without_permission_is_forbidden", func(t *testing.T) {
		fx, cmd := setup(t)
		fx.addCollaborator(8)

		err := cmd.Execute(context.Background(), &BlacklistDomainRequest{
			FolderID: fx.folderID,
			ActorID:  8,
			URL:      "example.com",
		})
		require.ErrorIs(t, err, domain.ErrPermissionDenied)
	})

	t.Run("suspended_actor_is_forbidden", func(t *testing.T) {
		fx, cmd := setup(t)
		require.NoError(t, fx.ds.SuspendCollaborator(context.Background(), storage.SuspensionRecord{
			FolderID:    fx.rowID,
			UserID:      actorID,
			SuspendedBy: fx.ownerID,
		}))

		err := cmd.Execute(context.Background(), &BlacklistDomainRequest{
			FolderID: fx.folderID,
			ActorID:  actorID,
			URL:      "example.com",
		})
		require.True(t, domain.IsForbidden(err))
	})

	t.Run("disabled_feature_blocks_collaborator_not_owner", func(t *testing.T) {
		fx, cmd := setup(t)
		require.NoError(t, fx.ds.DisableFeature(context.Background(), fx.rowID, folder.FeatureBlacklistDomains))

		err := cmd.Execute(context.Background(), &BlacklistDomainRequest{
			FolderID: fx.folderID,
			ActorID:  actorID,
			URL:      "example.com",
		})
		require.Equal(t, domain.KindDisabled, domain.KindOf(err))

		err = cmd.Execute(context.Background(), &BlacklistDomainRequest{
			FolderID: fx.folderID,
			ActorID:  fx.ownerID,
			URL:      "example.com",
		})
		require.NoError(t, err)
	})

	t.Run("unknown_folder_is_not_found", func(t *testing.T) {
		_, cmd := setup(t)

		err := cmd.Execute(context.Background(), &BlacklistDomainRequest{
			FolderID: publicid.MustNewFolderID(),
			ActorID:  actorID,
			URL:      "example.com",
		})
		require.ErrorIs(t, err, domain.ErrFolderNotFound)
	})
}

func TestBlacklistDomainSuppressedActivity(t *testing.T) {
	const actorID int64 = 7

	tests := map[string]storage.NewFolder{
		"private_folder": {
			OwnerID:    ownerUserID,
			Name:       "private stash",
			Visibility: folder.VisibilityPrivate,
			Settings:   settings.Default(),
		},
		"password_protected_folder": {
			OwnerID:    ownerUserID,
			Name:       "locked stash",
			Visibility: folder.VisibilityPasswordProtected,
			Settings:   settings.Default(),
		},
		"activities_globally_off": {
			OwnerID:    ownerUserID,
			Name:       "quiet folder",
			Visibility: folder.VisibilityPublic,
			Settings: mustSettings(t, map[string]any{
				"activities": map[string]any{"enabled": false},
			}),
		},
		"event_class_off": {
			OwnerID:    ownerUserID,
			Name:       "quieter folder",
			Visibility: folder.VisibilityPublic,
			Settings: mustSettings(t, map[string]any{
				"activities": map[string]any{
					"domain_blacklisted": map[string]any{"enabled": false},
				},
			}),
		},
	}

	for name, nf := range tests {
		t.Run(name, func(t *testing.T) {
			fx := newFixtureWith(t, nf)
			fx.addCollaborator(actorID)
			fx.grantPermissions(actorID, folder.PermissionBlacklistDomains)
			cmd := NewBlacklistDomainCommand(fx.ds, fx.queue, fx.notifier, logger.NewNoopLogger())

			err := cmd.Execute(context.Background(), &BlacklistDomainRequest{
				FolderID: fx.folderID,
				ActorID:  actorID,
				URL:      "example.com",
			})
			require.NoError(t, err)

			// The write itself happened, only the log entry is suppressed.
			require.Empty(t, fx.ds.Activities())
		})
	}
}

func TestBlacklistDomainNotificationGating(t *testing.T) {
	const actorID int64 = 7

	tests := map[string]settings.Settings{
		"notifications_globally_off": mustSettings(t, map[string]any{
			"notifications": map[string]any{"enabled": false},
		}),
		"event_off": mustSettings(t, map[string]any{
			"notifications": map[string]any{
				"domain_blacklisted": map[string]any{"enabled": false},
			},
		}),
	}

	for name, s := range tests {
		t.Run(name, func(t *testing.T) {
			fx := newFixtureWith(t, storage.NewFolder{
				OwnerID:    ownerUserID,
				Name:       "muted folder",
				Visibility: folder.VisibilityPublic,
				Settings:   s,
			})
			fx.addCollaborator(actorID)
			fx.grantPermissions(actorID, folder.PermissionBlacklistDomains)
			cmd := NewBlacklistDomainCommand(fx.ds, fx.queue, fx.notifier, logger.NewNoopLogger())

			err := cmd.Execute(context.Background(), &BlacklistDomainRequest{
				FolderID: fx.folderID,
				ActorID:  actorID,
				URL:      "example.com",
			})
			require.NoError(t, err)
			require.Empty(t, fx.notifier.Sent())
		})
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := map[string]struct {
		input   string
		want    string
		wantErr bool
	}{
		"bare_domain":        {input: "example.com", want: "example.com"},
		"full_url":           {input: "https://example.com/a/b?q=1", want: "example.com"},
		"strips_www":         {input: "https://www.example.com", want: "example.com"},
		"lowercases":         {input: "HTTPS://EXAMPLE.COM", want: "example.com"},
		"keeps_subdomain":    {input: "blog.example.com", want: "blog.example.com"},
		"empty":              {input: "", wantErr: true},
		"whitespace_only":    {input: "   ", wantErr: true},
		"scheme_only":        {input: "https://", wantErr: true},
		"unparseable_scheme": {input: "://nope", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, hash, err := normalizeDomain(tc.input)
			if tc.wantErr {
				require.True(t, domain.IsBadRequest(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.NotEmpty(t, hash)
		})
	}
}
