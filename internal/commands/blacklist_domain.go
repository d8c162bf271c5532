package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/bookmarkd/bookmarkd/internal/deferred"
	"github.com/bookmarkd/bookmarkd/internal/domain"
	"github.com/bookmarkd/bookmarkd/internal/handlers"
	"github.com/bookmarkd/bookmarkd/internal/notifications"
	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/folder/settings"
	"github.com/bookmarkd/bookmarkd/pkg/logger"
	"github.com/bookmarkd/bookmarkd/pkg/pipeline"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

var errDomainAlreadyBlacklisted = domain.Conflict("DomainAlreadyBlacklisted", "The domain has already been blacklisted for the folder.")

type BlacklistDomainRequest struct {
	FolderID publicid.FolderID
	ActorID  int64
	URL      string
}

type BlacklistDomainCommand struct {
	logger    logger.Logger
	datastore storage.FolderDatastore
	queue     *deferred.Queue
	notifier  notifications.Notifier
}

func NewBlacklistDomainCommand(ds storage.FolderDatastore, queue *deferred.Queue, notifier notifications.Notifier, l logger.Logger) *BlacklistDomainCommand {
	return &BlacklistDomainCommand{
		logger:    l,
		datastore: ds,
		queue:     queue,
		notifier:  notifier,
	}
}

func (c *BlacklistDomainCommand) Execute(ctx context.Context, req *BlacklistDomainRequest) error {
	domainName, domainHash, err := normalizeDomain(req.URL)
	if err != nil {
		return err
	}

	c.logger.Debug("blacklisting domain",
		zap.String("folder_id", req.FolderID.String()),
		zap.String("domain", domainName),
	)

	return pipeline.Execute(ctx, c.datastore, req.FolderID,
		handlers.FolderExistsConstraint{},
		handlers.MustBeACollaboratorConstraint{UserID: req.ActorID},
		handlers.MustNotBeSuspendedConstraint{UserID: req.ActorID},
		handlers.PermissionConstraint{UserID: req.ActorID, Permission: folder.PermissionBlacklistDomains},
		handlers.FeatureMustBeEnabledConstraint{UserID: req.ActorID, Feature: folder.FeatureBlacklistDomains},
		domainNotBlacklistedConstraint{domainHash: domainHash},
		blacklistDomainAction{
			datastore:  c.datastore,
			actorID:    req.ActorID,
			domainName: domainName,
			domainHash: domainHash,
		},
		handlers.TouchFolderAction{Datastore: c.datastore},
		handlers.RecordMetricAction{
			Datastore: c.datastore,
			Queue:     c.queue,
			ActorID:   req.ActorID,
			Type:      storage.MetricDomainBlacklisted,
		},
		handlers.LogActivity(c.datastore, c.queue, settings.KeyLogDomainBlacklisted, storage.ActivityDomainBlacklisted, map[string]any{
			"domain":         domainName,
			"blacklisted_by": req.ActorID,
		}),
		handlers.NotifyOwnerAction{
			Notifier: c.notifier,
			Queue:    c.queue,
			ActorID:  req.ActorID,
			Type:     notifications.TypeDomainBlacklisted,
			EventKey: settings.KeyNotifyDomainBlacklisted,
			Data:     map[string]string{"domain": domainName},
		},
	)
}

type domainNotBlacklistedConstraint struct {
	domainHash string
}

func (c domainNotBlacklistedConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.DomainIsBlacklisted{DomainHash: c.domainHash})
}

func (c domainNotBlacklistedConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if f.Bool(storage.DomainIsBlacklisted{DomainHash: c.domainHash}.Alias()) {
		return errDomainAlreadyBlacklisted
	}
	return nil
}

type blacklistDomainAction struct {
	datastore  storage.FolderDatastore
	actorID    int64
	domainName string
	domainHash string
}

func (a blacklistDomainAction) Handle(ctx context.Context, f *folder.Folder) error {
	err := a.datastore.BlacklistDomain(ctx, storage.BlacklistRecord{
		FolderID:   f.ID.Value(),
		Domain:     a.domainName,
		DomainHash: a.domainHash,
		CreatedBy:  a.actorID,
	})

	return storeConflict(err, errDomainAlreadyBlacklisted)
}

// normalizeDomain extracts the canonical host from a raw URL or bare
// domain and hashes it. The hash, not the display name, is the record's
// identity.
func normalizeDomain(raw string) (name, hash string, err error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return "", "", domain.BadRequest("InvalidDomain", "The given URL has no resolvable domain.")
	}

	if !strings.Contains(input, "://") {
		input = "https://" + input
	}

	parsed, parseErr := url.Parse(input)
	if parseErr != nil || parsed.Hostname() == "" {
		return "", "", domain.BadRequest("InvalidDomain", "The given URL has no resolvable domain.")
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")

	sum := sha256.Sum256([]byte(host))
	return host, hex.EncodeToString(sum[:]), nil
}
