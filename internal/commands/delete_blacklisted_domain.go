package commands

import (
	"context"

	"github.com/bookmarkd/bookmarkd/internal/deferred"
	"github.com/bookmarkd/bookmarkd/internal/domain"
	"github.com/bookmarkd/bookmarkd/internal/handlers"
	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/logger"
	"github.com/bookmarkd/bookmarkd/pkg/pipeline"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

var errBlacklistRecordNotFound = domain.NotFound("BlacklistRecordNotFound", "The domain is not blacklisted for the folder.")

type DeleteBlacklistedDomainRequest struct {
	FolderID publicid.FolderID
	ActorID  int64
	URL      string
}

type DeleteBlacklistedDomainCommand struct {
	logger    logger.Logger
	datastore storage.FolderDatastore
	queue     *deferred.Queue
}

func NewDeleteBlacklistedDomainCommand(ds storage.FolderDatastore, queue *deferred.Queue, l logger.Logger) *DeleteBlacklistedDomainCommand {
	return &DeleteBlacklistedDomainCommand{
		logger:    l,
		datastore: ds,
		queue:     queue,
	}
}

func (c *DeleteBlacklistedDomainCommand) Execute(ctx context.Context, req *DeleteBlacklistedDomainRequest) error {
	_, domainHash, err := normalizeDomain(req.URL)
	if err != nil {
		return err
	}

	return pipeline.Execute(ctx, c.datastore, req.FolderID,
		handlers.FolderExistsConstraint{},
		handlers.MustBeACollaboratorConstraint{UserID: req.ActorID},
		handlers.MustNotBeSuspendedConstraint{UserID: req.ActorID},
		handlers.PermissionConstraint{UserID: req.ActorID, Permission: folder.PermissionBlacklistDomains},
		blacklistRecordExistsConstraint{domainHash: domainHash},
		deleteBlacklistedDomainAction{datastore: c.datastore, domainHash: domainHash},
		handlers.TouchFolderAction{Datastore: c.datastore},
	)
}

type blacklistRecordExistsConstraint struct {
	domainHash string
}

func (c blacklistRecordExistsConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.DomainIsBlacklisted{DomainHash: c.domainHash})
}

func (c blacklistRecordExistsConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if !f.Bool(storage.DomainIsBlacklisted{DomainHash: c.domainHash}.Alias()) {
		return errBlacklistRecordNotFound
	}
	return nil
}

type deleteBlacklistedDomainAction struct {
	datastore  storage.FolderDatastore
	domainHash string
}

func (a deleteBlacklistedDomainAction) Handle(ctx context.Context, f *folder.Folder) error {
	err := a.datastore.DeleteBlacklistedDomain(ctx, f.ID.Value(), a.domainHash)
	return storeNotFound(err, errBlacklistRecordNotFound)
}
