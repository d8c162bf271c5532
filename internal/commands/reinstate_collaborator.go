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

var errCollaboratorNotSuspended = domain.NotFound("CollaboratorNotSuspended", "The collaborator is not suspended.")

type ReinstateCollaboratorRequest struct {
	FolderID       publicid.FolderID
	ActorID        int64
	CollaboratorID int64
}

type ReinstateCollaboratorCommand struct {
	logger    logger.Logger
	datastore storage.FolderDatastore
	queue     *deferred.Queue
}

func NewReinstateCollaboratorCommand(ds storage.FolderDatastore, queue *deferred.Queue, l logger.Logger) *ReinstateCollaboratorCommand {
	return &ReinstateCollaboratorCommand{
		logger:    l,
		datastore: ds,
		queue:     queue,
	}
}

func (c *ReinstateCollaboratorCommand) Execute(ctx context.Context, req *ReinstateCollaboratorRequest) error {
	return pipeline.Execute(ctx, c.datastore, req.FolderID,
		handlers.FolderExistsConstraint{},
		handlers.MustBeACollaboratorConstraint{UserID: req.ActorID},
		handlers.MustNotBeSuspendedConstraint{UserID: req.ActorID},
		handlers.PermissionConstraint{UserID: req.ActorID, Permission: folder.PermissionSuspendUsers},
		targetSuspendedConstraint{targetID: req.CollaboratorID},
		reinstateCollaboratorAction{datastore: c.datastore, targetID: req.CollaboratorID},
	)
}

type targetSuspendedConstraint struct {
	targetID int64
}

func (c targetSuspendedConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.CollaboratorIsSuspended{UserID: c.targetID})
}

func (c targetSuspendedConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if !f.Bool(storage.CollaboratorIsSuspended{UserID: c.targetID}.Alias()) {
		return errCollaboratorNotSuspended
	}
	return nil
}

type reinstateCollaboratorAction struct {
	datastore storage.FolderDatastore
	targetID  int64
}

func (a reinstateCollaboratorAction) Handle(ctx context.Context, f *folder.Folder) error {
	err := a.datastore.ReinstateCollaborator(ctx, f.ID.Value(), a.targetID)
	return storeNotFound(err, errCollaboratorNotSuspended)
}
