package commands

import (
	"context"
	"strconv"
	"time"

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

var (
	errCannotSuspendSelf            = domain.BadRequest("CannotSuspendSelf", "You cannot suspend yourself.")
	errCannotSuspendOwner           = domain.Forbidden("CannotSuspendFolderOwner", "The folder owner cannot be suspended.")
	errUserNotACollaborator         = domain.NotFound("UserNotACollaborator", "The user is not a collaborator on the folder.")
	errCollaboratorAlreadySuspended = domain.Conflict("CollaboratorAlreadySuspended", "The collaborator is already suspended.")
	errInvalidSuspensionDuration    = domain.BadRequest("InvalidSuspensionDuration", "The suspension duration must be at least one hour.")
)

// SuspendCollaboratorRequest suspends CollaboratorID for DurationHours, or
// indefinitely when DurationHours is nil.
type SuspendCollaboratorRequest struct {
	FolderID       publicid.FolderID
	ActorID        int64
	CollaboratorID int64
	DurationHours  *int64
}

type SuspendCollaboratorCommand struct {
	logger    logger.Logger
	datastore storage.FolderDatastore
	queue     *deferred.Queue
	notifier  notifications.Notifier
}

func NewSuspendCollaboratorCommand(ds storage.FolderDatastore, queue *deferred.Queue, notifier notifications.Notifier, l logger.Logger) *SuspendCollaboratorCommand {
	return &SuspendCollaboratorCommand{
		logger:    l,
		datastore: ds,
		queue:     queue,
		notifier:  notifier,
	}
}

func (c *SuspendCollaboratorCommand) Execute(ctx context.Context, req *SuspendCollaboratorRequest) error {
	var suspendedUntil *time.Time
	if req.DurationHours != nil {
		if *req.DurationHours < 1 {
			return errInvalidSuspensionDuration
		}
		until := time.Now().UTC().Add(time.Duration(*req.DurationHours) * time.Hour)
		suspendedUntil = &until
	}

	if req.ActorID == req.CollaboratorID {
		return errCannotSuspendSelf
	}

	return pipeline.Execute(ctx, c.datastore, req.FolderID,
		handlers.FolderExistsConstraint{},
		handlers.MustBeACollaboratorConstraint{UserID: req.ActorID},
		handlers.MustNotBeSuspendedConstraint{UserID: req.ActorID},
		handlers.PermissionConstraint{UserID: req.ActorID, Permission: folder.PermissionSuspendUsers},
		handlers.FeatureMustBeEnabledConstraint{UserID: req.ActorID, Feature: folder.FeatureSuspendUsers},
		targetNotOwnerConstraint{targetID: req.CollaboratorID},
		targetIsCollaboratorConstraint{targetID: req.CollaboratorID},
		targetNotSuspendedConstraint{targetID: req.CollaboratorID},
		suspendCollaboratorAction{
			datastore:      c.datastore,
			actorID:        req.ActorID,
			targetID:       req.CollaboratorID,
			suspendedUntil: suspendedUntil,
		},
		handlers.RecordMetricAction{
			Datastore: c.datastore,
			Queue:     c.queue,
			ActorID:   req.ActorID,
			Type:      storage.MetricCollaboratorSuspended,
		},
		handlers.LogActivity(c.datastore, c.queue, settings.KeyLogSuspension, storage.ActivityCollaboratorSuspended, map[string]any{
			"collaborator_id": req.CollaboratorID,
			"suspended_by":    req.ActorID,
		}),
		handlers.NotifyOwnerAction{
			Notifier: c.notifier,
			Queue:    c.queue,
			ActorID:  req.ActorID,
			Type:     notifications.TypeCollaboratorSuspended,
			EventKey: settings.KeyNotifySuspension,
			Data:     map[string]string{"collaborator_id": strconv.FormatInt(req.CollaboratorID, 10)},
		},
	)
}

type targetNotOwnerConstraint struct {
	targetID int64
}

func (c targetNotOwnerConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if f.IsOwner(c.targetID) {
		return errCannotSuspendOwner
	}
	return nil
}

type targetIsCollaboratorConstraint struct {
	targetID int64
}

func (c targetIsCollaboratorConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.UserIsCollaborator{UserID: c.targetID})
}

func (c targetIsCollaboratorConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if !f.Bool(storage.UserIsCollaborator{UserID: c.targetID}.Alias()) {
		return errUserNotACollaborator
	}
	return nil
}

type targetNotSuspendedConstraint struct {
	targetID int64
}

func (c targetNotSuspendedConstraint) Scope(q *storage.FolderQuery) {
	q.WithCheck(storage.CollaboratorIsSuspended{UserID: c.targetID})
}

func (c targetNotSuspendedConstraint) Handle(ctx context.Context, f *folder.Folder) error {
	if f.Bool(storage.CollaboratorIsSuspended{UserID: c.targetID}.Alias()) {
		return errCollaboratorAlreadySuspended
	}
	return nil
}

type suspendCollaboratorAction struct {
	datastore      storage.FolderDatastore
	actorID        int64
	targetID       int64
	suspendedUntil *time.Time
}

func (a suspendCollaboratorAction) Handle(ctx context.Context, f *folder.Folder) error {
	err := a.datastore.SuspendCollaborator(ctx, storage.SuspensionRecord{
		FolderID:       f.ID.Value(),
		UserID:         a.targetID,
		SuspendedBy:    a.actorID,
		SuspendedUntil: a.suspendedUntil,
	})

	return storeConflict(err, errCollaboratorAlreadySuspended)
}
