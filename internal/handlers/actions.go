package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bookmarkd/bookmarkd/internal/deferred"
	"github.com/bookmarkd/bookmarkd/internal/notifications"
	"github.com/bookmarkd/bookmarkd/pkg/folder"
	"github.com/bookmarkd/bookmarkd/pkg/folder/settings"
	"github.com/bookmarkd/bookmarkd/pkg/pipeline"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

// TouchFolderAction bumps the folder's updated_at timestamp. Mutating
// actions never do this implicitly; commands append this stage when the
// operation counts as modifying the folder.
type TouchFolderAction struct {
	Datastore storage.FolderDatastore
}

func (a TouchFolderAction) Handle(ctx context.Context, f *folder.Folder) error {
	return a.Datastore.TouchFolder(ctx, f.ID.Value())
}

// RecordMetricAction counts an actor action against the folder. Self
// actions are not counted: when the actor owns the folder nothing is
// written at all. The write is deferred past the response.
type RecordMetricAction struct {
	Datastore storage.FolderDatastore
	Queue     *deferred.Queue
	ActorID   int64
	Type      storage.MetricType
}

func (a RecordMetricAction) Handle(ctx context.Context, f *folder.Folder) error {
	if f.IsOwner(a.ActorID) {
		return nil
	}

	metric := storage.Metric{
		FolderID: f.ID.Value(),
		ActorID:  a.ActorID,
		Type:     a.Type,
		Count:    1,
	}

	a.Queue.Enqueue("record_metric", func(ctx context.Context) error {
		return a.Datastore.RecordMetric(ctx, metric)
	})

	return nil
}

// logActivityAction appends one activity entry; always wrapped by
// LogActivity below, never used bare.
type logActivityAction struct {
	datastore storage.FolderDatastore
	queue     *deferred.Queue
	typ       storage.ActivityType
	data      map[string]any
}

func (a logActivityAction) Scope(q *storage.FolderQuery) {
	// The wrapping Conditional needs these to decide suppression.
	q.WithFields(folder.FieldSettings, folder.FieldVisibility)
}

func (a logActivityAction) Handle(ctx context.Context, f *folder.Folder) error {
	payload, err := json.Marshal(a.data)
	if err != nil {
		return fmt.Errorf("marshal activity data: %w", err)
	}

	activity := storage.Activity{
		FolderID: f.ID.Value(),
		Type:     a.typ,
		Data:     payload,
	}

	a.queue.Enqueue("log_activity", func(ctx context.Context) error {
		return a.datastore.LogActivity(ctx, activity)
	})

	return nil
}

// LogActivity builds the conditional activity-logging stage. The entry is
// suppressed for private and password-protected folders and by the
// folder's settings, globally or per event class. The suppression decision
// runs at invoke time, once the fetched subject carries settings and
// visibility.
func LogActivity(ds storage.FolderDatastore, queue *deferred.Queue, eventKey string, typ storage.ActivityType, data map[string]any) *pipeline.Conditional {
	return pipeline.When(
		func(f *folder.Folder) bool {
			if f.Visibility.Value().IsHidden() {
				return false
			}
			s := f.Settings.Value()
			return s.Bool(settings.KeyActivitiesEnabled) && s.Bool(eventKey)
		},
		logActivityAction{datastore: ds, queue: queue, typ: typ, data: data},
	)
}

// NotifyOwnerAction dispatches an owner notification behind the settings
// chain: global toggle, then the per-event toggle, then an optional mode
// filter. The owner is the only recipient, and an owner acting on their
// own folder is never notified.
type NotifyOwnerAction struct {
	Notifier notifications.Notifier
	Queue    *deferred.Queue
	ActorID  int64
	Type     notifications.Type
	EventKey string
	Data     map[string]string

	// ModeScope and ModeAllows implement per-event mode filters such as
	// "notify only when the leaving collaborator had write permission".
	// Both may be nil.
	ModeScope  func(q *storage.FolderQuery)
	ModeAllows func(f *folder.Folder) bool
}

func (a NotifyOwnerAction) Scope(q *storage.FolderQuery) {
	q.WithFields(folder.FieldSettings)
	if a.ModeScope != nil {
		a.ModeScope(q)
	}
}

func (a NotifyOwnerAction) Handle(ctx context.Context, f *folder.Folder) error {
	if f.IsOwner(a.ActorID) {
		return nil
	}

	s := f.Settings.Value()
	if !s.Bool(settings.KeyNotificationsEnabled) || !s.Bool(a.EventKey) {
		return nil
	}
	if a.ModeAllows != nil && !a.ModeAllows(f) {
		return nil
	}

	notification := notifications.Notification{
		FolderID: f.PublicID.Value(),
		OwnerID:  f.OwnerID.Value(),
		ActorID:  a.ActorID,
		Type:     a.Type,
		Data:     a.Data,
	}

	a.Queue.Enqueue("notify_owner", func(ctx context.Context) error {
		return a.Notifier.Notify(ctx, notification)
	})

	return nil
}
