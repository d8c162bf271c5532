// Package notifications is the boundary to whatever delivers owner
// notifications. The pipeline only decides whether to notify; delivery is a
// black box behind the Notifier interface.
package notifications

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/bookmarkd/bookmarkd/pkg/logger"
	"github.com/bookmarkd/bookmarkd/pkg/publicid"
)

type Type string

const (
	TypeCollaboratorExit      Type = "collaborator_exit"
	TypeCollaboratorSuspended Type = "collaborator_suspended"
	TypeDomainBlacklisted     Type = "domain_blacklisted"
)

// Notification is addressed to the folder owner, never the actor.
type Notification struct {
	FolderID publicid.FolderID
	OwnerID  int64
	ActorID  int64
	Type     Type
	Data     map[string]string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the service log. It stands in until
// a real delivery channel is wired up.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(l logger.Logger) *LogNotifier {
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) Notify(ctx context.Context, notification Notification) error {
	n.logger.Info("notification",
		zap.String("folder_id", notification.FolderID.String()),
		zap.Int64("owner_id", notification.OwnerID),
		zap.Int64("actor_id", notification.ActorID),
		zap.String("type", string(notification.Type)),
	)
	return nil
}

// CaptureNotifier records notifications for assertions in tests.
type CaptureNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func NewCaptureNotifier() *CaptureNotifier {
	return &CaptureNotifier{}
}

func (n *CaptureNotifier) Notify(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, notification)
	return nil
}

func (n *CaptureNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]Notification(nil), n.sent...)
}
