// Package commands implements one handler per folder-mutating operation.
//
// Each command assembles its ordered stage list, constraints first, then
// actions, then the settings-gated side effects, and hands it to the
// pipeline. Commands own the translation of storage sentinels into domain
// errors; stages below them and transports above them never see a raw
// storage error.
package commands

import (
	"errors"

	"github.com/bookmarkd/bookmarkd/internal/domain"
	"github.com/bookmarkd/bookmarkd/pkg/storage"
)

// storeConflict maps a unique-constraint violation onto the operation's
// conflict error. The store's verdict is authoritative: a race can slip
// past a scope-time uniqueness check, and the colliding write must still
// surface as the same Conflict the check would have raised.
func storeConflict(err error, conflict *domain.Error) error {
	if errors.Is(err, storage.ErrCollision) {
		return conflict
	}
	return err
}

// storeNotFound maps a missing-row write failure onto the operation's
// not-found error, for actions whose target can vanish between the fetch
// and the write.
func storeNotFound(err error, notFound *domain.Error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return notFound
	}
	return err
}
