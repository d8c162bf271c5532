package settings

import (
	"errors"
	"fmt"
)

type Type int

const (
	TypeBool Type = iota + 1
	TypeInt
	TypeString
)

// Definition describes one settings key: its dot path, value type, default
// and constraints.
type Definition struct {
	Key     string
	Type    Type
	Default any

	// Min/Max bound integer values (inclusive).
	Min, Max int64

	// Enum restricts string values when non-empty.
	Enum []string
}

func (d Definition) check(v any) error {
	switch d.Type {
	case TypeBool:
		if _, ok := v.(bool); !ok {
			return errors.New("expected a boolean")
		}
	case TypeInt:
		n, ok := intValue(v)
		if !ok {
			return errors.New("expected an integer")
		}
		if n < d.Min || n > d.Max {
			return fmt.Errorf("out of range [%d, %d]", d.Min, d.Max)
		}
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return errors.New("expected a string")
		}
		if len(d.Enum) > 0 {
			for _, allowed := range d.Enum {
				if s == allowed {
					return nil
				}
			}
			return fmt.Errorf("must be one of %v", d.Enum)
		}
	}
	return nil
}

// intValue accepts the integer shapes both input paths produce: native Go
// ints from FromMap callers and float64 from encoding/json.
func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		i := int64(n)
		if float64(i) != n {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// Settings keys. Notification events chain three gates: the global toggle,
// the per-event toggle and, for events that carry one, a mode filter.
const (
	KeyVersion                 = "version"
	KeyMaxCollaboratorsLimit   = "max_collaborators_limit"
	KeyMaxBookmarksLimit       = "max_bookmarks_limit"
	KeyNotificationsEnabled    = "notifications.enabled"
	KeyNotifyNewCollaborator   = "notifications.new_collaborator.enabled"
	KeyNotifyCollaboratorExit  = "notifications.collaborator_exit.enabled"
	KeyCollaboratorExitMode    = "notifications.collaborator_exit.mode"
	KeyNotifyFolderUpdated     = "notifications.folder_updated.enabled"
	KeyNotifyNewBookmarks      = "notifications.new_bookmarks.enabled"
	KeyNotifyBookmarksRemoved  = "notifications.bookmarks_removed.enabled"
	KeyNotifySuspension        = "notifications.collaborator_suspended.enabled"
	KeyNotifyDomainBlacklisted = "notifications.domain_blacklisted.enabled"
	KeyActivitiesEnabled       = "activities.enabled"
	KeyLogNewCollaborator      = "activities.new_collaborator.enabled"
	KeyLogCollaboratorExit     = "activities.collaborator_exit.enabled"
	KeyLogSuspension           = "activities.collaborator_suspended.enabled"
	KeyLogDomainBlacklisted    = "activities.domain_blacklisted.enabled"
	KeyLogRoleChanged          = "activities.role_changed.enabled"
	KeyLogFolderUpdated        = "activities.folder_updated.enabled"
)

// Collaborator-exit notification modes.
const (
	ExitModeAll                = "*"
	ExitModeHasWritePermission = "hasWritePermission"
)

// UnlimitedCollaborators disables the collaborator limit.
const UnlimitedCollaborators int64 = -1

var schema = map[string]Definition{}

func register(d Definition) {
	schema[d.Key] = d
}

func lookup(key string) (Definition, bool) {
	d, ok := schema[key]
	return d, ok
}

func boolKey(key string, def bool) Definition {
	return Definition{Key: key, Type: TypeBool, Default: def}
}

func init() {
	register(Definition{Key: KeyVersion, Type: TypeInt, Default: int64(1), Min: 1, Max: 1})
	register(Definition{Key: KeyMaxCollaboratorsLimit, Type: TypeInt, Default: UnlimitedCollaborators, Min: -1, Max: 1000})
	register(Definition{Key: KeyMaxBookmarksLimit, Type: TypeInt, Default: int64(-1), Min: -1, Max: 200})

	register(boolKey(KeyNotificationsEnabled, true))
	register(boolKey(KeyNotifyNewCollaborator, true))
	register(boolKey(KeyNotifyCollaboratorExit, true))
	register(boolKey(KeyNotifyFolderUpdated, true))
	register(boolKey(KeyNotifyNewBookmarks, true))
	register(boolKey(KeyNotifyBookmarksRemoved, true))
	register(boolKey(KeyNotifySuspension, true))
	register(boolKey(KeyNotifyDomainBlacklisted, true))

	register(Definition{
		Key:     KeyCollaboratorExitMode,
		Type:    TypeString,
		Default: ExitModeAll,
		Enum:    []string{ExitModeAll, ExitModeHasWritePermission},
	})

	register(boolKey(KeyActivitiesEnabled, true))
	register(boolKey(KeyLogNewCollaborator, true))
	register(boolKey(KeyLogCollaboratorExit, true))
	register(boolKey(KeyLogSuspension, true))
	register(boolKey(KeyLogDomainBlacklisted, true))
	register(boolKey(KeyLogRoleChanged, true))
	register(boolKey(KeyLogFolderUpdated, true))
}
