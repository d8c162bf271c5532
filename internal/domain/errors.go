// Package domain defines the typed errors raised by pipeline stages.
//
// Every error carries a stable machine-readable code consumed by API
// clients, plus an optional human-readable info string. The HTTP layer maps
// the error kind to a status code; stages and commands only ever deal in
// these errors, never raw storage or driver errors.
package domain

import (
	"errors"
)

type Kind int

const (
	KindNotFound Kind = iota + 1
	KindForbidden
	KindConflict
	KindBadRequest
	KindDisabled
	KindInvalidSetting
)

// Error is a domain error with a stable code. The code, not the info text,
// is the contract with clients.
type Error struct {
	Kind Kind
	Code string
	Info string
}

func (e *Error) Error() string {
	return e.Code
}

// Is makes two domain errors equal when their codes match, so shared
// sentinels compare correctly through wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func NotFound(code, info string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Info: info}
}

func Forbidden(code, info string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Info: info}
}

func Conflict(code, info string) *Error {
	return &Error{Kind: KindConflict, Code: code, Info: info}
}

func BadRequest(code, info string) *Error {
	return &Error{Kind: KindBadRequest, Code: code, Info: info}
}

func Disabled(code, info string) *Error {
	return &Error{Kind: KindDisabled, Code: code, Info: info}
}

func InvalidSetting(code, info string) *Error {
	return &Error{Kind: KindInvalidSetting, Code: code, Info: info}
}

// Shared sentinels. Membership failures deliberately reuse the not-found
// sentinels so that non-members cannot distinguish a private folder from a
// missing one.
var (
	ErrFolderNotFound   = NotFound("FolderNotFound", "The folder does not exist.")
	ErrBookmarkNotFound = NotFound("BookmarkNotFound", "The bookmark does not exist.")
	ErrRoleNotFound     = NotFound("RoleNotFound", "The role does not exist.")
	ErrPermissionDenied = Forbidden("PermissionDenied", "You do not have permission to perform this action.")
)

// KindOf reports the kind of err, or zero if err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsForbidden(err error) bool  { return KindOf(err) == KindForbidden }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
func IsBadRequest(err error) bool { return KindOf(err) == KindBadRequest }
