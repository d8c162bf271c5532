// Package publicid implements the externally presented identifiers.
//
// A public id is a fixed string prefix followed by a ULID. The prefix makes
// ids self-describing in URLs and support tickets; the ULID keeps them
// sortable by creation time. Internal numeric row ids never leave the
// service.
package publicid

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bookmarkd/bookmarkd/internal/domain"
)

const (
	folderPrefix   = "fdr_"
	bookmarkPrefix = "bkm_"
	rolePrefix     = "rol_"
)

var (
	mutex   sync.Mutex
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newULID() (ulid.ULID, error) {
	mutex.Lock()
	defer mutex.Unlock()

	return ulid.New(ulid.Timestamp(time.Now()), entropy)
}

// parse splits s into prefix and suffix and strictly parses the suffix.
// Any mismatch is reported as notFound: a malformed id must be
// indistinguishable from a missing resource.
func parse(s, prefix string, notFound *domain.Error) (ulid.ULID, error) {
	suffix, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return ulid.ULID{}, notFound
	}

	id, err := ulid.ParseStrict(suffix)
	if err != nil {
		return ulid.ULID{}, notFound
	}

	return id, nil
}

// FolderID identifies a folder ("fdr_" prefix).
type FolderID struct {
	value ulid.ULID
}

func NewFolderID() (FolderID, error) {
	id, err := newULID()
	if err != nil {
		return FolderID{}, err
	}
	return FolderID{id}, nil
}

func MustNewFolderID() FolderID {
	id, err := NewFolderID()
	if err != nil {
		panic(err)
	}
	return id
}

// FolderIDFromRequest resolves a request-supplied value into a FolderID.
// Failure is domain.ErrFolderNotFound, never a validation error.
func FolderIDFromRequest(s string) (FolderID, error) {
	id, err := parse(s, folderPrefix, domain.ErrFolderNotFound)
	if err != nil {
		return FolderID{}, err
	}
	return FolderID{id}, nil
}

func (id FolderID) String() string {
	return folderPrefix + id.value.String()
}

func (id FolderID) IsZero() bool {
	return id.value == ulid.ULID{}
}

// BookmarkID identifies a bookmark ("bkm_" prefix).
type BookmarkID struct {
	value ulid.ULID
}

func NewBookmarkID() (BookmarkID, error) {
	id, err := newULID()
	if err != nil {
		return BookmarkID{}, err
	}
	return BookmarkID{id}, nil
}

func BookmarkIDFromRequest(s string) (BookmarkID, error) {
	id, err := parse(s, bookmarkPrefix, domain.ErrBookmarkNotFound)
	if err != nil {
		return BookmarkID{}, err
	}
	return BookmarkID{id}, nil
}

func (id BookmarkID) String() string {
	return bookmarkPrefix + id.value.String()
}

// RoleID identifies a folder role ("rol_" prefix).
type RoleID struct {
	value ulid.ULID
}

func NewRoleID() (RoleID, error) {
	id, err := newULID()
	if err != nil {
		return RoleID{}, err
	}
	return RoleID{id}, nil
}

func MustNewRoleID() RoleID {
	id, err := NewRoleID()
	if err != nil {
		panic(err)
	}
	return id
}

func RoleIDFromRequest(s string) (RoleID, error) {
	id, err := parse(s, rolePrefix, domain.ErrRoleNotFound)
	if err != nil {
		return RoleID{}, err
	}
	return RoleID{id}, nil
}

func (id RoleID) String() string {
	return rolePrefix + id.value.String()
}

func (id RoleID) IsZero() bool {
	return id.value == ulid.ULID{}
}
