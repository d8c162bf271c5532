package publicid

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookmarkd/bookmarkd/internal/domain"
)

func TestFolderIDRoundTrip(t *testing.T) {
	id, err := NewFolderID()
	require.NoError(t, err)

	parsed, err := FolderIDFromRequest(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestFromRequestRejectsWrongPrefix(t *testing.T) {
	folderID, err := NewFolderID()
	require.NoError(t, err)
	bookmarkID, err := NewBookmarkID()
	require.NoError(t, err)

	tests := map[string]struct {
		input       string
		parse       func(string) error
		expectedErr error
	}{
		`bookmark_id_given_to_folder_parser`: {
			input:       bookmarkID.String(),
			parse:       func(s string) error { _, err := FolderIDFromRequest(s); return err },
			expectedErr: domain.ErrFolderNotFound,
		},
		`folder_id_given_to_bookmark_parser`: {
			input:       folderID.String(),
			parse:       func(s string) error { _, err := BookmarkIDFromRequest(s); return err },
			expectedErr: domain.ErrBookmarkNotFound,
		},
		`missing_prefix`: {
			input:       "01ARZ3NDEKTSV4RRFFQ69G5FAV",
			parse:       func(s string) error { _, err := FolderIDFromRequest(s); return err },
			expectedErr: domain.ErrFolderNotFound,
		},
		`malformed_suffix`: {
			input:       "fdr_not-a-ulid",
			parse:       func(s string) error { _, err := FolderIDFromRequest(s); return err },
			expectedErr: domain.ErrFolderNotFound,
		},
		`empty_string`: {
			input:       "",
			parse:       func(s string) error { _, err := RoleIDFromRequest(s); return err },
			expectedErr: domain.ErrRoleNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.parse(test.input)
			require.ErrorIs(t, err, test.expectedErr)
		})
	}
}

func TestFromRequestErrorIsNotFoundKind(t *testing.T) {
	_, err := FolderIDFromRequest("garbage")
	require.True(t, domain.IsNotFound(err))
}

func TestMonotonicWithinProcess(t *testing.T) {
	a, err := NewFolderID()
	require.NoError(t, err)
	b, err := NewFolderID()
	require.NoError(t, err)

	require.Less(t, a.String(), b.String())
}
