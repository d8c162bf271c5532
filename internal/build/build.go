// Package build contains build information set at link time.
package build

var (
	// Version is the release version of the binary, overridden via ldflags.
	Version = "dev"

	// Commit is the git commit the binary was built from.
	Commit = ""

	// Date is the date the binary was built.
	Date = ""
)

// MinimumSupportedDatastoreSchemaRevision is the minimum goose migration
// version this build can run against.
const MinimumSupportedDatastoreSchemaRevision int64 = 1
