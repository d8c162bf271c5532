package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/bookmarkd/bookmarkd/internal/build"
)

// NewVersionCommand returns the command to get the bookmarkd version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Return the bookmarkd version",
		Long:  "Return the bookmarkd version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}
}

func version(_ *cobra.Command, _ []string) error {
	log.Printf("bookmarkd version %s date %s commit id %s", build.Version, build.Date, build.Commit)
	return nil
}
