package handlers

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X swotlens/cmd/handlers.Version=..."
var (
	Version = "dev"
	Commit  = "none"
)

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Skip config loading so version works without a config file.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "swotlens %s (%s) %s/%s %s\n", Version, Commit, runtime.GOOS, runtime.GOARCH, runtime.Version())
		},
	}
}
