package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-registry/internal/store"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("face-registry %s\n", Version)
		fmt.Printf("  Commit:   %s\n", CommitSHA)
		fmt.Printf("  Built:    %s\n", BuildDate)
		fmt.Printf("  Go:       %s\n", runtime.Version())
		fmt.Printf("  Backends: %v\n", store.Backends())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
