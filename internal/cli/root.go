/*
Package cli wires the analytics assistant together and exposes it as cobra
commands:

	serve    run the chat HTTP endpoint
	chat     talk to the assistant from the terminal
	seed     (re)generate the synthetic customer dataset
	tools    print the tool catalogue as YAML
	version  print build information
*/
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCmd builds the command tree. --env names an env file (any viper
// format) loaded before configuration is read.
func NewRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "chative",
		Short:         "Conversational analytics assistant over customer transaction data",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default .env when present)")

	rootCmd.AddCommand(newServeCmd(&envFile))
	rootCmd.AddCommand(newChatCmd(&envFile))
	rootCmd.AddCommand(newSeedCmd(&envFile))
	rootCmd.AddCommand(newToolsCmd(&envFile))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
