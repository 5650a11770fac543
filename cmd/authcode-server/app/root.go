// Package app provides the commands of the authcode-server binary.
package app

import (
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X .../app.version=..."
var version = "dev"

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "authcode-server",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "OAuth 2.0 authorization code grant server",
		Long: `authcode-server issues authorization codes and bearer access tokens
to registered clients after the signed-in resource owner consents to the
requested scopes.`,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML configuration file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newHashPasswordCmd())

	return rootCmd
}
