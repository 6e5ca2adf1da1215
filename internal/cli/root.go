package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the testbed CLI with one subcommand per service.
func NewRootCommand(version, commit, date string) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "testbed",
		Short: "Gateway testbed auxiliary services",
		Long: `Testbed runs the auxiliary services of a gateway testing environment:

a static file server that exposes WASM plugin artifacts for download, and
a mock user service that registers itself with a Nacos-style service
registry and answers trivial user-data queries.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the JSON config file")

	rootCmd.AddCommand(newPluginServerCommand(&configPath))
	rootCmd.AddCommand(newUserServiceCommand(&configPath))

	return rootCmd
}
