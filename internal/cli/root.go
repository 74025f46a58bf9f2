// Package cli implements hubctl, the offline administration tool.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// NewRootCommand builds the hubctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "hubctl",
		Short: "PlatformHub administration tool",
		Long: `hubctl inspects the resource catalog, renders manifests offline and
performs database maintenance that has no HTTP surface, such as granting the
first admin role.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to the server config file")

	root.AddCommand(newCatalogCommand())
	root.AddCommand(newRenderCommand())
	root.AddCommand(newUserCommand())
	root.AddCommand(newMigrateCommand())
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
