package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/platformhub/platformhub/internal/catalog"
)

func newCatalogCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the resource catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items := catalog.List()
			out := cmd.OutOrStdout()
			switch output {
			case "json":
				return writeJSON(out, items)
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(items); err != nil {
					return err
				}
				return enc.Close()
			case "table", "":
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "TYPE\tNAME\tPARAMETERS")
				for _, it := range items {
					fmt.Fprintf(tw, "%s\t%s\t%d\n", it.ResourceType, it.DisplayName, len(it.Parameters))
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unknown output format %q (want table, json or yaml)", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}
