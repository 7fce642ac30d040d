package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-desk/internal/views"
)

func newViewsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "List the registered list views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := views.LoadRegistry(s.cfg.ViewsFile)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMODE\tSEARCH\tTITLE")
			for _, def := range registry.All() {
				searchable := "-"
				if def.Searchable() {
					searchable = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", def.Name, def.Mode, searchable, def.Title)
			}
			return tw.Flush()
		},
	}
}
