package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-desk/internal/listing"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
	"github.com/odyssey-erp/odyssey-desk/internal/tui"
	"github.com/odyssey-erp/odyssey-desk/internal/views"
)

// tabPadding is the minimum column padding for tabwriter output.
const tabPadding = 2

type pageFlags struct {
	page    int
	perPage int
	search  string
	from    string
	to      string
	status  string
	asJSON  bool
}

func newPageCmd(s *session) *cobra.Command {
	var flags pageFlags
	cmd := &cobra.Command{
		Use:   "page <view>",
		Short: "Print one page of a list view",
		Example: `  odyssey-desk page products --search tornillo
  odyssey-desk page invoices --page 3 --status OPEN --from 2024-01-01 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := s.Services(cmd.Context())
			if err != nil {
				return err
			}
			page, err := services.Views.Page(cmd.Context(), args[0], views.PageRequest{
				Page:    flags.page,
				PerPage: flags.perPage,
				Scope:   tui.DefaultScope,
				Filter: listing.FilterState{
					Search: flags.search,
					Dates:  listing.DateRange{Start: flags.from, End: flags.to},
					Status: flags.status,
				},
			})
			if err != nil {
				return err
			}
			for _, notice := range page.Notices {
				cmd.PrintErrln(notice.Message)
			}
			if flags.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(page)
			}
			return writePage(cmd.OutOrStdout(), page)
		},
	}

	cmd.Flags().IntVar(&flags.page, "page", 1, "page number, clamped into range")
	cmd.Flags().IntVar(&flags.perPage, "per-page", 0, "rows per page for this call only (0 = remembered size)")
	cmd.Flags().StringVar(&flags.search, "search", "", "free-text filter")
	cmd.Flags().StringVar(&flags.from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&flags.to, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringVar(&flags.status, "status", "", "status filter ("+listing.StatusAll+" = any)")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print the page as JSON")
	return cmd
}

// writePage prints the rows as a table followed by the pagination summary.
// An empty list prints no pagination.
func writePage(w io.Writer, page views.Page) error {
	if page.List.Empty() {
		_, err := fmt.Fprintln(w, "Sin resultados.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	labels := make([]string, len(page.Definition.Columns))
	for i, col := range page.Definition.Columns {
		labels[i] = strings.ToUpper(col.Label)
	}
	fmt.Fprintln(tw, strings.Join(labels, "\t"))
	for _, row := range page.Rows {
		fmt.Fprintln(tw, strings.Join(row.Cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	p := page.List.Pagination
	_, err := fmt.Fprintf(w, "\nMostrando %d–%d de %d · Página %d/%d  %s\n",
		p.FirstItem(), p.LastItem(), p.Total, p.Page, p.TotalPages, markers(page.List.Markers))
	return err
}

func markers(list []shared.PageMarker) string {
	parts := make([]string, 0, len(list))
	for _, m := range list {
		switch {
		case m.Ellipsis:
			parts = append(parts, "…")
		case m.Current:
			parts = append(parts, fmt.Sprintf("[%d]", m.Number))
		default:
			parts = append(parts, fmt.Sprint(m.Number))
		}
	}
	return strings.Join(parts, " ")
}
