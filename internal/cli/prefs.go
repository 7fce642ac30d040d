package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-desk/internal/shared"
	"github.com/odyssey-erp/odyssey-desk/internal/tui"
)

func newPrefsCmd(s *session) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change remembered page sizes",
	}
	cmd.PersistentFlags().StringVar(&scope, "scope", tui.DefaultScope, "desk whose preference is read or written")

	get := &cobra.Command{
		Use:   "get <view>",
		Short: "Print the page size of a view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := s.Services(cmd.Context())
			if err != nil {
				return err
			}
			size, err := services.Views.PageSize(cmd.Context(), args[0], scope)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), size)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <view> <size>",
		Short: "Remember a page size for a view",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := s.Services(cmd.Context())
			if err != nil {
				return err
			}
			size, applied, err := services.Views.SetPageSize(cmd.Context(), args[0], scope, args[1])
			if err != nil {
				return err
			}
			if !applied {
				return fmt.Errorf("%w: got %q (keeping %d)", shared.ErrInvalidPageSize, args[1], size)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d filas por página\n", args[0], size)
			return nil
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}
