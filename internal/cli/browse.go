package cli

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-desk/internal/tui"
)

// errNotInteractive is returned by browse when stdin is not a terminal.
var errNotInteractive = errors.New("browse needs an interactive terminal, use `page` instead")

func newBrowseCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "browse <view>",
		Short: "Browse a list view interactively",
		Long: `Opens a list view full screen. Keys:
  ↑/↓ move, enter pick the row
  [ and ] previous and next page
  + and - change the rows per page (remembered per view)
  / filter the loaded rows, s search the backend
  c clear the filter, r reload, q quit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal(os.Stdin) {
				return errNotInteractive
			}
			services, err := s.Services(cmd.Context())
			if err != nil {
				return err
			}
			model, err := tui.NewBrowseModel(cmd.Context(), services.Views, args[0], tui.Options{
				SearchDelay:     s.cfg.SearchDebounce,
				SearchMinLength: s.cfg.SearchMinLength,
				Logger:          s.logger,
			})
			if err != nil {
				return err
			}
			defer model.Close()

			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("browse %s: %w", args[0], err)
			}
			return nil
		},
	}
}
