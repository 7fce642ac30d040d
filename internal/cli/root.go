// Package cli is the odyssey-desk command line: the terminal desk plus a few
// operator commands sharing the server's configuration.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/odyssey-erp/odyssey-desk/internal/app"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// session holds what the subcommands share. Services are opened on first use
// so that commands which only read the registry do not dial redis.
type session struct {
	cfg      *app.Config
	logger   *slog.Logger
	services *app.Services
	open     func(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*app.Services, error)
}

func (s *session) Services(ctx context.Context) (*app.Services, error) {
	if s.services != nil {
		return s.services, nil
	}
	services, err := s.open(ctx, s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("open services: %w", err)
	}
	s.services = services
	return services, nil
}

func (s *session) Close() {
	s.services.Close()
	s.services = nil
}

func openServices(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*app.Services, error) {
	return app.NewServices(ctx, cfg, logger, nil)
}

// NewRootCmd creates the root command of odyssey-desk.
func NewRootCmd(ver string) *cobra.Command {
	s := &session{open: openServices}

	cmd := &cobra.Command{
		Use:           "odyssey-desk",
		Short:         "Terminal desk for the Odyssey ERP lists",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logCfg := *cfg
			logCfg.LogLevel = "warn"
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logCfg.LogLevel = "debug"
			}
			s.cfg = cfg
			// stdout belongs to the desk
			s.logger = app.NewLoggerTo(cmd.ErrOrStderr(), &logCfg)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			s.Close()
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.AddCommand(newBrowseCmd(s), newPageCmd(s), newViewsCmd(s), newPrefsCmd(s), newJobsCmd(s))
	return cmd
}

const rootCmdExample = `  # Browse the product list interactively
  odyssey-desk browse products

  # Print page 2 of the invoices filtered by customer
  odyssey-desk page invoices --page 2 --search acme

  # Show and change the terminal page size of a list
  odyssey-desk prefs get products
  odyssey-desk prefs set products 25

  # Queue a cache warmup of two views
  odyssey-desk jobs warm products customers`
