package cli

import (
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	jobmetrics "github.com/odyssey-erp/odyssey-desk/internal/jobs"
	"github.com/odyssey-erp/odyssey-desk/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-desk/jobs"
)

var errNoQueue = errors.New("no redis configured, run with --local")

func newJobsCmd(s *session) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Queue or run the list cache jobs",
	}
	cmd.PersistentFlags().BoolVar(&local, "local", false, "run the job in this process instead of queueing it")

	warm := &cobra.Command{
		Use:   "warm [view...]",
		Short: "Load client-mode lists into the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := s.Services(cmd.Context())
			if err != nil {
				return err
			}
			if local {
				job := jobs.NewViewsWarmupJob(services.Views, s.logger, jobmetrics.NewMetrics(nil))
				warmed, err := job.Run(cmd.Context(), args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "warmed %d views\n", warmed)
				return nil
			}
			if services.Redis == nil {
				return errNoQueue
			}
			client, err := jobs.NewClient(cache.QueueOpts(s.cfg.RedisAddr))
			if err != nil {
				return err
			}
			defer client.Close()
			info, err := client.EnqueueViewsWarmup(cmd.Context(), args...)
			if err != nil {
				return fmt.Errorf("enqueue warmup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s on %s\n", info.ID, info.Queue)
			return nil
		},
	}

	invalidate := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop every cached list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := s.Services(cmd.Context())
			if err != nil {
				return err
			}
			if local {
				if err := services.Views.Invalidate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "list cache invalidated")
				return nil
			}
			if services.Redis == nil {
				return errNoQueue
			}
			client, err := jobs.NewClient(cache.QueueOpts(s.cfg.RedisAddr))
			if err != nil {
				return err
			}
			defer client.Close()
			info, err := client.EnqueueViewsInvalidate(cmd.Context())
			if errors.Is(err, asynq.ErrDuplicateTask) {
				fmt.Fprintln(cmd.OutOrStdout(), "invalidation already queued")
				return nil
			}
			if err != nil {
				return fmt.Errorf("enqueue invalidate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s on %s\n", info.ID, info.Queue)
			return nil
		},
	}

	cmd.AddCommand(warm, invalidate)
	return cmd
}
