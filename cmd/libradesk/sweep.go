// cmd/libradesk/sweep.go
package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"libradesk/internal/app"
	"libradesk/internal/scheduler"
)

func (c *cli) sweepCmd() *cobra.Command {
	var schedule string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark open loans past their due date as overdue",
		Long: "Without --schedule the sweep runs once. With --schedule it reloads loans and sweeps\n" +
			"on the given five-field cron expression until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("schedule") && c.cfg.Sweep.Enabled {
				schedule = c.cfg.Sweep.Schedule
			}
			if schedule != "" {
				if err := scheduler.ValidateSchedule(schedule); err != nil {
					return fmt.Errorf("invalid --schedule %q: %w", schedule, err)
				}
			}

			s, err := c.session(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if schedule == "" {
				ids, err := s.Circulation.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				reportSwept(out, ids)
				return nil
			}

			sched := scheduler.NewSweepScheduler(reloadingSweeper{s}, schedule, c.logger)
			sched.OnSwept(func(ids []string, err error) {
				if err == nil {
					reportSwept(out, ids)
				}
			})
			if err := sched.Start(cmd.Context()); err != nil {
				return err
			}
			if next := sched.NextRun(); next != nil {
				fmt.Fprintf(out, "Sweeping on %q, next run %s\n", schedule, next.Format("2006-01-02 15:04"))
			}
			<-cmd.Context().Done()
			sched.Stop()
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", `cron expression, e.g. "0 * * * *" (default SWEEP_SCHEDULE when SWEEP_ENABLED)`)
	return cmd
}

// reloadingSweeper refreshes loans from the record API before every sweep
// so a long-running scheduler sees loans opened elsewhere.
type reloadingSweeper struct {
	s *app.Session
}

func (r reloadingSweeper) Sweep(ctx context.Context) ([]string, error) {
	if err := r.s.Borrows.Load(ctx); err != nil {
		return nil, err
	}
	return r.s.Circulation.Sweep(ctx)
}

func reportSwept(w io.Writer, ids []string) {
	if len(ids) == 0 {
		fmt.Fprintln(w, "No loans became overdue")
		return
	}
	fmt.Fprintf(w, "%d loan(s) became overdue: %s\n", len(ids), strings.Join(ids, ", "))
}
