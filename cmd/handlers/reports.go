package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"swotlens/internal/config"
	"swotlens/internal/logger"
	"swotlens/internal/render"
	"swotlens/internal/store"
)

// NewReportsCmd creates the saved report management command
func NewReportsCmd() *cobra.Command {
	reportsCmd := &cobra.Command{
		Use:   "reports",
		Short: "Manage saved SWOT reports",
		Long:  `List, show, and delete reports saved with analyze --save.`,
	}

	// Add subcommands
	reportsCmd.AddCommand(newReportsListCmd())
	reportsCmd.AddCommand(newReportsShowCmd())
	reportsCmd.AddCommand(newReportsDeleteCmd())
	reportsCmd.AddCommand(newReportsStatsCmd())

	return reportsCmd
}

func newReportsListCmd() *cobra.Command {
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved reports, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			err := withStore(func(s *store.Store) error {
				return runReportsList(cmd.Context(), s, limit, cmd.OutOrStdout())
			})
			if err != nil {
				logger.Error("Failed to list reports", err)
				os.Exit(1)
			}
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "maximum number of reports (0 for all)")
	return listCmd
}

func newReportsShowCmd() *cobra.Command {
	var output string
	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved report (an ID prefix is enough)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := withStore(func(s *store.Store) error {
				return runReportsShow(cmd.Context(), s, args[0], output, cmd.OutOrStdout())
			})
			if err != nil {
				logger.Error("Failed to show report", err)
				os.Exit(1)
			}
		},
	}
	showCmd.Flags().StringVarP(&output, "output", "o", "text", "output format: json, text or markdown")
	return showCmd
}

func newReportsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved report",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := withStore(func(s *store.Store) error {
				if err := s.DeleteReport(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted report %s\n", args[0])
				return nil
			})
			if err != nil {
				logger.Error("Failed to delete report", err)
				os.Exit(1)
			}
		},
	}
}

func newReportsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show report store statistics",
		Run: func(cmd *cobra.Command, args []string) {
			err := withStore(func(s *store.Store) error {
				return runReportsStats(cmd.Context(), s, cmd.OutOrStdout())
			})
			if err != nil {
				logger.Error("Failed to get report stats", err)
				os.Exit(1)
			}
		},
	}
}

func withStore(fn func(*store.Store) error) error {
	reportStore, err := openStore(config.Get())
	if err != nil {
		return err
	}
	defer func() {
		if err := reportStore.Close(); err != nil {
			logger.Error("Failed to close report store", err)
		}
	}()
	return fn(reportStore)
}

func runReportsList(ctx context.Context, s *store.Store, limit int, w io.Writer) error {
	reports, err := s.ListReports(ctx, limit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(w, "No saved reports")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tMODEL\tMODE\tREVIEWS\tBATCHES\tSKIPPED\tFINDINGS")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d/%d\t%d\t%d\n",
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Model,
			r.Mode,
			r.Reviews,
			r.Succeeded, r.Batches,
			r.Skipped,
			r.Findings)
	}
	return tw.Flush()
}

func runReportsShow(ctx context.Context, s *store.Store, id, format string, w io.Writer) error {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return err
	}
	return render.Write(w, report, format)
}

func runReportsStats(ctx context.Context, s *store.Store, w io.Writer) error {
	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Driver:          %s\n", s.Driver())
	fmt.Fprintf(w, "Reports:         %d\n", stats.ReportCount)
	fmt.Fprintf(w, "Findings:        %d\n", stats.FindingCount)
	fmt.Fprintf(w, "Skipped batches: %d\n", stats.SkippedBatches)
	if !stats.LastReport.IsZero() {
		fmt.Fprintf(w, "Last report:     %s\n", stats.LastReport.Local().Format("2006-01-02 15:04:05"))
	}
	if stats.DatabaseSize > 0 {
		fmt.Fprintf(w, "Database size:   %.2f MB\n", float64(stats.DatabaseSize)/1024/1024)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
