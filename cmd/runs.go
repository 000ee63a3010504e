package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ucmilp/core/runlog"
)

var (
	runsQuery runlog.Query
	runsSince time.Duration
	runsCmd   = &cobra.Command{
		Use:   "runs",
		Short: "List recorded solves from the run log",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
)

func init() {
	runsCmd.Flags().StringVar(&runsQuery.Case, "case", "", "only this case")
	runsCmd.Flags().StringVar(&runsQuery.Status, "status", "", "only this status")
	runsCmd.Flags().DurationVar(&runsSince, "since", 0, "only runs newer than this, e.g. 24h")
	rootCmd.AddCommand(runsCmd)
}

func listRuns(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := runlog.Open(cfg.Runlog)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	q := runsQuery
	if runsSince > 0 {
		q.Start = time.Now().Add(-runsSince)
	}
	recs, err := store.Query(context.Background(), q)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCASE\tVARIANT\tBACKEND\tSTATUS\tOBJECTIVE\tSOLVE_MS")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\t%.1f\n",
			r.Timestamp.Format(time.RFC3339), r.Case, r.Variant, r.Backend, r.Status, r.Objective, r.SolveMS)
	}
	return w.Flush()
}
