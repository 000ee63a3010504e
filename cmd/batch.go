package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ucmilp/app"
	"github.com/kilianp07/ucmilp/infra/logger"
)

var (
	batchData     dataFlags
	batchOpts     solveFlags
	batchParallel int
	batchCmd      = &cobra.Command{
		Use:   "batch case.yaml...",
		Short: "Solve several cases concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE:  batch,
	}
)

func init() {
	batchData.register(batchCmd.Flags())
	batchOpts.register(batchCmd.Flags())
	batchCmd.Flags().IntVarP(&batchParallel, "parallel", "p", 0, "concurrent solves, 0 for one per CPU")
	rootCmd.AddCommand(batchCmd)
}

func batch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := batchOpts.apply(cmd.Flags(), cfg); err != nil {
		return err
	}
	jobs := make([]app.Job, 0, len(args))
	for _, path := range args {
		job, err := batchData.job(cmd, cfg, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if cfg.Export.Dir != "" {
			job.OutputDir = filepath.Join(cfg.Export.Dir, job.Name)
		}
		jobs = append(jobs, job)
	}
	parallel := cfg.Batch.Parallel
	if cmd.Flags().Changed("parallel") {
		parallel = batchParallel
	}
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	svc.ServeMetrics(ctx)

	results := svc.Runner.RunBatch(ctx, jobs, parallel)
	w := cmd.OutOrStdout()
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(w, "%s: %v\n", res.Job.Name, res.Err)
			continue
		}
		r := res.Outcome.Results
		fmt.Fprintf(w, "%s: %s, objective %.2f\n", res.Job.Name, r.Status, r.Objective)
	}
	if n := app.Failed(results); n > 0 {
		return fmt.Errorf("%d of %d cases failed", n, len(results))
	}
	return nil
}
