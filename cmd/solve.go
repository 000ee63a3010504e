package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ucmilp/app"
	"github.com/kilianp07/ucmilp/infra/logger"
	"github.com/kilianp07/ucmilp/pkg/export"
)

var (
	solveData dataFlags
	solveOpts solveFlags
	solveCmd  = &cobra.Command{
		Use:   "solve [case.yaml]",
		Short: "Formulate and solve one unit commitment case",
		Args:  cobra.MaximumNArgs(1),
		RunE:  solve,
	}
)

func init() {
	solveData.register(solveCmd.Flags())
	solveOpts.register(solveCmd.Flags())
	rootCmd.AddCommand(solveCmd)
}

func solve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := solveOpts.apply(cmd.Flags(), cfg); err != nil {
		return err
	}
	job, err := solveData.job(cmd, cfg, firstArg(args))
	if err != nil {
		return err
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

	out, err := svc.Runner.Run(ctx, job)
	if err != nil {
		return err
	}
	s := export.Summary(out.Results)
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "case %s (%s): %s, objective %.2f, gap %.4g\n", job.Name, s.Variant, s.Status, out.Results.Objective, out.Results.Gap)
	fmt.Fprintf(w, "cost: fuel %s, no-load %s, startup %s\n", s.Costs.Fuel, s.Costs.NoLoad, s.Costs.Startup)
	if len(out.Files) > 0 {
		fmt.Fprintf(w, "results in %s\n", cfg.Export.Dir)
	}
	return nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
