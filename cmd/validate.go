package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ucmilp/core/formulation"
)

var (
	validateData dataFlags
	validateCmd  = &cobra.Command{
		Use:   "validate [case.yaml]",
		Short: "Check a case and print the size of its formulation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  validate,
	}
)

func init() {
	validateData.register(validateCmd.Flags())
	rootCmd.AddCommand(validateCmd)
}

func validate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	job, err := validateData.job(cmd, cfg, firstArg(args))
	if err != nil {
		return err
	}
	m, err := formulation.Build(job.Data, job.Options)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "case\t%s\n", job.Name)
	fmt.Fprintf(w, "variant\t%s\n", job.Options.Label())
	fmt.Fprintf(w, "generators\t%d\n", len(m.Generators))
	fmt.Fprintf(w, "hours\t%d\n", len(m.Hours))
	fmt.Fprintf(w, "lines\t%d\n", len(m.Lines))
	fmt.Fprintf(w, "variables\t%d\n", m.NumVars())
	fmt.Fprintf(w, "constraints\t%d\n", m.NumConstraints())
	counts := m.ConstraintCounts()
	families := make([]string, 0, len(counts))
	for f := range counts {
		families = append(families, f)
	}
	sort.Strings(families)
	for _, f := range families {
		fmt.Fprintf(w, "  %s\t%d\n", f, counts[f])
	}
	return w.Flush()
}
