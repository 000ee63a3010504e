package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kilianp07/ucmilp/app"
	"github.com/kilianp07/ucmilp/config"
	"github.com/kilianp07/ucmilp/core/formulation"
)

// dataFlags select the instance and the formulation variant.
type dataFlags struct {
	generators string
	loads      string
	lines      string

	variant         string
	reserveMode     string
	reserveFraction float64
	network         bool
	rampSUSD        bool
}

func (f *dataFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.generators, "generators", "", "generator table (csv)")
	fs.StringVar(&f.loads, "loads", "", "bus load table (csv)")
	fs.StringVar(&f.lines, "lines", "", "line table with PTDF columns (csv)")
	fs.StringVar(&f.variant, "variant", "", "formulation preset: basic, explicit-reserve, network-constrained, startup-shutdown-ramp")
	fs.StringVar(&f.reserveMode, "reserve-mode", "", "reserve form: headroom or explicit")
	fs.Float64Var(&f.reserveFraction, "reserve-fraction", formulation.DefaultReserveFraction, "spinning reserve as a fraction of demand")
	fs.BoolVar(&f.network, "network", false, "add DC line flow limits")
	fs.BoolVar(&f.rampSUSD, "startup-shutdown-ramp", false, "use startup and shutdown ramp limits")
}

// apply folds the flags that were set into the configuration.
func (f *dataFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("generators") || fs.Changed("loads") || fs.Changed("lines") {
		cfg.Data.Case = ""
		cfg.Data.Files.Generators = f.generators
		cfg.Data.Files.Loads = f.loads
		cfg.Data.Files.Lines = f.lines
	}
}

// overrides returns the formulation settings given on the command line.
func (f *dataFlags) overrides(fs *pflag.FlagSet) formulation.Settings {
	var s formulation.Settings
	if fs.Changed("variant") {
		s.Variant = f.variant
	}
	if fs.Changed("reserve-mode") {
		s.ReserveMode = f.reserveMode
	}
	if fs.Changed("reserve-fraction") {
		v := f.reserveFraction
		s.ReserveFraction = &v
	}
	if fs.Changed("network") {
		v := f.network
		s.Network = &v
	}
	if fs.Changed("startup-shutdown-ramp") {
		v := f.rampSUSD
		s.StartupShutdownRamp = &v
	}
	return s
}

// job loads the instance named by args or the configuration. Precedence
// of formulation settings is configuration, then case file, then flags.
func (f *dataFlags) job(cmd *cobra.Command, cfg *config.Config, casePath string) (app.Job, error) {
	fs := cmd.Flags()
	f.apply(fs, cfg)
	base, err := cfg.Formulation.Options()
	if err != nil {
		return app.Job{}, err
	}
	if casePath == "" {
		casePath = cfg.Data.Case
	}
	var job app.Job
	switch {
	case casePath != "":
		job, err = app.CaseJob(casePath, base)
	case cfg.Data.Files.Generators != "":
		job, err = app.FilesJob("", cfg.Data.Files, base)
	default:
		return app.Job{}, fmt.Errorf("no data: pass a case file, --generators and --loads, or set data in the configuration")
	}
	if err != nil {
		return app.Job{}, err
	}
	job.Options, err = f.overrides(fs).Apply(job.Options)
	if err != nil {
		return app.Job{}, err
	}
	return job, nil
}

// solveFlags override the solver section of the configuration.
type solveFlags struct {
	backend      string
	timeLimit    float64
	mipGap       float64
	maxSolutions int
	verbose      bool
	out          string
	format       string
}

func (f *solveFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.backend, "solver", "", "solver backend: simplex or cbc")
	fs.Float64Var(&f.timeLimit, "time-limit", config.DefaultTimeLimitSeconds, "time limit in seconds")
	fs.Float64Var(&f.mipGap, "mip-gap", config.DefaultMIPGap, "relative MIP gap")
	fs.IntVar(&f.maxSolutions, "max-solutions", 0, "stop after this many improving solutions, 0 for no cap")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log the solver trace")
	fs.StringVarP(&f.out, "out", "o", "", "result directory")
	fs.StringVar(&f.format, "format", "", "result format: csv or json")
}

func (f *solveFlags) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("solver") {
		cfg.Solver.Backend = f.backend
	}
	if fs.Changed("time-limit") {
		cfg.Solver.TimeLimitSeconds = f.timeLimit
	}
	if fs.Changed("mip-gap") {
		v := f.mipGap
		cfg.Solver.MIPGap = &v
	}
	if fs.Changed("max-solutions") {
		cfg.Solver.MaxSolutions = f.maxSolutions
	}
	if fs.Changed("verbose") {
		cfg.Solver.Verbose = f.verbose
		if f.verbose && cfg.Logging.Level != "trace" {
			cfg.Logging.Level = "debug"
		}
	}
	if fs.Changed("out") {
		cfg.Export.Dir = f.out
	}
	if fs.Changed("format") {
		cfg.Export.Format = f.format
	}
	return cfg.Validate()
}
