// SPDX-License-Identifier: Apache-2.0

// Command rbmc loads an IR program, runs the bounded model checker over an
// entry function up to a loop-unwind bound, and prints the verification
// result.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rbmc/internal/bmc"
	"rbmc/internal/config"
	"rbmc/internal/ir"
	"rbmc/internal/report"
	"rbmc/internal/solver"
	"rbmc/internal/symbol"
)

var (
	flagEntry        string
	flagUnwind       int
	flagStrategy     string
	flagNoSlice      bool
	flagShowVCC      bool
	flagShowSMTModel bool
	flagSolver       string
	flagConfig       string
	flagLogLevel     string
)

func main() {
	root := &cobra.Command{
		Use:           "rbmc",
		Short:         "bounded symbolic model checker for low-level imperative IR",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(checkCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		color.Red("rbmc: %v", err)
		os.Exit(1)
	}
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <ir-file>",
		Short: "symbolically execute an IR program and discharge its safety properties",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	cmd.Flags().StringVar(&flagEntry, "entry-function", "main", "entry function name")
	cmd.Flags().IntVar(&flagUnwind, "unwind", 1, "per-loop unwind bound (0 = unbounded)")
	cmd.Flags().StringVar(&flagStrategy, "smt-strategy", "once", "forward|once")
	cmd.Flags().BoolVar(&flagNoSlice, "no-slice", false, "disable the VC slicer")
	cmd.Flags().BoolVar(&flagShowVCC, "show-vcc", false, "accepted and passed to bmc.Config; no VC steps are printed")
	cmd.Flags().BoolVar(&flagShowSMTModel, "show-smt-model", false, "print the SMT model on SAT")
	cmd.Flags().StringVar(&flagSolver, "solver", "z3", "SMT solver binary name")
	cmd.Flags().StringVar(&flagConfig, "config", "rbmc.yaml", "project config file")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "logrus level")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the rbmc version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("rbmc 0.1.0")
		},
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(flagLogLevel); err == nil {
		logrus.SetLevel(lvl)
	}
	log := logrus.WithField("cmd", "check")

	file, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	entry := config.MergeString(flagEntry, "main", file.EntryFunction)
	unwind := config.MergeInt(flagUnwind, 1, file.Unwind)
	strategyStr := config.MergeString(flagStrategy, "once", file.SMTStrategy)
	noSlice := config.MergeBool(flagNoSlice, file.NoSlice)
	showVCC := config.MergeBool(flagShowVCC, file.ShowVCC)
	showModel := config.MergeBool(flagShowSMTModel, file.ShowSMTModel)
	solverName := config.MergeString(flagSolver, "z3", file.Solver)

	strategy, err := bmc.ParseStrategy(strategyStr)
	if err != nil {
		return err
	}

	prog, err := ir.Load(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	backend, err := solver.Start(ctx, solverName, log)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	syms := symbol.NewStore()
	conf := bmc.Config{
		EntryFunction: entry,
		UnwindBound:   unwind,
		Strategy:      strategy,
		NoSlice:       noSlice,
		ShowVCC:       showVCC,
		ShowSMTModel:  showModel,
	}

	result, err := bmc.Run(prog, backend, syms, conf, log)
	if err != nil {
		reporter := report.New(false)
		if stuck, ok := err.(*report.ErrStuck); ok {
			fmt.Fprint(os.Stderr, reporter.FormatStuck(stuck))
			os.Exit(1)
		}
		return err
	}

	printResult(result)
	return nil
}

func printResult(result *bmc.Result) {
	reporter := report.New(false)
	fmt.Printf("Runtime Symex: %.3f s\n", result.Timings.Symex.Seconds())
	fmt.Printf("Runtime SMT check: %.3f s\n", result.Timings.SMT.Seconds())
	fmt.Println(reporter.PrintBanner(string(result.Outcome)))
	if result.Violation != nil {
		fmt.Print(reporter.FormatViolation(*result.Violation))
	}
	if result.Model != "" {
		fmt.Println("model:")
		fmt.Println(result.Model)
	}
}
