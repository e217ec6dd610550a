package main

import (
	"fmt"

	"github.com/cwbudde/varopt/internal/problem"
	"github.com/spf13/cobra"
)

var evalCmd = &cobra.Command{
	Use:   "eval <problem.hcl>",
	Short: "Evaluate every value and the merit of a problem file",
	Args:  cobra.ExactArgs(1),
	RunE:  runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	p, err := problem.Load(args[0])
	if err != nil {
		return err
	}

	entries, err := p.Root.Snapshot()
	if err != nil {
		return err
	}
	merit, err := p.Merit(p.Root)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printValues(out, entries)
	fmt.Fprintf(out, "\nmerit: %g\n", merit)
	return nil
}
