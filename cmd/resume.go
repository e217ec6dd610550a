package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/cwbudde/varopt/internal/optimize"
	"github.com/cwbudde/varopt/internal/problem"
	"github.com/cwbudde/varopt/internal/store"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Continue a stored run from its final free values",
	Long: `Reloads the problem file of a stored run, writes the run's final free
values into the tree and optimizes again. The result is saved as a new run.
The problem's free values must still match the stored ones by path.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&backendKind, "backend", "", "Backend kind: gonum, newton1d, mayfly (default: from the problem file)")
	resumeCmd.Flags().StringVar(&backendConfig, "backend-config", "", "YAML file with the backend kind and options")
	resumeCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Base directory for stored runs")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	runStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}

	previous, err := runStore.Load(args[0])
	if err != nil {
		return err
	}
	if previous.Problem == "" {
		return fmt.Errorf("run %s has no problem file", previous.ID)
	}

	p, err := problem.Load(previous.Problem)
	if err != nil {
		return err
	}
	if paths := p.Root.FreePaths(); !slices.Equal(paths, previous.FreePaths) {
		return fmt.Errorf("free values of %s changed since run %s: %v, was %v",
			previous.Problem, previous.ID, paths, previous.FreePaths)
	}
	if err := p.Root.SetFreeValues(previous.X); err != nil {
		return err
	}

	backend, err := selectBackend(p)
	if err != nil {
		return err
	}

	result, err := optimize.New(p.Name, p.Root, p.Merit, backend).Run()
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	entries, err := p.Root.Snapshot()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printValues(out, entries)
	fmt.Fprintf(out, "\nmerit: %g -> %g (%d evaluations, %s, %s)\n",
		result.InitialMerit, result.FinalMerit, result.Evaluations, result.Backend, result.Elapsed.Round(time.Millisecond))

	runID := store.NewRunID()
	record := store.RecordFromResult(runID, p.Path, result, p.Root.FreePaths(), entries)
	if err := runStore.Save(record); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	fmt.Fprintf(out, "saved run %s (resumed from %s)\n", runID, previous.ID)
	return nil
}
