package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/varopt/internal/opt"
	"github.com/cwbudde/varopt/internal/optimize"
	"github.com/cwbudde/varopt/internal/problem"
	"github.com/cwbudde/varopt/internal/store"
	"github.com/cwbudde/varopt/internal/variable"
	"github.com/spf13/cobra"
)

var (
	backendKind   string
	backendConfig string
	saveRun       bool
	traceRun      bool
	dataDir       string
)

var runCmd = &cobra.Command{
	Use:   "run <problem.hcl>",
	Short: "Minimize the merit of a problem file",
	Long: `Loads the problem, minimizes its merit over the free values and prints
the result. The backend declared in the file can be replaced with --backend
or --backend-config.`,
	Args: cobra.ExactArgs(1),
	RunE: runOptimization,
}

func init() {
	runCmd.Flags().StringVar(&backendKind, "backend", "", "Backend kind: gonum, newton1d, mayfly (default: from the problem file)")
	runCmd.Flags().StringVar(&backendConfig, "backend-config", "", "YAML file with the backend kind and options")
	runCmd.Flags().BoolVar(&saveRun, "save", false, "Store the run under --data-dir")
	runCmd.Flags().BoolVar(&traceRun, "trace", false, "Write every merit evaluation to trace.jsonl (implies --save)")
	runCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Base directory for stored runs")

	rootCmd.AddCommand(runCmd)
}

func runOptimization(cmd *cobra.Command, args []string) error {
	p, err := problem.Load(args[0])
	if err != nil {
		return err
	}

	backend, err := selectBackend(p)
	if err != nil {
		return err
	}

	o := optimize.New(p.Name, p.Root, p.Merit, backend)
	runID := store.NewRunID()

	var runStore *store.FSStore
	if saveRun || traceRun {
		runStore, err = store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create run store: %w", err)
		}
	}

	if traceRun {
		tw, err := store.NewTraceWriter(runStore.BaseDir(), runID, false)
		if err != nil {
			return err
		}
		defer tw.Close()
		o.Observer = traceObserver(tw)
		slog.Info("Tracing evaluations", "path", tw.Path())
	}

	result, err := o.Run()
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

	if runStore != nil {
		record := store.RecordFromResult(runID, p.Path, result, p.Root.FreePaths(), entries)
		if err := runStore.Save(record); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		fmt.Fprintf(out, "saved run %s\n", runID)
	}
	return nil
}

// selectBackend applies --backend-config and --backend over the problem's
// own backend declaration, in that order of precedence.
func selectBackend(p *problem.Problem) (opt.Backend, error) {
	if backendConfig != "" {
		data, err := os.ReadFile(backendConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to read backend config: %w", err)
		}
		return opt.BackendFromYAML(data)
	}
	if backendKind != "" && backendKind != p.BackendKind {
		return opt.FromConfig(backendKind, nil)
	}
	return p.Backend()
}

func traceObserver(tw *store.TraceWriter) func(optimize.Evaluation) {
	best := math.Inf(1)
	failed := false
	return func(e optimize.Evaluation) {
		best = math.Min(best, e.Merit)
		if failed {
			return
		}
		err := tw.Write(store.TraceEntry{
			Index:     e.Index,
			Merit:     e.Merit,
			Best:      best,
			Timestamp: time.Now(),
			X:         e.X,
		})
		if err != nil {
			// A broken trace must not abort the run.
			slog.Warn("Trace write failed, tracing stopped", "index", e.Index, "error", err)
			failed = true
		}
	}
}

func printValues(w io.Writer, entries []variable.Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tKIND\tVALUE")
	fmt.Fprintln(tw, "----\t----\t-----")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%v\n", e.Path, e.Kind, e.Value)
	}
	tw.Flush()
}
