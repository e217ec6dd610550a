package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwbudde/varopt/internal/opt"
	"github.com/cwbudde/varopt/internal/optimize"
	"github.com/cwbudde/varopt/internal/problem"
	"github.com/cwbudde/varopt/internal/store"
	"github.com/cwbudde/varopt/internal/variable"
)

// progressInterval throttles progress events to two per second.
var progressInterval = 500 * time.Millisecond

// runJob executes an optimization job in the background.
// If runStore is not nil and the job asks for it, the finished run is saved.
func runJob(ctx context.Context, jm *JobManager, runStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	// Runs after the final state is broadcast; streams drain it, then close.
	defer jm.broadcaster.CleanupJob(jobID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	jm.setCancel(jobID, cancel)
	defer jm.clearCancel(jobID)

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	name := jobName(job.Config)
	slog.Info("Starting job", "job_id", jobID, "name", name)

	p, err := problem.Parse([]byte(job.Config.Problem), name+".hcl")
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	backend, err := jobBackend(p, job.Config)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	// Backends stop on the first merit error, so this ends a cancelled run.
	merit := func(c *variable.Container) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return p.Merit(c)
	}

	o := optimize.New(name, p.Root, merit, backend)
	o.Observer = func(e optimize.Evaluation) {
		jm.UpdateJob(jobID, func(j *Job) {
			j.Evaluations = e.Index
			if e.Index == 1 || e.Merit < j.BestMerit {
				j.BestMerit = e.Merit
			}
		})
	}

	jm.UpdateJob(jobID, func(j *Job) {
		j.Backend = backend.Name()
		j.FreePaths = p.Root.FreePaths()
	})

	progressDone := make(chan struct{})
	var monitor sync.WaitGroup
	monitor.Add(1)
	go func() {
		defer monitor.Done()
		monitorProgress(ctx, jm, jobID, progressDone)
	}()

	result, err := o.Run()
	close(progressDone)
	monitor.Wait()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			markJobCancelled(jm, jobID)
			return err
		}
		markJobFailed(jm, jobID, err)
		return err
	}

	entries, err := p.Root.Snapshot()
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	record := store.RecordFromResult(jobID, "", result, p.Root.FreePaths(), entries)
	runID := ""
	if runStore != nil && job.Config.Save {
		if err := runStore.Save(record); err != nil {
			// The result is still available from the job itself.
			slog.Warn("Failed to save run", "job_id", jobID, "error", err)
		} else {
			runID = record.ID
		}
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.X = result.X
		j.InitialMerit = result.InitialMerit
		j.BestMerit = result.BestMerit
		j.FinalMerit = result.FinalMerit
		j.Evaluations = result.Evaluations
		j.Values = record.Values
		j.RunID = runID
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", result.Elapsed,
		"evaluations", result.Evaluations,
		"initial_merit", result.InitialMerit,
		"final_merit", result.FinalMerit,
	)

	broadcastState(jm, jobID)
	return nil
}

func jobName(config JobConfig) string {
	if config.Name != "" {
		return config.Name
	}
	return "job"
}

func jobBackend(p *problem.Problem, config JobConfig) (opt.Backend, error) {
	if config.Backend != "" {
		return opt.FromConfig(config.Backend, opt.Options(config.BackendOptions))
	}
	return p.Backend()
}

// monitorProgress periodically broadcasts progress events during optimization
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !broadcastState(jm, jobID) {
				return
			}
		}
	}
}

// broadcastState sends the current state of a job to its subscribers.
func broadcastState(jm *JobManager, jobID string) bool {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return false
	}
	jm.broadcaster.Broadcast(eventFor(job))
	return true
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
	broadcastState(jm, jobID)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
	broadcastState(jm, jobID)
}
