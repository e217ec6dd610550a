package server

import (
	"context"
	"testing"
	"time"
)

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(JobConfig{Name: "circle", Problem: circleProblem})

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", job.State)
	}
	if job.Config.Name != "circle" {
		t.Errorf("Config not set correctly")
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{Problem: circleProblem})

	retrieved, exists := jm.GetJob(job.ID)
	if !exists {
		t.Fatal("Job should exist")
	}
	if retrieved.ID != job.ID {
		t.Error("Retrieved wrong job")
	}

	// Copies do not alias the managed job
	retrieved.State = StateFailed
	again, _ := jm.GetJob(job.ID)
	if again.State != StatePending {
		t.Error("Modifying a returned job must not change the managed job")
	}

	if _, exists := jm.GetJob("nonexistent"); exists {
		t.Error("Should not find nonexistent job")
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager()

	if len(jm.ListJobs()) != 0 {
		t.Error("Should start with no jobs")
	}

	first := jm.CreateJob(JobConfig{Name: "first"})
	time.Sleep(time.Millisecond)
	jm.CreateJob(JobConfig{Name: "second"})

	jobs := jm.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID {
		t.Error("Jobs should be listed oldest first")
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{})

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Evaluations = 10
		j.BestMerit = 123.45
	})
	if err != nil {
		t.Errorf("Update should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning {
		t.Error("State should be updated")
	}
	if updated.Evaluations != 10 {
		t.Error("Evaluations should be updated")
	}
	if updated.BestMerit != 123.45 {
		t.Error("BestMerit should be updated")
	}

	if len(jm.GetRunningJobs()) != 1 {
		t.Error("Expected one running job")
	}

	if err := jm.UpdateJob("nonexistent", func(j *Job) {}); err == nil {
		t.Error("Update of nonexistent job should fail")
	}
}

func TestJobManager_CancelJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{})

	if jm.CancelJob(job.ID) {
		t.Error("A job that never started cannot be cancelled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	jm.setCancel(job.ID, cancel)
	if !jm.CancelJob(job.ID) {
		t.Error("Expected a running job to be cancelled")
	}
	if ctx.Err() == nil {
		t.Error("Cancel function was not called")
	}

	jm.clearCancel(job.ID)
	if jm.CancelJob(job.ID) {
		t.Error("A finished job cannot be cancelled")
	}
}

func TestJobState_Final(t *testing.T) {
	for state, want := range map[JobState]bool{
		StatePending:   false,
		StateRunning:   false,
		StateCompleted: true,
		StateFailed:    true,
		StateCancelled: true,
	} {
		if state.Final() != want {
			t.Errorf("%s: expected Final() = %v", state, want)
		}
	}
}

func TestJobManager_ThreadSafety(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{})

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(evaluations int) {
			jm.UpdateJob(job.ID, func(j *Job) {
				j.Evaluations = evaluations
				time.Sleep(1 * time.Millisecond)
			})
			jm.GetJob(job.ID)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if _, exists := jm.GetJob(job.ID); !exists {
		t.Error("Job should still exist after concurrent updates")
	}
}
