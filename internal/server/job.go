package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cwbudde/varopt/internal/store"
	"github.com/google/uuid"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// JobConfig is the body of a job submission.
type JobConfig struct {
	// Name labels the job; it defaults to "job".
	Name string `json:"name,omitempty"`

	// Problem is the HCL problem source.
	Problem string `json:"problem"`

	// Backend overrides the backend declared in the problem. BackendOptions
	// are only used together with Backend.
	Backend        string         `json:"backend,omitempty"`
	BackendOptions map[string]any `json:"backendOptions,omitempty"`

	// Save stores the finished run in the server's run store.
	Save bool `json:"save,omitempty"`
}

// Job represents an optimization job
type Job struct {
	ID           string             `json:"id"`
	State        JobState           `json:"state"`
	Config       JobConfig          `json:"config"`
	Backend      string             `json:"backend,omitempty"`
	FreePaths    []string           `json:"freePaths,omitempty"`
	X            []float64          `json:"x,omitempty"`
	InitialMerit float64            `json:"initialMerit"`
	BestMerit    float64            `json:"bestMerit"`
	FinalMerit   float64            `json:"finalMerit"`
	Evaluations  int                `json:"evaluations"`
	Values       []store.NamedValue `json:"values,omitempty"`
	RunID        string             `json:"runId,omitempty"`
	StartTime    time.Time          `json:"startTime"`
	EndTime      *time.Time         `json:"endTime,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Final reports whether no transitions leave s.
func (s JobState) Final() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	cancels     map[string]context.CancelFunc
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		cancels:     make(map[string]context.CancelFunc),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a new job with the given configuration
func (jm *JobManager) CreateJob(config JobConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return job.copy()
}

// GetJob returns a copy of the job with the given ID
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	return job.copy(), true
}

// ListJobs returns copies of all jobs, oldest first
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.copy())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartTime.Before(jobs[j].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			runningJobs = append(runningJobs, job.copy())
		}
	}
	return runningJobs
}

// setCancel registers the cancel function of a started job.
func (jm *JobManager) setCancel(id string, cancel context.CancelFunc) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.cancels[id] = cancel
}

// clearCancel drops the cancel function of a finished job.
func (jm *JobManager) clearCancel(id string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	delete(jm.cancels, id)
}

// CancelJob asks a running job to stop. It reports whether the job was running.
func (jm *JobManager) CancelJob(id string) bool {
	jm.mu.RLock()
	cancel, ok := jm.cancels[id]
	jm.mu.RUnlock()

	if ok {
		cancel()
	}
	return ok
}

// CancelAll asks every running job to stop.
func (jm *JobManager) CancelAll() {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	for _, cancel := range jm.cancels {
		cancel()
	}
}

// MarshalJSON writes non-finite merits and values as null.
func (j Job) MarshalJSON() ([]byte, error) {
	type plain Job
	return json.Marshal(struct {
		plain
		X            []*float64         `json:"x,omitempty"`
		InitialMerit *float64           `json:"initialMerit"`
		BestMerit    *float64           `json:"bestMerit"`
		FinalMerit   *float64           `json:"finalMerit"`
		Values       []store.NamedValue `json:"values,omitempty"`
	}{
		plain:        plain(j),
		X:            finiteSlice(j.X),
		InitialMerit: finite(j.InitialMerit),
		BestMerit:    finite(j.BestMerit),
		FinalMerit:   finite(j.FinalMerit),
		Values:       finiteValues(j.Values),
	})
}

func (j *Job) copy() *Job {
	c := *j
	return &c
}
