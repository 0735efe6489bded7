package mcp

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/pipeline"
)

// Job represents a background discovery job
type Job struct {
	ID          string           `json:"id"`
	Domain      string           `json:"domain"`
	Status      models.JobStatus `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at,omitempty"`
	Outcome     models.Outcome   `json:"outcome,omitempty"`

	// Set when the job finishes
	URLs           []string        `json:"-"`
	Records        []models.Record `json:"-"`
	FoundCount     int             `json:"found_count"`
	GeneratedCount int             `json:"generated_count"`
	ErrorMessage   string          `json:"error_message,omitempty"`

	// Internal fields
	stop   *pipeline.StopToken
	ctx    context.Context
	cancel context.CancelFunc
}

// Running reports whether the job has not reached a terminal step
func (j *Job) Running() bool {
	return !j.Status.Terminal()
}

// JobManager manages background discovery jobs
type JobManager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	byDomain map[string]string // domain -> jobID for running jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:     make(map[string]*Job),
		byDomain: make(map[string]string),
	}
}

// CreateJob creates a job for domain. If one is already running for the
// domain it is returned with created=false.
func (m *JobManager) CreateJob(domain string) (job Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, exists := m.byDomain[domain]; exists {
		if existing := m.jobs[existingID]; existing != nil && existing.Running() {
			return m.snapshot(existing), false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	id := uuid.New().String()
	j := &Job{
		ID:        id,
		Domain:    domain,
		Status:    models.JobStatus{JobID: id, Domain: domain, Step: models.StepQueued, UpdatedAt: now},
		StartedAt: now,
		stop:      pipeline.NewStopToken(),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.jobs[id] = j
	m.byDomain[domain] = id
	return m.snapshot(j), true
}

// GetJob returns a copy of the job
func (m *JobManager) GetJob(jobID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return m.snapshot(j), true
}

// ApplyEvent advances the job status with a pipeline event
func (m *JobManager) ApplyEvent(jobID string, e models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[jobID]; ok && j.Running() {
		j.Status.Apply(e)
	}
}

// Finish records the pipeline report of a job and marks it terminal
func (m *JobManager) Finish(jobID string, report *pipeline.Report, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return
	}
	j.CompletedAt = time.Now()
	j.Status.UpdatedAt = j.CompletedAt
	if report != nil {
		j.Outcome = report.Outcome
		j.URLs = report.URLs
		j.Records = report.Records
		j.FoundCount = report.FoundCount
		j.GeneratedCount = report.GeneratedCount
	}
	if err != nil {
		j.ErrorMessage = err.Error()
	}
	switch {
	case err != nil || j.Outcome == models.OutcomeError:
		j.Outcome = models.OutcomeError
		j.Status.Step = models.StepError
		j.Status.Message = j.ErrorMessage
	case j.Outcome == models.OutcomeStopped:
		j.Status.Step = models.StepStopped
	default:
		j.Status.Step = models.StepComplete
		j.Status.Progress = 100
	}
	delete(m.byDomain, j.Domain)
	j.cancel()
}

// StopJob raises the stop token of a running job. Work already dispatched
// completes; its results are kept.
func (m *JobManager) StopJob(jobID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[jobID]
	if !ok || !j.Running() {
		return false
	}
	j.stop.Stop()
	return true
}

// CancelAll stops every running job and cancels its context
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.Running() {
			j.stop.Stop()
			j.cancel()
		}
	}
}

// ListJobs returns copies of all jobs, oldest first
func (m *JobManager) ListJobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, m.snapshot(j))
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].StartedAt.Before(jobs[b].StartedAt) })
	return jobs
}

// runHandles returns what a job runner needs
func (m *JobManager) runHandles(jobID string) (context.Context, *pipeline.StopToken, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, nil, false
	}
	return j.ctx, j.stop, true
}

// snapshot copies j; callers hold m.mu
func (m *JobManager) snapshot(j *Job) Job {
	c := *j
	c.URLs = append([]string(nil), j.URLs...)
	c.Records = append([]models.Record(nil), j.Records...)
	return c
}
