package models

import "time"

// Job steps reported to status consumers
const (
	StepQueued     = "queued"
	StepCrawling   = "crawling"
	StepExtracting = "extracting"
	StepVerifying  = "verifying"
	StepComplete   = "complete"
	StepStopped    = "stopped"
	StepError      = "error"
)

// JobStatus is the externally visible progress of one discovery job
type JobStatus struct {
	JobID     string    `json:"job_id"`
	Domain    string    `json:"domain"`
	Step      string    `json:"step"`
	Progress  int       `json:"progress"` // 0-100
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Apply advances the status according to event
func (s *JobStatus) Apply(e Event) {
	s.UpdatedAt = e.At
	switch e.Type {
	case EventCrawlStarted:
		s.Step, s.Progress = StepCrawling, 10
		s.Message = "Crawling website"
	case EventCrawlCompleted:
		s.Step, s.Progress = StepExtracting, 30
		s.Message = "Extracting emails"
	case EventExtractionCompleted:
		s.Step, s.Progress = StepVerifying, 50
		s.Message = "Verifying emails"
	case EventVerificationProgress:
		s.Step = StepVerifying
		if e.Total > 0 {
			s.Progress = 50 + 45*e.Completed/e.Total
		}
	case EventPipelineCompleted:
		s.Step, s.Progress = StepComplete, 100
		s.Message = e.Message
	case EventPipelineStopped:
		s.Step = StepStopped
		s.Message = "Stopped by user"
	case EventPipelineError:
		s.Step = StepError
		s.Message = e.Message
	}
}

// Terminal reports whether the job will not advance any further
func (s *JobStatus) Terminal() bool {
	switch s.Step {
	case StepComplete, StepStopped, StepError:
		return true
	}
	return false
}
