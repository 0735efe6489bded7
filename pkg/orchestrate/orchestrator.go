package orchestrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/parse"
	"github.com/Sriram-PR/emailscope/pkg/pipeline"
	"github.com/Sriram-PR/emailscope/pkg/storage"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

// Runner runs the discovery pipeline for one domain; *pipeline.Pipeline implements it
type Runner interface {
	Run(ctx context.Context, domain string, stop *pipeline.StopToken, observer pipeline.Observer) (*pipeline.Report, error)
}

// RecordPublisher forwards final records to an external sink
type RecordPublisher interface {
	PublishRecords(ctx context.Context, domain, sessionID string, records []models.Record) error
}

// Sinks are the optional destinations of each run. Nil fields are skipped.
type Sinks struct {
	Store     storage.ResultStore
	Publisher RecordPublisher
	// Observers returns extra observers for one session (status sinks, event publishers)
	Observers func(sessionID, domain string) []pipeline.Observer
}

// DomainResult contains the result of one domain run
type DomainResult struct {
	Domain    string
	SessionID string
	Report    *pipeline.Report
	Err       error
	Duration  time.Duration
}

// Orchestrator runs several domains with bounded parallelism
type Orchestrator struct {
	runner      Runner
	sinks       Sinks
	maxParallel int
	log         *logrus.Entry

	results   []DomainResult
	resultsMu sync.Mutex
}

// NewOrchestrator creates an orchestrator; maxParallel < 1 means 1
func NewOrchestrator(runner Runner, maxParallel int, sinks Sinks, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		runner:      runner,
		sinks:       sinks,
		maxParallel: max(1, maxParallel),
		log:         log,
	}
}

// Run processes all domains and returns their results in input order.
// Domains not yet started when stop is raised or ctx ends are skipped.
func (o *Orchestrator) Run(ctx context.Context, domains []string, stop *pipeline.StopToken, observer pipeline.Observer) []DomainResult {
	startTime := time.Now()
	o.log.Infof("Starting discovery for %d domains (parallel: %d)", len(domains), o.maxParallel)

	sem := semaphore.NewWeighted(int64(o.maxParallel))
	slots := make([]*DomainResult, len(domains))
	var wg sync.WaitGroup

	for i, domain := range domains {
		if stop.Stopped() {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if stop.Stopped() {
			sem.Release(1)
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			res := o.RunDomain(ctx, "", domain, stop, observer)
			slots[i] = &res
		}()
	}
	wg.Wait()

	results := make([]DomainResult, 0, len(domains))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	o.logSummary(results, time.Since(startTime))
	return results
}

// RunDomain runs one domain as a session. An empty sessionID gets a fresh UUID.
// The session and records are persisted and published when the sinks are set;
// sink failures are logged and do not change the run outcome.
func (o *Orchestrator) RunDomain(ctx context.Context, sessionID, domain string, stop *pipeline.StopToken, observer pipeline.Observer) DomainResult {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	startTime := time.Now()
	bare := parse.BareDomain(domain)
	runLog := o.log.WithFields(logrus.Fields{"domain": bare, "session_id": sessionID})

	session := &models.Session{ID: sessionID, Domain: bare, StartedAt: startTime}
	o.saveSession(session, runLog)

	observers := pipeline.MultiObserver{observer}
	if o.sinks.Observers != nil {
		observers = append(observers, o.sinks.Observers(sessionID, bare)...)
	}

	report, err := o.runner.Run(ctx, domain, stop, observers)
	result := DomainResult{Domain: bare, SessionID: sessionID, Report: report, Err: err, Duration: time.Since(startTime)}
	if report == nil {
		report = &pipeline.Report{Domain: bare, Outcome: models.OutcomeError, Err: err}
		result.Report = report
	}

	session.FinishedAt = time.Now()
	session.Outcome = report.Outcome
	session.URLCount = len(report.URLs)
	session.FoundCount = report.FoundCount
	session.GeneratedCount = report.GeneratedCount
	session.ValidCount = report.ValidCount()
	if err != nil {
		session.ErrorMessage = err.Error()
	}
	o.saveSession(session, runLog)
	o.persistRecords(ctx, sessionID, report, runLog)

	o.resultsMu.Lock()
	o.results = append(o.results, result)
	o.resultsMu.Unlock()
	return result
}

func (o *Orchestrator) saveSession(session *models.Session, log *logrus.Entry) {
	if o.sinks.Store == nil {
		return
	}
	if err := o.sinks.Store.SaveSession(session); err != nil {
		log.WithField("error_type", utils.CategorizeError(err)).Errorf("Failed to save session: %v", err)
	}
}

func (o *Orchestrator) persistRecords(ctx context.Context, sessionID string, report *pipeline.Report, log *logrus.Entry) {
	if len(report.Records) == 0 {
		return
	}
	if o.sinks.Store != nil {
		added, updated, err := o.sinks.Store.UpsertResults(report.Domain, sessionID, report.Records, time.Now())
		if err != nil {
			log.WithField("error_type", utils.CategorizeError(err)).Errorf("Failed to store results: %v", err)
		} else {
			log.WithFields(logrus.Fields{"added": added, "updated": updated}).Info("Results stored")
		}
	}
	if o.sinks.Publisher != nil {
		// Publish even when the run context is already cancelled
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := o.sinks.Publisher.PublishRecords(pubCtx, report.Domain, sessionID, report.Records); err != nil {
			log.WithField("error_type", utils.CategorizeError(err)).Errorf("Failed to publish results: %v", err)
		}
	}
}

// Results returns every result recorded by this orchestrator so far
func (o *Orchestrator) Results() []DomainResult {
	o.resultsMu.Lock()
	defer o.resultsMu.Unlock()
	out := make([]DomainResult, len(o.results))
	copy(out, o.results)
	return out
}

// logSummary logs a summary of all domain results
func (o *Orchestrator) logSummary(results []DomainResult, totalDuration time.Duration) {
	o.log.Info("============================================")
	o.log.Infof("Discovery finished in %v", totalDuration)

	counts := make(map[models.Outcome]int)
	valid := 0
	for _, r := range results {
		counts[r.Report.Outcome]++
		valid += r.Report.ValidCount()
		o.log.Infof("  %s: %s - %d records (%d valid) in %v", r.Domain, r.Report.Outcome, len(r.Report.Records), r.Report.ValidCount(), r.Duration)
		if r.Err != nil {
			o.log.Infof("    Error: %v", r.Err)
		}
	}

	o.log.Info("--------------------------------------------")
	o.log.Infof("Total: %d domains (%d completed, %d stopped, %d blocked, %d failed), %d valid addresses",
		len(results), counts[models.OutcomeCompleted], counts[models.OutcomeStopped],
		counts[models.OutcomeBlocked], counts[models.OutcomeError], valid)
	o.log.Info("============================================")
}

// NormalizeDomains reduces inputs to bare domains, dropping duplicates.
// An input that does not yield a usable host is an error.
func NormalizeDomains(inputs []string) ([]string, error) {
	seen := make(map[string]bool, len(inputs))
	out := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if _, err := parse.SeedURL(in); err != nil {
			return nil, fmt.Errorf("%w: invalid domain %q: %w", utils.ErrConfigValidation, in, err)
		}
		bare := parse.BareDomain(in)
		if seen[bare] {
			continue
		}
		seen[bare] = true
		out = append(out, in)
	}
	return out, nil
}
