package watch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/emailscope/pkg/orchestrate"
	"github.com/Sriram-PR/emailscope/pkg/parse"
	"github.com/Sriram-PR/emailscope/pkg/pipeline"
)

// DomainsRunner runs discovery for a batch of domains; *orchestrate.Orchestrator implements it
type DomainsRunner interface {
	Run(ctx context.Context, domains []string, stop *pipeline.StopToken, observer pipeline.Observer) []orchestrate.DomainResult
}

// Scheduler re-runs discovery for a set of domains periodically
type Scheduler struct {
	runner       DomainsRunner
	domains      []string
	interval     time.Duration
	tick         time.Duration
	observer     pipeline.Observer
	log          *logrus.Entry
	stateManager *StateManager
}

// NewScheduler creates a new watch scheduler with state in stateDir
func NewScheduler(runner DomainsRunner, domains []string, interval time.Duration, stateDir string, observer pipeline.Observer, log *logrus.Entry) *Scheduler {
	s := &Scheduler{
		runner:       runner,
		domains:      domains,
		interval:     interval,
		observer:     observer,
		log:          log,
		stateManager: NewStateManager(stateDir),
	}
	s.tick = s.calculateTickInterval()
	return s
}

// Run runs due domains immediately and then on every tick until ctx ends
// or stop is raised. A run in progress when stop is raised finishes its
// dispatched work first.
func (s *Scheduler) Run(ctx context.Context, stop *pipeline.StopToken) error {
	if err := s.stateManager.Load(); err != nil {
		s.log.Warnf("Failed to load watch state: %v (starting fresh)", err)
	}

	s.log.Infof("Starting watch mode for %d domains with interval %v", len(s.domains), FormatInterval(s.interval))
	s.logSchedule()
	s.runDueDomains(ctx, stop)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		if stop.Stopped() {
			s.log.Info("Watch scheduler stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			s.log.Info("Watch scheduler shutting down...")
			return nil
		case <-stop.Done():
		case <-ticker.C:
			s.runDueDomains(ctx, stop)
		}
	}
}

// runDueDomains runs all domains that are due and records their outcome
func (s *Scheduler) runDueDomains(ctx context.Context, stop *pipeline.StopToken) {
	due := s.getDueDomains()
	if len(due) == 0 {
		s.logNextRun()
		return
	}
	s.log.Infof("Running discovery for %d due domains: %v", len(due), due)

	results := s.runner.Run(ctx, due, stop, s.observer)
	now := time.Now()
	for _, r := range results {
		errorMsg := ""
		if r.Err != nil {
			errorMsg = r.Err.Error()
		}
		fresh := s.stateManager.RecordRun(r.Domain, r.Report.Outcome, r.Report.Records, errorMsg, now)
		if len(fresh) > 0 {
			s.log.WithField("domain", r.Domain).Infof("%d new valid addresses: %v", len(fresh), fresh)
		}
	}

	if err := s.stateManager.Save(); err != nil {
		s.log.Errorf("Failed to save watch state: %v", err)
	}
	s.logNextRun()
}

// getDueDomains returns domains that are due for a run
func (s *Scheduler) getDueDomains() []string {
	var due []string
	for _, d := range s.domains {
		if s.stateManager.ShouldRun(parse.BareDomain(d), s.interval) {
			due = append(due, d)
		}
	}
	return due
}

// calculateTickInterval returns how often to check for due domains
func (s *Scheduler) calculateTickInterval() time.Duration {
	// Check at least every minute, or every 1/10th of the interval
	checkInterval := s.interval / 10
	if checkInterval < time.Minute {
		checkInterval = time.Minute
	}
	if checkInterval > 10*time.Minute {
		checkInterval = 10 * time.Minute
	}
	return checkInterval
}

// logSchedule logs the current schedule
func (s *Scheduler) logSchedule() {
	s.log.Info("Watch schedule:")
	for _, d := range s.domains {
		bare := parse.BareDomain(d)
		state, exists := s.stateManager.GetDomainState(bare)
		if !exists {
			s.log.Infof("  %s: never run, will run immediately", bare)
			continue
		}
		nextRun := s.stateManager.GetNextRunTime(bare, s.interval)
		s.log.Infof("  %s: last run %v (%s, %d valid of %d), next run %v",
			bare,
			state.LastRunTime.Format(time.RFC3339),
			state.LastOutcome,
			state.ValidCount,
			state.RecordCount,
			nextRun.Format(time.RFC3339))
	}
}

// logNextRun logs when the next run will occur
func (s *Scheduler) logNextRun() {
	type nextRun struct {
		domain string
		at     time.Time
	}
	runs := make([]nextRun, 0, len(s.domains))
	for _, d := range s.domains {
		bare := parse.BareDomain(d)
		runs = append(runs, nextRun{bare, s.stateManager.GetNextRunTime(bare, s.interval)})
	}
	if len(runs) == 0 {
		return
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].at.Before(runs[j].at) })

	next := runs[0]
	until := max(time.Until(next.at), 0)
	s.log.Infof("Next discovery: %s in %v (at %s)", next.domain, until.Round(time.Second), next.at.Format("15:04:05"))
}

// GetStatus returns the current status of all watched domains
func (s *Scheduler) GetStatus() map[string]DomainStatus {
	status := make(map[string]DomainStatus, len(s.domains))
	for _, d := range s.domains {
		bare := parse.BareDomain(d)
		state, exists := s.stateManager.GetDomainState(bare)
		status[bare] = DomainStatus{
			Domain:      bare,
			State:       state,
			NextRunTime: s.stateManager.GetNextRunTime(bare, s.interval),
			NeverRun:    !exists,
		}
	}
	return status
}

// DomainStatus contains the status of a watched domain
type DomainStatus struct {
	Domain      string
	State       DomainState
	NextRunTime time.Time
	NeverRun    bool
}

// FormatInterval formats a duration for display
func FormatInterval(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// ParseInterval parses a duration string with support for days
func ParseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	var days int
	var remaining string
	n, _ := fmt.Sscanf(s, "%dd%s", &days, &remaining)
	if n >= 1 {
		d = time.Duration(days) * 24 * time.Hour
		if remaining != "" {
			extra, err := time.ParseDuration(remaining)
			if err != nil {
				return 0, fmt.Errorf("invalid interval format: %s", s)
			}
			d += extra
		}
		return d, nil
	}

	return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
}
