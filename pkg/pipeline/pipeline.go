package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/emailscope/pkg/config"
	"github.com/Sriram-PR/emailscope/pkg/crawler"
	"github.com/Sriram-PR/emailscope/pkg/extract"
	"github.com/Sriram-PR/emailscope/pkg/fetch"
	"github.com/Sriram-PR/emailscope/pkg/links"
	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/parse"
	"github.com/Sriram-PR/emailscope/pkg/utils"
	"github.com/Sriram-PR/emailscope/pkg/verify"
)

// Verifier is the verification engine contract used by the pipeline
type Verifier interface {
	Verify(ctx context.Context, email string) models.VerificationResult
}

// Report is the result of one Run
type Report struct {
	Domain         string
	Outcome        models.Outcome
	URLs           []string
	Records        []models.Record // Sorted by email
	FoundCount     int             // Unique observed + mailto addresses
	GeneratedCount int
	Err            error // Set when Outcome is error
	StartedAt      time.Time
	FinishedAt     time.Time
}

// ValidCount returns the number of records marked valid
func (r *Report) ValidCount() int {
	n := 0
	for _, rec := range r.Records {
		if rec.IsValid {
			n++
		}
	}
	return n
}

// Options contains optional parameters for New
type Options struct {
	// HTTPClient overrides the client built from the HTTP client settings
	HTTPClient *http.Client
	// Resolver overrides the MX resolver (ignored with mock DNS)
	Resolver verify.MXResolver
	// Verifier replaces the verification engine entirely
	Verifier Verifier
}

// Pipeline runs crawl, extraction and verification for one domain at a time.
// A Pipeline may serve concurrent Runs; per-run state lives in Run.
type Pipeline struct {
	cfg       config.AppConfig
	client    *http.Client
	robots    *fetch.RobotsChecker
	gate      *fetch.HostGate
	agents    *fetch.UserAgentRotator
	filter    *links.Filter
	extractor *extract.Extractor
	scorer    *extract.Scorer
	verifier  Verifier
	log       *logrus.Entry
}

// New wires the pipeline components from a validated config and tables. opts may be nil.
func New(cfg config.AppConfig, tables *config.Tables, log *logrus.Entry, opts *Options) (*Pipeline, error) {
	if opts == nil {
		opts = &Options{}
	}

	client := opts.HTTPClient
	if client == nil {
		client = fetch.NewClient(cfg.HTTPClientSettings, log)
	}
	filter, err := links.NewFilter(tables, log)
	if err != nil {
		return nil, fmt.Errorf("building link filter: %w", err)
	}
	extractor, err := extract.NewExtractor(tables, log)
	if err != nil {
		return nil, fmt.Errorf("building extractor: %w", err)
	}
	verifier := opts.Verifier
	if verifier == nil {
		v, err := verify.NewVerifier(cfg.Verification, tables, opts.Resolver, log)
		if err != nil {
			return nil, fmt.Errorf("building verifier: %w", err)
		}
		verifier = v
	}

	return &Pipeline{
		cfg:       cfg,
		client:    client,
		robots:    fetch.NewRobotsChecker(client, cfg.Crawl.Timeout, log),
		gate:      fetch.NewHostGate(cfg.MaxRequestsPerHost, cfg.Crawl.RequestDelay, log),
		agents:    fetch.NewUserAgentRotator(tables.UserAgents),
		filter:    filter,
		extractor: extractor,
		scorer:    extract.NewScorer(tables.ScoreKeywords),
		verifier:  verifier,
		log:       log,
	}, nil
}

// run is the per-invocation state of Run
type run struct {
	domain   string
	crawlCfg config.CrawlConfig
	stop     *StopToken
	log      *logrus.Entry

	emitMu   sync.Mutex
	observer Observer
}

func (r *run) emit(e models.Event) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	r.observer.OnEvent(e)
}

// Run discovers and verifies contact addresses for domain.
// The returned error is non-nil only when Outcome is error; a blocked or
// stopped run is reported through Outcome with a nil error.
func (p *Pipeline) Run(ctx context.Context, domain string, stop *StopToken, observer Observer) (report *Report, err error) {
	if observer == nil {
		observer = noopObserver{}
	}
	bare := parse.BareDomain(domain)
	r := &run{
		domain:   bare,
		crawlCfg: config.GetEffectiveCrawl(bare, p.cfg),
		stop:     stop,
		log:      p.log.WithField("domain", bare),
		observer: observer,
	}
	report = &Report{Domain: bare, URLs: []string{}, Records: []models.Record{}, StartedAt: time.Now()}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithFields(logrus.Fields{
				"panic_info":  rec,
				"stage":       "PanicRecovery",
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in pipeline run")
			err = fmt.Errorf("%w: %v", utils.ErrTaskPanic, rec)
			report.Outcome = models.OutcomeError
			report.Err = err
		}
		report.FinishedAt = time.Now()
		p.finish(r, report)
	}()

	r.emit(newEvent(models.EventCrawlStarted, bare))
	r.log.Info("Pipeline started")

	// --- Stage 1: crawl ---
	crawlRes, crawlErr := p.crawl(ctx, r, domain)
	if crawlRes != nil {
		report.URLs = crawlRes.URLs
	}
	switch {
	case errors.Is(crawlErr, utils.ErrExclusionBlocked):
		report.Outcome = models.OutcomeBlocked
		r.emit(withURLCount(newEvent(models.EventCrawlCompleted, bare), 0))
		return report, nil
	case crawlErr != nil:
		return p.fail(r, report, fmt.Errorf("crawl: %w", crawlErr))
	}
	crawlDone := newEvent(models.EventCrawlCompleted, bare)
	r.emit(withURLCount(crawlDone, len(report.URLs)))
	if stop.Stopped() {
		report.Outcome = models.OutcomeStopped
		return report, nil
	}

	// --- Stage 2: extraction ---
	candidates, found, generated := p.extractAll(ctx, r, report.URLs)
	report.FoundCount = found
	report.GeneratedCount = generated
	extractDone := newEvent(models.EventExtractionCompleted, bare)
	extractDone.FoundCount = found
	extractDone.GeneratedCount = generated
	r.emit(extractDone)
	if stop.Stopped() {
		report.Outcome = models.OutcomeStopped
		return report, nil
	}
	if err := ctx.Err(); err != nil {
		return p.fail(r, report, err)
	}

	// --- Stage 3: verification ---
	report.Records = p.verifyAll(ctx, r, candidates)
	switch {
	case stop.Stopped():
		report.Outcome = models.OutcomeStopped
	case ctx.Err() != nil:
		return p.fail(r, report, ctx.Err())
	default:
		report.Outcome = models.OutcomeCompleted
	}
	return report, nil
}

func (p *Pipeline) crawl(ctx context.Context, r *run, domain string) (*crawler.Result, error) {
	fetcher := fetch.NewPageFetcher(p.client, r.crawlCfg.Timeout, r.crawlCfg.MaxBodyBytes, r.log)
	c := crawler.NewCrawler(r.crawlCfg, fetcher, p.robots, p.filter, p.agents, r.log,
		&crawler.CrawlerOptions{Stop: r.stop.Stopped})
	return c.Crawl(ctx, domain)
}

func (p *Pipeline) fail(r *run, report *Report, err error) (*Report, error) {
	report.Outcome = models.OutcomeError
	report.Err = err
	return report, err
}

// finish logs the summary and emits the terminal event
func (p *Pipeline) finish(r *run, report *Report) {
	var event models.Event
	switch report.Outcome {
	case models.OutcomeStopped:
		event = newEvent(models.EventPipelineStopped, r.domain)
	case models.OutcomeError:
		event = newEvent(models.EventPipelineError, r.domain)
		if report.Err != nil {
			event.Message = report.Err.Error()
		}
	case models.OutcomeBlocked:
		event = newEvent(models.EventPipelineCompleted, r.domain)
		event.Message = "blocked by robots.txt"
	default:
		event = newEvent(models.EventPipelineCompleted, r.domain)
	}
	event.Completed = len(report.Records)
	event.Total = len(report.Records)
	r.emit(event)

	fields := logrus.Fields{
		"outcome":   report.Outcome,
		"urls":      len(report.URLs),
		"found":     report.FoundCount,
		"generated": report.GeneratedCount,
		"records":   len(report.Records),
		"valid":     report.ValidCount(),
		"duration":  report.FinishedAt.Sub(report.StartedAt).String(),
	}
	if report.Err != nil {
		r.log.WithFields(fields).WithField("error_type", utils.CategorizeError(report.Err)).Errorf("Pipeline failed: %v", report.Err)
		return
	}
	r.log.WithFields(fields).Info("Pipeline finished")
}

func withURLCount(e models.Event, n int) models.Event {
	e.URLCount = n
	return e
}

// poolSize returns min(maxWorkers, items), at least 1
func poolSize(maxWorkers, items int) int {
	return max(1, min(maxWorkers, items))
}

// rankCandidates scores candidates, keeps the best limit (score desc, then
// address) and returns them sorted by address.
func rankCandidates(cands []models.EmailCandidate, scorer *extract.Scorer, domain string, limit int) []models.ScoredCandidate {
	scored := make([]models.ScoredCandidate, 0, len(cands))
	for _, c := range cands {
		scored = append(scored, models.ScoredCandidate{EmailCandidate: c, Score: scorer.Score(c, domain)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Address < scored[j].Address
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Address < scored[j].Address })
	return scored
}
