package crawler

import (
	"context"
	"fmt"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/emailscope/pkg/config"
	"github.com/Sriram-PR/emailscope/pkg/fetch"
	"github.com/Sriram-PR/emailscope/pkg/links"
	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/parse"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

// PageFetcher is the single-attempt page download the crawler depends on
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL, userAgent string) (*fetch.Page, error)
}

// ExclusionChecker decides whether a URL may be crawled
type ExclusionChecker interface {
	Allowed(ctx context.Context, target *url.URL, userAgent string) bool
}

// Result is the outcome of one crawl
type Result struct {
	SeedURL string
	URLs    []string // Ranked, same-site, at most MaxPages
	Visited int
	Failed  int
	Stopped bool // Ended early by the stop check
}

// CrawlerOptions contains optional parameters for NewCrawler
type CrawlerOptions struct {
	// Stop is polled before every fetch; returning true ends the crawl with what was found so far
	Stop func() bool
}

// Crawler discovers the contact-relevant pages of one site with a paced,
// sequential, depth-limited BFS.
type Crawler struct {
	cfg     config.CrawlConfig
	fetcher PageFetcher
	robots  ExclusionChecker
	filter  *links.Filter
	agents  *fetch.UserAgentRotator
	stop    func() bool
	log     *logrus.Entry
}

// NewCrawler creates a Crawler. opts may be nil.
func NewCrawler(
	cfg config.CrawlConfig,
	fetcher PageFetcher,
	robots ExclusionChecker,
	filter *links.Filter,
	agents *fetch.UserAgentRotator,
	log *logrus.Entry,
	opts *CrawlerOptions,
) *Crawler {
	stop := func() bool { return false }
	if opts != nil && opts.Stop != nil {
		stop = opts.Stop
	}
	return &Crawler{
		cfg:     cfg,
		fetcher: fetcher,
		robots:  robots,
		filter:  filter,
		agents:  agents,
		stop:    stop,
		log:     log,
	}
}

// Crawl discovers pages under seedDomain.
// Returns utils.ErrExclusionBlocked (with an empty URL list) when robots.txt
// disallows the seed and bypass is off. On context cancellation the partial
// result is returned together with ctx.Err().
func (c *Crawler) Crawl(ctx context.Context, seedDomain string) (*Result, error) {
	seed, err := parse.SeedURL(seedDomain)
	if err != nil {
		return nil, fmt.Errorf("%w: seed URL '%s': %w", utils.ErrParsing, seedDomain, err)
	}
	seedURL := parse.NormalizeURL(seed)
	seedHost := seed.Hostname()
	crawlLog := c.log.WithFields(logrus.Fields{"seed": seedURL, "max_depth": c.cfg.MaxDepth, "max_pages": c.cfg.MaxPages})

	result := &Result{SeedURL: seedURL, URLs: []string{}}

	if c.cfg.BypassExclusion {
		crawlLog.Warn("Bypassing robots.txt for this crawl")
	} else if !c.robots.Allowed(ctx, seed, c.agents.Primary()) {
		crawlLog.Warn("robots.txt disallows the seed URL, not crawling")
		return result, fmt.Errorf("%w: %s", utils.ErrExclusionBlocked, seedURL)
	}

	maxPages := c.cfg.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}
	state := newCrawlState(maxPages, fetch.NewPacer(c.cfg.PacingInterval, crawlLog))
	state.discover(seedURL)
	state.frontier.Push(models.WorkItem{URL: seedURL, Depth: 0})

	startTime := time.Now()
	crawlLog.Info("Crawl started")

	var crawlErr error
	for state.frontier.Len() > 0 {
		if err := ctx.Err(); err != nil {
			crawlErr = err
			break
		}
		if c.stop() {
			crawlLog.Info("Stop requested, ending crawl early")
			result.Stopped = true
			break
		}
		if state.full() {
			crawlLog.Debug("Page budget reached")
			break
		}

		item, _ := state.frontier.Pop()
		if item.Depth > c.cfg.MaxDepth || state.done(item.URL) {
			continue
		}

		if err := state.pacer.Wait(ctx); err != nil {
			crawlErr = err
			break
		}
		c.crawlPage(ctx, state, item, seedHost, crawlLog)
	}

	result.URLs = c.filter.Prioritize(state.output())
	if len(result.URLs) > maxPages {
		result.URLs = result.URLs[:maxPages]
	}
	result.Visited = len(state.visited)
	result.Failed = len(state.failed)

	crawlLog.WithFields(logrus.Fields{
		"urls":     len(result.URLs),
		"visited":  result.Visited,
		"failed":   result.Failed,
		"duration": time.Since(startTime).String(),
	}).Info("Crawl finished")
	return result, crawlErr
}

// crawlPage fetches one page and discovers its filtered links, queueing
// them only while below the depth limit.
// A panic is recovered and the URL counted as failed.
func (c *Crawler) crawlPage(ctx context.Context, state *CrawlState, item models.WorkItem, seedHost string, crawlLog *logrus.Entry) {
	pageLog := crawlLog.WithFields(logrus.Fields{"url": item.URL, "depth": item.Depth})

	defer func() {
		if r := recover(); r != nil {
			state.markFailed(item.URL)
			pageLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"stage":       "PanicRecovery",
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered while crawling page")
		}
	}()

	userAgent := c.agents.Next()
	state.pacer.Mark()
	page, err := c.fetcher.Fetch(ctx, item.URL, userAgent)
	if err != nil {
		state.markFailed(item.URL)
		pageLog.WithField("error_type", utils.CategorizeError(err)).Warnf("Fetch failed, not retrying: %v", err)
		return
	}
	state.markVisited(item.URL)
	state.discover(item.URL)

	if state.full() {
		pageLog.Debug("Page budget reached, not processing links")
		return
	}

	base := page.FinalURL
	if base == nil {
		base, _ = url.Parse(item.URL)
	}
	candidates := c.filter.Prioritize(c.filter.Filter(seedHost, links.ExtractLinks(page.Doc, base)))

	discovered, queued := 0, 0
	for _, link := range candidates {
		if state.full() {
			break
		}
		if state.done(link) || !state.discover(link) {
			continue
		}
		discovered++
		// Links found at the last level are kept in the output but never fetched
		if item.Depth < c.cfg.MaxDepth {
			state.frontier.Push(models.WorkItem{URL: link, Depth: item.Depth + 1})
			queued++
		}
	}
	pageLog.WithFields(logrus.Fields{"links": len(candidates), "discovered": discovered, "queued": queued}).Debug("Processed page")
}
