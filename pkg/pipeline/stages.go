package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/emailscope/pkg/fetch"
	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

// sourceRank orders sources when one address is seen several ways
var sourceRank = map[models.Source]int{
	models.SourceMailto:    3,
	models.SourceObserved:  2,
	models.SourceGenerated: 1,
}

// extractAll fetches every URL on a bounded pool and returns the ranked
// candidates plus the unique found and generated counts.
func (p *Pipeline) extractAll(ctx context.Context, r *run, urls []string) (ranked []models.ScoredCandidate, found, generated int) {
	fetcher := fetch.NewPageFetcher(p.client, r.crawlCfg.Timeout, r.crawlCfg.MaxBodyBytes, r.log)

	var (
		mu     sync.Mutex
		merged = make(map[string]models.EmailCandidate)
		order  []string
	)
	collect := func(cands []models.EmailCandidate) {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range cands {
			c.Domain = r.domain
			prev, ok := merged[c.Address]
			if !ok {
				order = append(order, c.Address)
			}
			if !ok || sourceRank[c.Source] > sourceRank[prev.Source] {
				merged[c.Address] = c
			}
		}
	}

	var g errgroup.Group
	g.SetLimit(poolSize(p.cfg.MaxWorkers, len(urls)))
	var started atomic.Int32
	for _, pageURL := range urls {
		if r.stop.Stopped() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// g.Go may have blocked on a full pool while stop was raised
			if r.stop.Stopped() || ctx.Err() != nil {
				return nil
			}
			started.Add(1)
			collect(p.extractPage(ctx, r, fetcher, pageURL))
			return nil
		})
	}
	g.Wait()
	r.log.WithFields(logrus.Fields{
		"pages":   len(urls),
		"started": started.Load(),
		"unique":  len(order),
		"hosts":   p.gate.Len(),
	}).Info("Extraction stage finished")

	observed := make([]models.EmailCandidate, 0, len(order))
	for _, addr := range order {
		observed = append(observed, merged[addr])
	}
	found = len(observed)

	all := observed
	for _, addr := range p.extractor.Generate(r.domain) {
		if _, seen := merged[addr]; seen {
			continue
		}
		all = append(all, models.EmailCandidate{Address: addr, Source: models.SourceGenerated, Domain: r.domain})
		generated++
	}

	return rankCandidates(all, p.scorer, r.domain, p.cfg.MaxTotalEmails), found, generated
}

// extractPage fetches one page and returns at most MaxEmailsPerPage mailto and
// observed candidates. Failures are logged and yield nothing.
func (p *Pipeline) extractPage(ctx context.Context, r *run, fetcher *fetch.PageFetcher, pageURL string) (cands []models.EmailCandidate) {
	pageLog := r.log.WithField("url", pageURL)
	defer func() {
		if rec := recover(); rec != nil {
			cands = nil
			pageLog.WithFields(logrus.Fields{
				"panic_info":  rec,
				"stage":       "PanicRecovery",
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in extraction task")
		}
	}()

	host := pageURL
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Host
	}
	release, err := p.gate.Acquire(ctx, host)
	if err != nil {
		pageLog.Debugf("Host gate not acquired: %v", err)
		return nil
	}
	defer release()

	page, err := fetcher.Fetch(ctx, pageURL, p.agents.Next())
	if err != nil {
		pageLog.WithField("error_type", utils.CategorizeError(err)).Warnf("Extraction fetch failed: %v", err)
		return nil
	}

	x := p.extractor.Extract(page.Text, page.Doc, "")
	cands = append(x.Mailto, x.Found...)
	if limit := p.cfg.MaxEmailsPerPage; limit > 0 && len(cands) > limit {
		pageLog.Debugf("Page yielded %d addresses, keeping %d", len(cands), limit)
		cands = cands[:limit]
	}
	return cands
}

// verifyAll verifies candidates on a bounded pool. The stop token is checked
// before each dispatch and again when a task starts; tasks already running
// finish. Records are sorted by email.
func (p *Pipeline) verifyAll(ctx context.Context, r *run, cands []models.ScoredCandidate) []models.Record {
	total := len(cands)
	var (
		mu        sync.Mutex
		records   = make([]models.Record, 0, total)
		completed int
	)

	var g errgroup.Group
	g.SetLimit(poolSize(p.cfg.MaxWorkers, total))
	for _, cand := range cands {
		if r.stop.Stopped() || ctx.Err() != nil {
			r.log.Info("Stop requested, no further verification dispatched")
			break
		}
		g.Go(func() error {
			if r.stop.Stopped() || ctx.Err() != nil {
				return nil
			}
			rec := p.verifyOne(ctx, r, cand)

			mu.Lock()
			records = append(records, rec)
			completed++
			progress := newEvent(models.EventVerificationProgress, r.domain)
			progress.Completed = completed
			progress.Total = total
			r.emit(progress)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(records, func(i, j int) bool { return records[i].Email < records[j].Email })
	return records
}

// verifyOne never fails: errors and panics become an invalid record
func (p *Pipeline) verifyOne(ctx context.Context, r *run, cand models.ScoredCandidate) (rec models.Record) {
	rec = models.Record{Email: cand.Address, Source: cand.Source}
	defer func() {
		if v := recover(); v != nil {
			err := fmt.Errorf("%w: %v", utils.ErrTaskPanic, v)
			r.log.WithFields(logrus.Fields{
				"email":       cand.Address,
				"panic_info":  v,
				"stage":       "PanicRecovery",
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in verification task")
			rec.IsValid = false
			rec.Confidence = 0
			rec.Reason = "error: " + err.Error()
		}
	}()

	res := p.verifier.Verify(ctx, cand.Address)
	rec.IsValid = res.IsValid
	rec.Confidence = res.Confidence
	rec.Reason = res.Reason
	return rec
}
