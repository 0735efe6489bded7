package crawler

import (
	"github.com/Sriram-PR/emailscope/pkg/fetch"
	"github.com/Sriram-PR/emailscope/pkg/queue"
)

// CrawlState is the bookkeeping of one Crawl call. It is never shared.
// URLs are keyed by their normalized form.
type CrawlState struct {
	discovered    []string // Ordered; never longer than maxPages
	discoveredSet map[string]bool
	visited       map[string]bool
	failed        map[string]bool // Disjoint from visited
	frontier      *queue.Frontier
	pacer         *fetch.Pacer
	maxPages      int
}

func newCrawlState(maxPages int, pacer *fetch.Pacer) *CrawlState {
	return &CrawlState{
		discoveredSet: make(map[string]bool),
		visited:       make(map[string]bool),
		failed:        make(map[string]bool),
		frontier:      queue.NewFrontier(),
		pacer:         pacer,
		maxPages:      maxPages,
	}
}

// discover records url; false if already known or the page budget is spent
func (s *CrawlState) discover(url string) bool {
	if s.discoveredSet[url] || s.full() {
		return false
	}
	s.discoveredSet[url] = true
	s.discovered = append(s.discovered, url)
	return true
}

func (s *CrawlState) full() bool {
	return len(s.discovered) >= s.maxPages
}

// done reports whether url was already fetched, successfully or not
func (s *CrawlState) done(url string) bool {
	return s.visited[url] || s.failed[url]
}

func (s *CrawlState) markVisited(url string) {
	delete(s.failed, url)
	s.visited[url] = true
}

func (s *CrawlState) markFailed(url string) {
	if !s.visited[url] {
		s.failed[url] = true
	}
}

// output returns discovered URLs that did not fail, in discovery order
func (s *CrawlState) output() []string {
	out := make([]string, 0, len(s.discovered))
	for _, u := range s.discovered {
		if !s.failed[u] {
			out = append(out, u)
		}
	}
	return out
}
