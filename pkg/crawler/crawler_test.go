package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/emailscope/pkg/config"
	"github.com/Sriram-PR/emailscope/pkg/fetch"
	"github.com/Sriram-PR/emailscope/pkg/links"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// testSite serves a small HTML site; pages maps path -> body, robots is served at /robots.txt when non-empty
func testSite(t *testing.T, pages map[string]string, robots string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	pageHits := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			if robots == "" {
				http.NotFound(w, r)
				return
			}
			io.WriteString(w, robots)
			return
		}
		pageHits.Add(1)
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, pageHits
}

func newTestCrawler(t *testing.T, cfg config.CrawlConfig, opts *CrawlerOptions) *Crawler {
	t.Helper()
	log := testLogger()
	client := &http.Client{Timeout: 5 * time.Second}
	filter, err := links.NewFilter(config.DefaultTables(), log)
	require.NoError(t, err)
	return NewCrawler(
		cfg,
		fetch.NewPageFetcher(client, 2*time.Second, 1<<20, log),
		fetch.NewRobotsChecker(client, time.Second, log),
		filter,
		fetch.NewUserAgentRotator([]string{"test-agent"}),
		log,
		opts,
	)
}

func testCrawlConfig() config.CrawlConfig {
	return config.CrawlConfig{MaxDepth: 2, MaxPages: 10, Timeout: 2 * time.Second}
}

func TestCrawl_DiscoversAndRanks(t *testing.T) {
	server, _ := testSite(t, map[string]string{
		"/": `<a href="/contact">c</a><a href="/about">a</a><a href="/wp-admin/x">adm</a>
<a href="/file.pdf">pdf</a><a href="http://other.example/contact">ext</a><a href="/missing">m</a>`,
		"/contact": `<a href="/team">team</a><a href="/">home</a>`,
		"/about":   `<p>About us</p>`,
		"/team":    `<a href="/deep">deeper</a>`,
	}, "")

	result, err := newTestCrawler(t, testCrawlConfig(), nil).Crawl(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, []string{
		server.URL + "/contact",
		server.URL + "/about",
		server.URL + "/team",
		server.URL + "/",
		server.URL + "/deep",
	}, result.URLs)
	assert.Equal(t, server.URL+"/", result.SeedURL)
	assert.Equal(t, 4, result.Visited)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.Stopped)
	for _, u := range result.URLs {
		assert.NotContains(t, u, "wp-admin")
		assert.NotContains(t, u, ".pdf")
		assert.True(t, strings.HasPrefix(u, server.URL))
	}
}

func TestCrawl_RespectsMaxPages(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, `<a href="/p%d">p</a>`, i)
	}
	server, hits := testSite(t, map[string]string{"/": sb.String()}, "")

	cfg := testCrawlConfig()
	cfg.MaxPages = 5
	result, err := newTestCrawler(t, cfg, nil).Crawl(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Len(t, result.URLs, 5)
	assert.Equal(t, int32(1), hits.Load(), "budget was spent by the seed page, nothing else fetched")
}

func TestCrawl_MaxDepthZero(t *testing.T) {
	server, hits := testSite(t, map[string]string{
		"/":        `<a href="/contact">c</a>`,
		"/contact": `<p>x</p>`,
	}, "")

	cfg := testCrawlConfig()
	cfg.MaxDepth = 0
	result, err := newTestCrawler(t, cfg, nil).Crawl(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, []string{server.URL + "/contact", server.URL + "/"}, result.URLs)
	assert.Equal(t, int32(1), hits.Load(), "links at the depth limit are discovered, not fetched")
	assert.Equal(t, 1, result.Visited)
}

func TestCrawl_LinksAtDepthLimitKept(t *testing.T) {
	server, hits := testSite(t, map[string]string{
		"/":        `<a href="/about">a</a>`,
		"/about":   `<a href="/contact">c</a>`,
		"/contact": `<p>x</p>`,
	}, "")

	cfg := testCrawlConfig()
	cfg.MaxDepth = 1
	result, err := newTestCrawler(t, cfg, nil).Crawl(context.Background(), server.URL)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{server.URL + "/", server.URL + "/about", server.URL + "/contact"}, result.URLs)
	assert.Equal(t, int32(2), hits.Load(), "/contact sits past the depth limit and is never fetched")
	assert.Equal(t, 2, result.Visited)
}

func TestCrawl_ExclusionBlocked(t *testing.T) {
	server, hits := testSite(t, map[string]string{"/": `<a href="/contact">c</a>`}, "User-agent: *\nDisallow: /\n")

	result, err := newTestCrawler(t, testCrawlConfig(), nil).Crawl(context.Background(), server.URL)

	require.ErrorIs(t, err, utils.ErrExclusionBlocked)
	require.NotNil(t, result)
	assert.Empty(t, result.URLs)
	assert.Equal(t, int32(0), hits.Load())
}

func TestCrawl_BypassExclusion(t *testing.T) {
	server, _ := testSite(t, map[string]string{"/": `<a href="/contact">c</a>`, "/contact": ``}, "User-agent: *\nDisallow: /\n")

	cfg := testCrawlConfig()
	cfg.BypassExclusion = true
	result, err := newTestCrawler(t, cfg, nil).Crawl(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Len(t, result.URLs, 2)
}

func TestCrawl_SeedFailureExcluded(t *testing.T) {
	server, _ := testSite(t, map[string]string{}, "")

	result, err := newTestCrawler(t, testCrawlConfig(), nil).Crawl(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Empty(t, result.URLs)
	assert.Equal(t, 1, result.Failed)
}

func TestCrawl_StopBeforeFetch(t *testing.T) {
	server, hits := testSite(t, map[string]string{"/": `<a href="/contact">c</a>`}, "")

	opts := &CrawlerOptions{Stop: func() bool { return true }}
	result, err := newTestCrawler(t, testCrawlConfig(), opts).Crawl(context.Background(), server.URL)

	require.NoError(t, err)
	assert.True(t, result.Stopped)
	assert.Equal(t, []string{server.URL + "/"}, result.URLs)
	assert.Equal(t, int32(0), hits.Load())
}

func TestCrawl_ContextCancelled(t *testing.T) {
	server, _ := testSite(t, map[string]string{"/": ``}, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testCrawlConfig()
	cfg.BypassExclusion = true
	result, err := newTestCrawler(t, cfg, nil).Crawl(ctx, server.URL)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
}

func TestCrawl_InvalidSeed(t *testing.T) {
	_, err := newTestCrawler(t, testCrawlConfig(), nil).Crawl(context.Background(), "ftp://acme.com")
	assert.ErrorIs(t, err, utils.ErrParsing)
}

func TestCrawlState_Invariants(t *testing.T) {
	state := newCrawlState(2, fetch.NewPacer(0, testLogger()))

	assert.True(t, state.discover("a"))
	assert.False(t, state.discover("a"))
	assert.True(t, state.discover("b"))
	assert.False(t, state.discover("c"), "budget of 2 reached")

	state.markFailed("a")
	state.markVisited("a")
	assert.True(t, state.visited["a"])
	assert.False(t, state.failed["a"])

	state.markFailed("b")
	state.markFailed("a")
	assert.False(t, state.failed["a"], "visited URL cannot become failed")
	assert.Equal(t, []string{"a"}, state.output())
}
