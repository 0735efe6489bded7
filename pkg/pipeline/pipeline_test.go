package pipeline

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/emailscope/pkg/config"
	"github.com/Sriram-PR/emailscope/pkg/extract"
	"github.com/Sriram-PR/emailscope/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// testSite serves pages for any host; robots is served at /robots.txt when non-empty
func testSite(t *testing.T, pages map[string]string, robots string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" && robots != "" {
			io.WriteString(w, robots)
			return
		}
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

// routedClient sends every request to server regardless of the URL's host
func routedClient(server *httptest.Server) *http.Client {
	addr := server.Listener.Addr().String()
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

func testConfig() config.AppConfig {
	cfg := config.Default()
	cfg.Crawl.PacingInterval = 0
	cfg.Crawl.RequestDelay = 0
	cfg.Crawl.Timeout = 2 * time.Second
	cfg.Crawl.MaxDepth = 1
	cfg.Verification.MockDNS = true
	cfg.MaxWorkers = 3
	return cfg
}

var companySite = map[string]string{
	"/":        `<a href="/contact">Contact</a><a href="mailto:sales@example.com">Sales</a>`,
	"/contact": `<p>Email: jane.doe@example.com</p><p>Write to info@example.com</p>`,
}

// recorder collects events
type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) OnEvent(e models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestPipeline(t *testing.T, cfg config.AppConfig, server *httptest.Server, verifier Verifier) *Pipeline {
	t.Helper()
	p, err := New(cfg, config.DefaultTables(), testLogger(), &Options{HTTPClient: routedClient(server), Verifier: verifier})
	require.NoError(t, err)
	return p
}

func recordByEmail(records []models.Record, email string) (models.Record, bool) {
	for _, r := range records {
		if r.Email == email {
			return r, true
		}
	}
	return models.Record{}, false
}

func TestRun_Completed(t *testing.T) {
	server := testSite(t, companySite, "")
	p := newTestPipeline(t, testConfig(), server, nil)
	rec := &recorder{}

	report, err := p.Run(context.Background(), "http://example.com", NewStopToken(), rec)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeCompleted, report.Outcome)
	assert.Equal(t, "example.com", report.Domain)
	assert.Equal(t, []string{"http://example.com/contact", "http://example.com/"}, report.URLs)
	assert.Equal(t, 3, report.FoundCount)
	assert.Equal(t, 15, report.GeneratedCount)
	require.Len(t, report.Records, 18)
	assert.Equal(t, 18, report.ValidCount())

	for i := 1; i < len(report.Records); i++ {
		assert.Less(t, report.Records[i-1].Email, report.Records[i].Email, "records sorted by email")
	}
	sales, ok := recordByEmail(report.Records, "sales@example.com")
	require.True(t, ok)
	assert.Equal(t, models.SourceMailto, sales.Source)
	info, ok := recordByEmail(report.Records, "info@example.com")
	require.True(t, ok)
	assert.Equal(t, models.SourceObserved, info.Source, "observed wins over generated")
	jane, _ := recordByEmail(report.Records, "jane.doe@example.com")
	assert.Equal(t, 100, jane.Confidence)
	assert.Equal(t, "Format: OK, MX: OK, Reputation: 60/100, Not disposable", jane.Reason)

	types := rec.types()
	require.NotEmpty(t, types)
	assert.Equal(t, models.EventCrawlStarted, types[0])
	assert.Equal(t, models.EventCrawlCompleted, types[1])
	assert.Equal(t, models.EventExtractionCompleted, types[2])
	assert.Equal(t, models.EventPipelineCompleted, types[len(types)-1])
	progress := 0
	for _, e := range rec.events {
		if e.Type == models.EventVerificationProgress {
			progress++
			assert.Equal(t, 18, e.Total)
			assert.Equal(t, progress, e.Completed, "progress is monotonic")
		}
	}
	assert.Equal(t, 18, progress)
	assert.Equal(t, 2, rec.events[1].URLCount)
	assert.Equal(t, 3, rec.events[2].FoundCount)
	assert.Equal(t, 1, p.gate.Len(), "both pages go through one host gate")
}

func TestRun_PerPageCap(t *testing.T) {
	server := testSite(t, companySite, "")
	cfg := testConfig()
	cfg.MaxEmailsPerPage = 1
	p := newTestPipeline(t, cfg, server, nil)

	report, err := p.Run(context.Background(), "http://example.com", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.FoundCount)
	jane, ok := recordByEmail(report.Records, "jane.doe@example.com")
	require.True(t, ok)
	assert.Equal(t, models.SourceObserved, jane.Source)
	info, ok := recordByEmail(report.Records, "info@example.com")
	require.True(t, ok)
	assert.Equal(t, models.SourceGenerated, info.Source)
}

func TestRun_TotalCap(t *testing.T) {
	server := testSite(t, companySite, "")
	cfg := testConfig()
	cfg.MaxTotalEmails = 4
	p := newTestPipeline(t, cfg, server, nil)

	report, err := p.Run(context.Background(), "http://example.com", nil, nil)
	require.NoError(t, err)

	require.Len(t, report.Records, 4)
	_, ok := recordByEmail(report.Records, "sales@example.com")
	assert.True(t, ok, "highest scored candidates survive the cap")
	_, ok = recordByEmail(report.Records, "jane.doe@example.com")
	assert.True(t, ok)
}

func TestRun_Blocked(t *testing.T) {
	server := testSite(t, companySite, "User-agent: *\nDisallow: /\n")
	p := newTestPipeline(t, testConfig(), server, nil)
	rec := &recorder{}

	report, err := p.Run(context.Background(), "http://example.com", nil, rec)

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeBlocked, report.Outcome)
	assert.Empty(t, report.Records)
	assert.Empty(t, report.URLs)
	last := rec.events[len(rec.events)-1]
	assert.Equal(t, models.EventPipelineCompleted, last.Type)
	assert.Contains(t, last.Message, "robots")
}

func TestRun_InvalidDomain(t *testing.T) {
	server := testSite(t, companySite, "")
	p := newTestPipeline(t, testConfig(), server, nil)
	rec := &recorder{}

	report, err := p.Run(context.Background(), "ftp://example.com", nil, rec)

	require.Error(t, err)
	assert.Equal(t, models.OutcomeError, report.Outcome)
	assert.Equal(t, err, report.Err)
	assert.Equal(t, models.EventPipelineError, rec.events[len(rec.events)-1].Type)
}

// stoppingVerifier raises the stop token on its first call
type stoppingVerifier struct {
	stop  *StopToken
	calls atomic.Int32
}

func (v *stoppingVerifier) Verify(_ context.Context, email string) models.VerificationResult {
	v.calls.Add(1)
	v.stop.Stop()
	return models.VerificationResult{Email: email, IsValid: true, Confidence: 80, Reason: "ok"}
}

func TestRun_StopDuringVerification(t *testing.T) {
	server := testSite(t, companySite, "")
	cfg := testConfig()
	cfg.MaxWorkers = 1
	stop := NewStopToken()
	verifier := &stoppingVerifier{stop: stop}
	p := newTestPipeline(t, cfg, server, verifier)
	rec := &recorder{}

	report, err := p.Run(context.Background(), "http://example.com", stop, rec)

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeStopped, report.Outcome)
	assert.Equal(t, int32(1), verifier.calls.Load(), "no task starts once stop is raised")
	assert.Len(t, report.Records, 1, "completed results are preserved")
	assert.Equal(t, models.EventPipelineStopped, rec.types()[len(rec.types())-1])
}

func TestRun_StopDuringExtraction(t *testing.T) {
	stop := NewStopToken()
	var pageHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := companySite[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		// The crawl fetches both pages; the first extraction fetch raises stop
		if pageHits.Add(1) == 3 {
			stop.Stop()
		}
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)

	cfg := testConfig()
	cfg.MaxWorkers = 1
	p := newTestPipeline(t, cfg, server, nil)

	report, err := p.Run(context.Background(), "http://example.com", stop, nil)

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeStopped, report.Outcome)
	assert.Equal(t, int32(3), pageHits.Load(), "second extraction page never fetched")
	assert.Empty(t, report.Records)
}

func TestRun_StoppedBeforeStart(t *testing.T) {
	server := testSite(t, companySite, "")
	stop := NewStopToken()
	stop.Stop()
	p := newTestPipeline(t, testConfig(), server, nil)

	report, err := p.Run(context.Background(), "http://example.com", stop, nil)

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeStopped, report.Outcome)
	assert.Empty(t, report.Records)
}

// panickyVerifier panics for addresses starting with "jane"
type panickyVerifier struct{}

func (panickyVerifier) Verify(_ context.Context, email string) models.VerificationResult {
	if strings.HasPrefix(email, "jane") {
		panic("resolver exploded")
	}
	return models.VerificationResult{Email: email, IsValid: true, Confidence: 70, Reason: "ok"}
}

func TestRun_TaskPanicIsolated(t *testing.T) {
	server := testSite(t, companySite, "")
	p := newTestPipeline(t, testConfig(), server, panickyVerifier{})

	report, err := p.Run(context.Background(), "http://example.com", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, report.Outcome)
	jane, ok := recordByEmail(report.Records, "jane.doe@example.com")
	require.True(t, ok)
	assert.False(t, jane.IsValid)
	assert.Equal(t, 0, jane.Confidence)
	assert.True(t, strings.HasPrefix(jane.Reason, "error: "), jane.Reason)
	assert.Contains(t, jane.Reason, "resolver exploded")
	assert.Equal(t, 17, report.ValidCount(), "siblings continue")
}

func TestStopToken(t *testing.T) {
	var nilToken *StopToken
	assert.False(t, nilToken.Stopped())
	assert.Nil(t, nilToken.Done())

	s := NewStopToken()
	assert.False(t, s.Stopped())
	select {
	case <-s.Done():
		t.Fatal("Done closed before Stop")
	default:
	}
	s.Stop()
	s.Stop()
	assert.True(t, s.Stopped())
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

func TestPoolSize(t *testing.T) {
	assert.Equal(t, 5, poolSize(5, 10))
	assert.Equal(t, 3, poolSize(5, 3))
	assert.Equal(t, 1, poolSize(5, 0))
	assert.Equal(t, 1, poolSize(0, 10))
}

func TestRankCandidates(t *testing.T) {
	scorer := extract.NewScorer(config.DefaultTables().ScoreKeywords)
	cands := []models.EmailCandidate{
		{Address: "zed@acme.com", Source: models.SourceGenerated},
		{Address: "bob@acme.com", Source: models.SourceObserved},
		{Address: "amy@other.com", Source: models.SourceMailto},
		{Address: "info@acme.com", Source: models.SourceGenerated},
	}

	got := rankCandidates(cands, scorer, "acme.com", 3)

	require.Len(t, got, 3)
	assert.Equal(t, "amy@other.com", got[0].Address)
	assert.Equal(t, "bob@acme.com", got[1].Address)
	assert.Equal(t, "info@acme.com", got[2].Address)
	assert.Equal(t, 45, got[2].Score)
}

func TestMultiObserver(t *testing.T) {
	var a, b int
	m := MultiObserver{ObserverFunc(func(models.Event) { a++ }), nil, ObserverFunc(func(models.Event) { b++ })}
	m.OnEvent(models.Event{Type: models.EventCrawlStarted})
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
