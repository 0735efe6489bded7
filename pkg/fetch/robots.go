package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// maxRobotsBytes caps the robots.txt body that is parsed
const maxRobotsBytes = 512 << 10

// RobotsChecker fetches, caches and evaluates robots.txt per host.
// Safe for concurrent use by parallel crawls.
type RobotsChecker struct {
	client        *http.Client
	timeout       time.Duration
	robotsCache   map[string]*robotstxt.RobotsData // host -> parsed data (nil = unavailable)
	robotsCacheMu sync.Mutex
	log           *logrus.Entry
}

// NewRobotsChecker creates a RobotsChecker
func NewRobotsChecker(client *http.Client, timeout time.Duration, log *logrus.Entry) *RobotsChecker {
	return &RobotsChecker{
		client:      client,
		timeout:     timeout,
		robotsCache: make(map[string]*robotstxt.RobotsData),
		log:         log,
	}
}

// Allowed reports whether userAgent may fetch target.
// Returns true if robots.txt is unavailable (network error, 5xx, unparsable).
// 4xx responses mean "no robots.txt" and allow everything.
func (rc *RobotsChecker) Allowed(ctx context.Context, target *url.URL, userAgent string) bool {
	data := rc.robotsData(ctx, target)
	if data == nil {
		return true
	}
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, userAgent)
}

func (rc *RobotsChecker) robotsData(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := target.Host
	hostLog := rc.log.WithField("host", host)

	rc.robotsCacheMu.Lock()
	data, found := rc.robotsCache[host]
	rc.robotsCacheMu.Unlock()
	if found {
		return data
	}

	data = rc.fetch(ctx, target, hostLog)

	rc.robotsCacheMu.Lock()
	rc.robotsCache[host] = data
	rc.robotsCacheMu.Unlock()
	return data
}

func (rc *RobotsChecker) fetch(ctx context.Context, target *url.URL, hostLog *logrus.Entry) *robotstxt.RobotsData {
	robotsURL := &url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/robots.txt"}
	robotsLog := hostLog.WithField("robots_url", robotsURL.String())
	robotsLog.Debug("Fetching robots.txt...")

	if rc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		robotsLog.Warnf("Error creating request: %v", err)
		return nil
	}
	resp, err := rc.client.Do(req)
	if err != nil {
		robotsLog.Warnf("Fetching robots.txt failed, assuming allowed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		robotsLog.Warnf("robots.txt returned %d, assuming allowed", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		robotsLog.Warnf("Error reading robots.txt body: %v", err)
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		robotsLog.Warnf("Error parsing robots.txt: %v", err)
		return nil
	}
	robotsLog.WithField("status_code", resp.StatusCode).Debug("Parsed robots.txt")
	return data
}
