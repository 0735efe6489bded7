package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/emailscope/pkg/utils"
)

// defaultHeaders are sent with every page request alongside the rotated User-Agent
var defaultHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// Page is a successfully fetched and parsed HTML page
type Page struct {
	URL        string            // URL as requested
	FinalURL   *url.URL          // URL after redirects; base for resolving links
	StatusCode int
	Doc        *goquery.Document // script/style/noscript already removed
	Text       string            // Visible text, block elements separated by newlines
}

// PageFetcher performs single GET requests. It never retries.
type PageFetcher struct {
	client       *http.Client
	timeout      time.Duration
	maxBodyBytes int64
	log          *logrus.Entry
}

// NewPageFetcher creates a PageFetcher. timeout bounds each Fetch call.
func NewPageFetcher(client *http.Client, timeout time.Duration, maxBodyBytes int64, log *logrus.Entry) *PageFetcher {
	return &PageFetcher{
		client:       client,
		timeout:      timeout,
		maxBodyBytes: maxBodyBytes,
		log:          log,
	}
}

// Fetch GETs rawURL with the given user agent.
// Every failure is returned wrapped in utils.ErrFetchFailed, plus the
// status sentinel (ErrClientHTTPError, ErrServerHTTPError, ErrOtherHTTPError) when one applies.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL, userAgent string) (*Page, error) {
	reqLog := f.log.WithField("url", rawURL)

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", utils.ErrFetchFailed, utils.ErrRequestCreation, err)
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		reqLog.Debugf("Network error: %v", err)
		return nil, fmt.Errorf("%w: %w", utils.ErrFetchFailed, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	statusCode := resp.StatusCode
	resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "status": resp.Status})

	switch {
	case statusCode >= 200 && statusCode < 300:
		// fall through to body handling
	case statusCode >= 500:
		resLog.Debug("Server error")
		return nil, fmt.Errorf("%w: %w: status %d %s", utils.ErrFetchFailed, utils.ErrServerHTTPError, statusCode, resp.Status)
	case statusCode >= 400:
		resLog.Debug("Client error")
		return nil, fmt.Errorf("%w: %w: status %d %s", utils.ErrFetchFailed, utils.ErrClientHTTPError, statusCode, resp.Status)
	default:
		resLog.Debugf("Unexpected status: %d", statusCode)
		return nil, fmt.Errorf("%w: %w: status %d %s", utils.ErrFetchFailed, utils.ErrOtherHTTPError, statusCode, resp.Status)
	}

	if ct := resp.Header.Get("Content-Type"); !isHTMLContentType(ct) {
		return nil, fmt.Errorf("%w: %w: content-type %q", utils.ErrFetchFailed, utils.ErrNotHTML, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyLimit()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", utils.ErrFetchFailed, utils.ErrResponseBodyRead, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: HTML: %w", utils.ErrFetchFailed, utils.ErrParsing, err)
	}
	doc.Find("script, style, noscript, template").Remove()

	resLog.WithField("bytes", len(body)).Debug("Fetched page")
	return &Page{
		URL:        rawURL,
		FinalURL:   resp.Request.URL,
		StatusCode: statusCode,
		Doc:        doc,
		Text:       VisibleText(doc),
	}, nil
}

func (f *PageFetcher) maxBodyLimit() int64 {
	if f.maxBodyBytes > 0 {
		return f.maxBodyBytes
	}
	return 10 << 20
}

// isHTMLContentType accepts HTML/XHTML and a missing header
func isHTMLContentType(ct string) bool {
	if ct == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
