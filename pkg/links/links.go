package links

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/emailscope/pkg/config"
	"github.com/Sriram-PR/emailscope/pkg/parse"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

// ExtractLinks returns the absolute, normalized http(s) links of doc resolved against base.
// Order follows the document; duplicates are removed.
func ExtractLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]bool)
	var out []string

	doc.Find("a[href]").Each(func(_ int, element *goquery.Selection) {
		href, _ := element.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		linkURL, err := base.Parse(href)
		if err != nil {
			return
		}
		if linkURL.Scheme != "http" && linkURL.Scheme != "https" {
			return // mailto:, tel:, javascript: etc
		}

		normalized := parse.NormalizeURL(linkURL)
		if seen[normalized] {
			return
		}
		seen[normalized] = true
		out = append(out, normalized)
	})
	return out
}

// Filter keeps same-site content links and ranks them.
// It is read-only after construction and safe for concurrent use.
type Filter struct {
	skipSegments     []string
	skipExtensions   []string
	skipPatterns     []*regexp.Regexp
	priorityKeywords []string
	homePaths        map[string]bool
	log              *logrus.Entry
}

// NewFilter builds a Filter from the data tables.
// Returns an error if a skip_path_patterns entry does not compile.
func NewFilter(tables *config.Tables, log *logrus.Entry) (*Filter, error) {
	patterns, err := utils.CompileRegexPatterns(tables.SkipPathPatterns)
	if err != nil {
		return nil, err
	}
	home := make(map[string]bool, len(tables.HomePaths))
	for _, p := range tables.HomePaths {
		home[trimPath(p)] = true
	}
	return &Filter{
		skipSegments:     tables.SkipPathSegments,
		skipExtensions:   tables.SkipExtensions,
		skipPatterns:     patterns,
		priorityKeywords: tables.PriorityKeywords,
		homePaths:        home,
		log:              log,
	}, nil
}

// Filter drops links outside seedHost's registrable domain and links whose
// path hits a denylisted segment, pattern or extension. Input order is kept.
func (f *Filter) Filter(seedHost string, links []string) []string {
	var kept []string
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil || u.Host == "" {
			continue
		}
		if err := f.checkScope(seedHost, u); err != nil {
			f.log.WithField("error_type", utils.CategorizeError(err)).Debugf("Link '%s' dropped: %v", link, err)
			continue
		}
		kept = append(kept, link)
	}
	return kept
}

// checkScope returns an error wrapping utils.ErrScopeViolation when u is off-site or denylisted
func (f *Filter) checkScope(seedHost string, u *url.URL) error {
	if !parse.SameRegistrableDomain(u.Hostname(), seedHost) {
		return fmt.Errorf("%w: host %s is outside %s", utils.ErrScopeViolation, u.Hostname(), parse.RegistrableDomain(seedHost))
	}
	if f.skipped(u) {
		return fmt.Errorf("%w: path %s matches the denylist", utils.ErrScopeViolation, u.Path)
	}
	return nil
}

func (f *Filter) skipped(u *url.URL) bool {
	path := strings.ToLower(u.Path)
	if path == "" {
		path = "/"
	}

	withSlash := path
	if !strings.HasSuffix(withSlash, "/") {
		withSlash += "/"
	}
	for _, seg := range f.skipSegments {
		if strings.Contains(withSlash, seg) {
			return true
		}
	}
	for _, ext := range f.skipExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	for _, pattern := range f.skipPatterns {
		if pattern.MatchString(u.Path) {
			return true
		}
	}
	return false
}

// Score ranks a link: +10 per priority keyword found in the URL, +5 for a
// home-like path, -1 per non-empty path segment.
func (f *Filter) Score(link string) int {
	lower := strings.ToLower(link)
	score := 0
	for _, kw := range f.priorityKeywords {
		if strings.Contains(lower, kw) {
			score += 10
		}
	}

	path := "/"
	if u, err := url.Parse(lower); err == nil && u.Path != "" {
		path = u.Path
	}
	if f.homePaths[trimPath(path)] {
		score += 5
	}
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			score--
		}
	}
	return score
}

// Prioritize de-duplicates links (first occurrence wins) and sorts them by
// descending Score. Equal scores keep their input order.
func (f *Filter) Prioritize(links []string) []string {
	seen := make(map[string]bool, len(links))
	out := make([]string, 0, len(links))
	for _, link := range links {
		if !seen[link] {
			seen[link] = true
			out = append(out, link)
		}
	}

	scores := make(map[string]int, len(out))
	for _, link := range out {
		scores[link] = f.Score(link)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return scores[out[i]] > scores[out[j]]
	})
	return out
}

// trimPath lower-cases p and strips trailing slashes, keeping "/" for the root
func trimPath(p string) string {
	p = strings.TrimRight(strings.ToLower(p), "/")
	if p == "" {
		return "/"
	}
	return p
}
