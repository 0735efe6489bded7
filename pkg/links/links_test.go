package links

import (
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/emailscope/pkg/config"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := NewFilter(config.DefaultTables(), testLogger())
	require.NoError(t, err)
	return f
}

func TestExtractLinks(t *testing.T) {
	html := `<html><body>
<a href="contact">Contact</a>
<a href="/team#leadership">Team</a>
<a href="mailto:info@acme.com">Mail</a>
<a href="#top">Top</a>
<a href="https://ACME.com/team">Team again</a>
<a href="javascript:void(0)">JS</a>
<a href="tel:+15551234">Call</a>
<a href="https://partner.example.org/">Partner</a>
<a href="">Empty</a>
</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	base, _ := url.Parse("https://acme.com/about/")

	got := ExtractLinks(doc, base)

	assert.Equal(t, []string{
		"https://acme.com/about/contact",
		"https://acme.com/team",
		"https://partner.example.org/",
	}, got)
}

func TestFilter_ScopeAndDenylists(t *testing.T) {
	f := newTestFilter(t)
	in := []string{
		"https://www.acme.com/contact",
		"https://blog.acme.com/about",
		"https://other.com/contact",
		"https://acme.co.uk/contact",
		"https://acme.com/wp-admin/settings",
		"https://acme.com/brochure.PDF",
		"https://acme.com/login",
		"https://acme.com/sitemap.xml",
		"https://acme.com/tag/news",
		"https://acme.com/team",
	}

	got := f.Filter("acme.com", in)

	assert.Equal(t, []string{
		"https://www.acme.com/contact",
		"https://blog.acme.com/about",
		"https://acme.com/team",
	}, got)
}

func TestFilter_LogsScopeViolations(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f, err := NewFilter(config.DefaultTables(), logrus.NewEntry(logger))
	require.NoError(t, err)

	got := f.Filter("acme.com", []string{"https://other.com/contact", "https://acme.com/wp-admin/x", "https://acme.com/team"})

	assert.Equal(t, []string{"https://acme.com/team"}, got)
	require.Len(t, hook.AllEntries(), 2)
	for _, entry := range hook.AllEntries() {
		assert.Equal(t, logrus.DebugLevel, entry.Level)
		assert.Equal(t, "Policy_Scope", entry.Data["error_type"])
	}
}

func TestCheckScope(t *testing.T) {
	f := newTestFilter(t)
	tests := []struct {
		link    string
		inScope bool
	}{
		{"https://www.acme.com/contact", true},
		{"https://other.com/contact", false},
		{"https://acme.com/wp-admin/settings", false},
		{"https://acme.com/brochure.pdf", false},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.link)
		require.NoError(t, err)
		err = f.checkScope("acme.com", u)
		if tt.inScope {
			assert.NoError(t, err, tt.link)
			continue
		}
		assert.ErrorIs(t, err, utils.ErrScopeViolation, tt.link)
		assert.Equal(t, "Policy_Scope", utils.CategorizeError(err))
	}
}

func TestFilter_SkipPathPatterns(t *testing.T) {
	tables := config.DefaultTables()
	tables.SkipPathPatterns = []string{`^/\d{4}/`}
	f, err := NewFilter(tables, testLogger())
	require.NoError(t, err)

	got := f.Filter("acme.com", []string{"https://acme.com/2023/hello", "https://acme.com/contact"})
	assert.Equal(t, []string{"https://acme.com/contact"}, got)
}

func TestNewFilter_InvalidPattern(t *testing.T) {
	tables := config.DefaultTables()
	tables.SkipPathPatterns = []string{`[broken`}
	_, err := NewFilter(tables, testLogger())
	assert.Error(t, err)
}

func TestScore(t *testing.T) {
	f := newTestFilter(t)
	tests := []struct {
		url  string
		want int
	}{
		{"https://acme.com/", 5},
		{"https://acme.com", 5},
		{"https://acme.com/index.html", 4},
		{"https://acme.com/contact", 9},
		{"https://acme.com/about/team", 18},
		{"https://acme.com/blog/2024/post", -3},
		{"https://acme.com/Contact-Us", 9},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Score(tt.url))
		})
	}
}

func TestPrioritize_StableAndDeduplicated(t *testing.T) {
	f := newTestFilter(t)
	in := []string{
		"https://acme.com/x",
		"https://acme.com/contact",
		"https://acme.com/y",
		"https://acme.com/x",
		"https://acme.com/",
		"https://acme.com/z",
	}

	got := f.Prioritize(in)

	assert.Equal(t, []string{
		"https://acme.com/contact",
		"https://acme.com/",
		"https://acme.com/x",
		"https://acme.com/y",
		"https://acme.com/z",
	}, got)
}

func TestPrioritize_Empty(t *testing.T) {
	assert.Empty(t, newTestFilter(t).Prioritize(nil))
}
