package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const mailtoScheme = "mailto:"

// MailtoAddresses returns the valid addresses of all mailto: links in doc,
// de-duplicated in document order. The scheme is matched case-insensitively;
// query strings (?subject=...) are dropped and comma-separated lists split.
func MailtoAddresses(doc *goquery.Document) []string {
	if doc == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if len(href) < len(mailtoScheme) || !strings.EqualFold(href[:len(mailtoScheme)], mailtoScheme) {
			return
		}
		target := href[len(mailtoScheme):]
		if i := strings.IndexByte(target, '?'); i >= 0 {
			target = target[:i]
		}
		if unescaped, err := url.PathUnescape(target); err == nil {
			target = unescaped
		}

		for _, part := range strings.Split(target, ",") {
			email := Normalize(part)
			if !ValidSyntax(email) || seen[email] {
				continue
			}
			seen[email] = true
			out = append(out, email)
		}
	})
	return out
}
