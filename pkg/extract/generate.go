package extract

import (
	"strings"

	"github.com/Sriram-PR/emailscope/pkg/config"
	"github.com/Sriram-PR/emailscope/pkg/parse"
)

// companyAliases are prefixed to token.com for the company variants
var companyAliases = []string{"info", "contact", "hello"}

// DetectIndustry returns the first industry whose keyword occurs in domain,
// or nil for a general domain.
func DetectIndustry(domain string, industries []config.Industry) *config.Industry {
	d := strings.ToLower(domain)
	for i := range industries {
		for _, kw := range industries[i].Keywords {
			if kw != "" && strings.Contains(d, kw) {
				return &industries[i]
			}
		}
	}
	return nil
}

// GenerateCandidates synthesizes likely role addresses for domain: the generic
// local parts, the detected industry's local parts and variants built from the
// company token (first label). Output order follows the tables and is
// de-duplicated; addresses failing ValidSyntax are dropped.
func GenerateCandidates(domain string, tables *config.Tables) []string {
	clean := parse.BareDomain(domain)
	if clean == "" {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	add := func(email string) {
		if !seen[email] && ValidSyntax(email) {
			seen[email] = true
			out = append(out, email)
		}
	}

	for _, local := range tables.GenericLocalParts {
		add(local + "@" + clean)
	}
	if industry := DetectIndustry(clean, tables.Industries); industry != nil {
		for _, local := range industry.LocalParts {
			add(local + "@" + clean)
		}
	}

	token, _, _ := strings.Cut(clean, ".")
	if token == "" {
		return out
	}
	add(token + "@" + clean)
	add(token + "@" + token + ".com")
	for _, alias := range companyAliases {
		add(alias + "@" + token + ".com")
	}
	if len(token) > 3 {
		short := token[:3]
		add(short + "@" + clean)
		add("info@" + short + ".com")
	}
	return out
}
