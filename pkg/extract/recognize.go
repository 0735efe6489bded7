package extract

import (
	"regexp"
	"strings"

	"github.com/Sriram-PR/emailscope/pkg/utils"
)

// Pattern fragments shared by the recognizers
const (
	localChars  = `[A-Za-z0-9._%+-]+`
	domainChars = `[A-Za-z0-9.-]+`
	tldChars    = `[A-Za-z]{2,}`
	emailBody   = localChars + `@` + domainChars + `\.` + tldChars
)

var (
	standardRe = regexp.MustCompile(`\b` + emailBody + `\b`)
	spacedRe   = regexp.MustCompile(`\b` + localChars + `[ \t]*@[ \t]*` + domainChars + `\.` + tldChars + `\b`)
	parenRe    = regexp.MustCompile(`\(` + emailBody + `\)`)
	wordRe     = regexp.MustCompile(`(?i)\b(` + localChars + `)\s+at\s+(` + domainChars + `)\s+dot\s+(` + tldChars + `)\b`)
	bracketRe  = regexp.MustCompile(`(?i)\b(` + localChars + `)\s*\[at\]\s*(` + domainChars + `)\s*\[dot\]\s*(` + tldChars + `)\b`)

	spaceAroundAt  = regexp.MustCompile(`\s*@\s*`)
	spaceAroundDot = regexp.MustCompile(`\s*\.\s*`)

	validLocal  = regexp.MustCompile(`^` + localChars + `$`)
	validDomain = regexp.MustCompile(`^` + domainChars + `\.` + tldChars + `$`)
)

// recognizer finds raw address matches in text
type recognizer struct {
	name string
	find func(text string) []string
}

// matchAll returns whole-match recognizer output
func matchAll(re *regexp.Regexp) func(string) []string {
	return func(text string) []string {
		return re.FindAllString(text, -1)
	}
}

// composeObfuscated rebuilds user@domain.tld from the three capture groups
func composeObfuscated(re *regexp.Regexp) func(string) []string {
	return func(text string) []string {
		var out []string
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, m[1]+"@"+m[2]+"."+m[3])
		}
		return out
	}
}

// contextRecognizer matches an address preceded by keyword on the same line
func contextRecognizer(keywords []string) (func(string) []string, error) {
	patterns := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		patterns = append(patterns, `(?i)`+regexp.QuoteMeta(kw)+`[^@\n]*?(`+emailBody+`)`)
	}
	compiled, err := utils.CompileRegexPatterns(patterns)
	if err != nil {
		return nil, err
	}
	return func(text string) []string {
		var out []string
		for _, re := range compiled {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				out = append(out, m[1])
			}
		}
		return out
	}, nil
}

// Normalize lower-cases an address match, strips enclosing parentheses and
// collapses whitespace around "@" and ".".
func Normalize(raw string) string {
	s := strings.Trim(raw, wrapCutset)
	s = spaceAroundAt.ReplaceAllString(s, "@")
	s = spaceAroundDot.ReplaceAllString(s, ".")
	return strings.ToLower(strings.Trim(s, wrapCutset))
}

// wrapCutset is stripped from both ends of a match, nested in any order
const wrapCutset = "() \t\n\r\f\v"

// ValidSyntax reports whether email has exactly one "@", a local part of at
// most 64 allowed characters and a domain of at most 255 characters ending in
// an alphabetic TLD of two or more letters.
func ValidSyntax(email string) bool {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return false
	}
	if local == "" || len(local) > 64 || domain == "" || len(domain) > 255 {
		return false
	}
	return validLocal.MatchString(local) && validDomain.MatchString(domain)
}
